// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// errNoRows aliases the pgx sentinel so zero-row updates surface the same way
// as zero-row queries.
var errNoRows = pgx.ErrNoRows

// nullableUUID maps the nil UUID to SQL NULL so optional filters can use a
// single query shape.
func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
