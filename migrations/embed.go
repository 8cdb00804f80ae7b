// SPDX-License-Identifier: Apache-2.0

// Package migrations embeds the schema migration scripts that ship with the
// binaries. Scripts apply in lexical filename order, so new ones take the
// next numeric prefix.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var scripts embed.FS

// Migration is one embedded schema script.
type Migration struct {
	Name string
	SQL  string
}

// All returns the embedded migrations sorted by filename.
func All() ([]Migration, error) {
	entries, err := fs.ReadDir(scripts, ".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	out := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		body, err := scripts.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		out = append(out, Migration{Name: name, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out, nil
}
