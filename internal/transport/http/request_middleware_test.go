// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var seen string
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("expected a generated request id on context")
	}
	if rec.Header().Get(headerRequestID) != seen {
		t.Fatalf("expected response header to match context id, got %q", rec.Header().Get(headerRequestID))
	}
}

func TestRequestIDMiddlewarePreservesIncomingID(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get(headerRequestID) != "req-123" {
		t.Fatalf("expected incoming id preserved, got %q", rec.Header().Get(headerRequestID))
	}
}

func TestStatusRecorderCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusTeapot)
	sr.WriteHeader(http.StatusOK) // second call must not override

	if sr.status != http.StatusTeapot {
		t.Fatalf("expected recorded status 418, got %d", sr.status)
	}
}

func TestStatusRecorderImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	if _, err := sr.Write([]byte("body")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if sr.status != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", sr.status)
	}
}
