package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantOrigin string
		wantCreds  string
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "http://a.test", method: http.MethodGet, wantStatus: http.StatusTeapot, wantOrigin: "http://a.test"},
		{name: "explicit", allowed: []string{"http://a.test"}, origin: "http://a.test", method: http.MethodGet, wantStatus: http.StatusTeapot, wantOrigin: "http://a.test", wantCreds: "true"},
		{name: "rejected", allowed: []string{"http://a.test"}, origin: "http://b.test", method: http.MethodGet, wantStatus: http.StatusTeapot},
		{name: "preflight", allowed: []string{"*"}, origin: "http://a.test", method: http.MethodOptions, wantStatus: http.StatusNoContent, wantOrigin: "http://a.test"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/api/personas", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()

		CORS(tt.allowed)(next).ServeHTTP(rec, req)

		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantStatus)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
			t.Errorf("%s: allow origin = %q, want %q", tt.name, got, tt.wantOrigin)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
			t.Errorf("%s: credentials = %q, want %q", tt.name, got, tt.wantCreds)
		}
	}
}
