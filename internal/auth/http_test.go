// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation, and context propagation

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}

	for _, tt := range tests {
		token, errMsg := extractBearerToken(tt.header)
		if (errMsg != "") != tt.wantErr {
			t.Errorf("extractBearerToken(%q) errMsg = %q, wantErr %v", tt.header, errMsg, tt.wantErr)
		}
		if token != tt.token {
			t.Errorf("extractBearerToken(%q) = %q, want %q", tt.header, token, tt.token)
		}
	}
}

func TestHTTPAuthMiddleware(t *testing.T) {
	verifier := newTestVerifier(t)
	valid, _ := verifier.Generate("ops", time.Hour)
	expired, _ := verifier.Generate("ops", -time.Hour)

	var gotAuth *AuthContext
	handler := HTTPAuthMiddleware(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Token " + valid, http.StatusUnauthorized, "invalid authorization header format"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAuth = nil
			req := httptest.NewRequest(http.MethodPost, "/api/admin/companies", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusOK {
				if gotAuth == nil || gotAuth.Subject != "ops" {
					t.Errorf("AuthContext = %+v, want subject ops", gotAuth)
				}
			} else if gotAuth != nil {
				t.Error("handler should not run for rejected requests")
			}
		})
	}
}

func TestFromContext_Missing(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("FromContext() on empty context should be nil")
	}
}
