package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService(Config{JWTSecret: "test-secret", TokenDuration: time.Hour})

	token, err := svc.GenerateToken("kitchen-display")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "kitchen-display" {
		t.Errorf("Expected subject kitchen-display, got %s", claims.Subject)
	}
	if claims.Issuer != issuer {
		t.Errorf("Expected issuer %s, got %s", issuer, claims.Issuer)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewService(Config{JWTSecret: "test-secret", TokenDuration: time.Hour})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewService(Config{JWTSecret: "other-secret"})
		token, _ := other.GenerateToken("x")
		if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		old := NewService(Config{JWTSecret: "test-secret", TokenDuration: time.Minute})
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _ := old.GenerateToken("x")
		if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := svc.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(Config{JWTSecret: "s"})
	if svc.config.TokenDuration != 24*time.Hour {
		t.Errorf("Expected default duration 24h, got %v", svc.config.TokenDuration)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr error
	}{
		{"Bearer header", "Bearer abc", "", "abc", nil},
		{"Query parameter", "", "?token=xyz", "xyz", nil},
		{"Header wins", "Bearer abc", "?token=xyz", "abc", nil},
		{"Wrong scheme", "Basic abc", "", "", ErrInvalidToken},
		{"Missing", "", "", "", ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected token %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	svc := NewService(Config{JWTSecret: "test-secret"})
	token, _ := svc.GenerateToken("display-1")

	var subject string
	h := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := ClaimsFromContext(r.Context()); ok {
			subject = c.Subject
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("Valid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/aircraft", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", rec.Code)
		}
		if subject != "display-1" {
			t.Errorf("Expected subject display-1, got %q", subject)
		}
	})

	t.Run("No token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/aircraft", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})
}
