package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolhub/toolhub/pkg/httputil"
)

const testSecret = "test-secret-key-for-jwt-signing"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

// echoIdentity reports the identity Auth stored in the context.
var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"user": UserIDFromContext(r.Context()),
		"role": RoleFromContext(r.Context()),
	})
})

func TestNewJWTValidator(t *testing.T) {
	validate := NewJWTValidator(testSecret)
	hour := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name     string
		token    func(t *testing.T) string
		wantErr  bool
		wantUser string
		wantRole string
	}{
		{
			name: "user_id claim",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"user_id": "u-1", "role": "admin", "exp": hour})
			},
			wantUser: "u-1",
			wantRole: "admin",
		},
		{
			name: "sub fallback",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "u-2", "exp": hour})
			},
			wantUser: "u-2",
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"user_id": "u-1", "exp": jwt.NewNumericDate(time.Now().Add(-time.Hour))})
			},
			wantErr: true,
		},
		{
			name: "missing exp",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"user_id": "u-1"})
			},
			wantErr: true,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signToken(t, "other-secret", jwt.MapClaims{"user_id": "u-1", "exp": hour})
			},
			wantErr: true,
		},
		{
			name: "no subject",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"role": "admin", "exp": hour})
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not.a.jwt" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := validate(tt.token(t))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, claims.UserID)
			assert.Equal(t, tt.wantRole, claims.Role)
		})
	}
}

func TestAuth_RejectsBadHeaders(t *testing.T) {
	h := Auth(NewJWTValidator(testSecret))(echoIdentity)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"empty token":  "Bearer ",
		"bad token":    "Bearer abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/scores/recalculate", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestAuth_RequireRole(t *testing.T) {
	h := Auth(NewJWTValidator(testSecret))(RequireRole(RoleAdmin)(echoIdentity))
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"user_id": "ops", "role": "admin", "exp": exp}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ops", body["user"])
		assert.Equal(t, "admin", body["role"])
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer "+signToken(t, testSecret, jwt.MapClaims{"user_id": "bob", "role": "customer", "exp": exp}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	})
}
