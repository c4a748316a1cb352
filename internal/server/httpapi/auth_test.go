package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/logging"
	sc "github.com/mpetrovs/cloudvault/internal/server/config"
)

func testServer() *Server {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	l := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewServer(cfg, l, nil, nil, nil)
}

func signToken(t *testing.T, secret, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseToken(t *testing.T) {
	secret := "secretKey"

	t.Run("valid", func(t *testing.T) {
		userID, err := parseToken(signToken(t, secret, "u1"), []byte(secret))
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := parseToken(signToken(t, "other", "u1"), []byte(secret))
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		_, err := parseToken(signToken(t, secret, ""), []byte(secret))
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
			UserID: "u1",
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)

		_, err = parseToken(signed, []byte(secret))
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})
}

func TestAuthenticate(t *testing.T) {
	srv := testServer()

	var gotOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = OwnerID(r.Context())
	})
	handler := srv.authenticate(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, srv.config.SecretKey, "u1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", gotOwner)
	})
}
