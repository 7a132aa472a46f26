package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"pacochain/crypto"
)

const testSecret = "paco-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func accountEcho(t *testing.T, want [20]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := AccountFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, want, got)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticatorResolvesSubject(t *testing.T) {
	alice := crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{0xa1})
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "pacod"}, nil)
	handler := auth.Middleware("paco:write")(accountEcho(t, alice.Raw()))

	token := signToken(t, jwt.MapClaims{
		"sub":   alice.String(),
		"iss":   "pacod",
		"scope": "paco:read paco:write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/paco/assets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestAuthenticatorRejections(t *testing.T) {
	alice := crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{0xa1}).String()
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "pacod"}, nil)
	handler := auth.Middleware("paco:write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, jwt.MapClaims{"sub": alice, "iss": "other", "scope": "paco:write"}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{"sub": alice, "iss": "pacod", "scope": "paco:write", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"bad subject", "Bearer " + signToken(t, jwt.MapClaims{"sub": "bob", "iss": "pacod", "scope": "paco:write"}), http.StatusUnauthorized},
		{"scope", "Bearer " + signToken(t, jwt.MapClaims{"sub": alice, "iss": "pacod", "scope": "paco:read"}), http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/paco/assets", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, tc.status, res.Code, tc.name)
	}
}

func TestAuthenticatorDevHeader(t *testing.T) {
	bob := crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{0xb0})
	auth := NewAuthenticator(AuthConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/paco/assets", nil)
	req.Header.Set(AccountHeader, bob.String())
	res := httptest.NewRecorder()
	auth.Middleware()(accountEcho(t, bob.Raw())).ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/paco/assets", nil)
	req.Header.Set(AccountHeader, "not-an-address")
	res = httptest.NewRecorder()
	auth.Middleware()(accountEcho(t, bob.Raw())).ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCORSAndRequestID(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{Enabled: true, MetricsPrefix: "paco_gateway_test"}, nil)
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://paco.example"}})(
		obs.Middleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NotEmpty(t, RequestIDFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		})))

	req := httptest.NewRequest(http.MethodGet, "/v1/paco/assets/1", nil)
	req.Header.Set("Origin", "https://paco.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "https://paco.example", res.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, res.Header().Get(RequestIDHeader))

	preflight := httptest.NewRequest(http.MethodOptions, "/v1/paco/assets", nil)
	preflight.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, preflight)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}
