package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func serve(mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	called := false
	_ = mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, c, called
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	token, err := v.IssueToken("usr_1", "ops@factory.io", time.Hour)
	require.NoError(t, err)

	rec, c, called := serve(v.Handler, "Bearer "+token)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr_1", c.Get(ContextUserID))
	assert.Equal(t, "ops@factory.io", c.Get(ContextEmail))
}

func TestJWTVerifier_RejectsExpiredAndForeignTokens(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)
	v.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := v.IssueToken("usr_1", "", time.Hour)
	require.NoError(t, err)
	v.now = time.Now

	_, err = v.ValidateToken(expired)
	assert.Error(t, err)

	other, err := NewJWTVerifier(strings.Repeat("x", 32))
	require.NoError(t, err)
	foreign, err := other.IssueToken("usr_1", "", time.Hour)
	require.NoError(t, err)

	rec, _, called := serve(v.Handler, "Bearer "+foreign)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _, called = serve(v.Handler, "")
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	_, err := NewJWTVerifier("short")
	assert.Error(t, err)
}

func TestCognitoMiddleware_VerifiesAgainstJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jsonWebKeySet{Keys: []jsonWebKey{{
			Kty: "RSA",
			Kid: "k1",
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer jwks.Close()

	const iss = "https://cognito-idp.eu-west-1.amazonaws.com/pool"
	mw := newCognitoMiddleware(iss, jwks.URL)

	sign := func(claims jwt.MapClaims, kid string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = kid
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}
	exp := time.Now().Add(time.Hour).Unix()

	rec, c, called := serve(mw.Handler, "Bearer "+sign(jwt.MapClaims{"sub": "abc", "email": "ops@factory.io", "iss": iss, "exp": exp}, "k1"))
	require.True(t, called, rec.Body.String())
	assert.Equal(t, "abc", c.Get(ContextUserID))
	assert.Equal(t, "ops@factory.io", c.Get(ContextEmail))

	_, _, called = serve(mw.Handler, "Bearer "+sign(jwt.MapClaims{"sub": "abc", "iss": "https://evil", "exp": exp}, "k1"))
	assert.False(t, called)

	_, _, called = serve(mw.Handler, "Bearer "+sign(jwt.MapClaims{"sub": "abc", "iss": iss, "exp": exp}, "unknown"))
	assert.False(t, called)

	rec, _, called = serve(mw.Handler, "Bearer "+sign(jwt.MapClaims{"iss": iss, "exp": exp}, "k1"))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKeySet_KeepsKnownKeysWhenRefreshFails(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fail := false
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(jsonWebKeySet{Keys: []jsonWebKey{{
			Kty: "RSA",
			Kid: "k1",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	set := newKeySet(srv.URL, time.Minute)
	set.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := set.lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, key.N, got.N)

	_, err = set.lookup(ctx, "k2")
	assert.ErrorIs(t, err, errUnknownKid)
	assert.Equal(t, 1, fetches, "unknown kid inside the throttle window must not refetch")

	fail = true
	now = now.Add(2 * time.Minute)
	got, err = set.lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, key.N, got.N)
	assert.Equal(t, 2, fetches)
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"Bearer":      "",
		"":            "",
	} {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Request().Header.Set("Authorization", header)
		got, err := bearerToken(c)
		if want == "" {
			assert.Error(t, err, header)
			continue
		}
		require.NoError(t, err, header)
		assert.Equal(t, want, got)
	}
}
