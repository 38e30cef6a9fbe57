package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/infrastructure/auth"
)

func TestAuthMiddleware_NoneCopiesHeaders(t *testing.T) {
	mw, err := AuthMiddleware(ModeNone, nil)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "usr_1")
	req.Header.Set(HeaderUserEmail, "ops@factory.io")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	err = h(c)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "usr_1", c.Get(auth.ContextUserID))
	assert.Equal(t, "ops@factory.io", c.Get(auth.ContextEmail))
}

func TestAuthMiddleware_DelegatesToVerifier(t *testing.T) {
	for _, mode := range []Mode{ModeJWT, ModeCognito} {
		verifierCalled := false
		verifier := func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				verifierCalled = true
				return next(c)
			}
		}

		mw, err := AuthMiddleware(mode, verifier)
		require.NoError(t, err)

		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		err = mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
		require.NoError(t, err)
		assert.True(t, verifierCalled, mode)
	}
}

func TestAuthMiddleware_VerifierRequired(t *testing.T) {
	mw, err := AuthMiddleware(ModeCognito, nil)
	assert.Nil(t, mw)
	assert.Error(t, err)
}

func TestParseAuthMode(t *testing.T) {
	mode, err := ParseAuthMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, mode)

	mode, err = ParseAuthMode(" JWT ")
	require.NoError(t, err)
	assert.Equal(t, ModeJWT, mode)

	_, err = ParseAuthMode("api_key")
	assert.Error(t, err)
}

type resolverFunc func(ctx context.Context, id application.Identity) (domain.Actor, error)

func (f resolverFunc) ResolveActor(ctx context.Context, id application.Identity) (domain.Actor, error) {
	return f(ctx, id)
}

func TestActorMiddleware_ResolvesIdentity(t *testing.T) {
	var seen application.Identity
	resolver := resolverFunc(func(_ context.Context, id application.Identity) (domain.Actor, error) {
		seen = id
		return domain.Actor{UserID: "usr_1", Role: domain.RoleOperator}, nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	req.Header.Set("User-Agent", "panel/1.0")
	req.Header.Set(echo.HeaderXRealIP, "10.1.2.3")
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set(auth.ContextUserID, "usr_1")

	var actor domain.Actor
	err := ActorMiddleware(resolver, &mockLogger{})(func(c echo.Context) error {
		actor = ActorFrom(c)
		return nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOperator, actor.Role)
	assert.Equal(t, application.Identity{UserID: "usr_1", IPAddress: "10.1.2.3", UserAgent: "panel/1.0"}, seen)
}

func TestActorMiddleware_RejectsUnknownCaller(t *testing.T) {
	resolver := resolverFunc(func(context.Context, application.Identity) (domain.Actor, error) {
		return domain.Actor{}, domain.ErrUnauthenticated
	})

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/alerts", nil), rec)

	called := false
	err := ActorMiddleware(resolver, &mockLogger{})(func(echo.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorFrom_DefaultsToAnonymous(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	actor := ActorFrom(c)
	assert.True(t, actor.Anonymous())
	assert.Empty(t, actor.Role)
}

func TestRateLimit_DeniesBurstOverflow(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(1))
	e.GET("/alerts", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
