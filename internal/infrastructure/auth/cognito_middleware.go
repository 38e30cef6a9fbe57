package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Keys under which a verified token's identity is stored on the echo context.
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

type CognitoMiddleware struct {
	issuer string
	keys   *keySet
}

func NewCognitoMiddleware(userPoolID, region string) *CognitoMiddleware {
	issuer := "https://cognito-idp." + region + ".amazonaws.com/" + userPoolID
	return newCognitoMiddleware(issuer, issuer+"/.well-known/jwks.json")
}

func newCognitoMiddleware(issuer, jwksURL string) *CognitoMiddleware {
	return &CognitoMiddleware{issuer: issuer, keys: newKeySet(jwksURL, 15*time.Minute)}
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", errors.New("missing authorization token")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization token")
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

// Handler accepts Cognito ID and access tokens signed with one of the pool's
// published RS256 keys and stores the subject and email on the context.
func (m *CognitoMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := bearerToken(c)
		if err != nil {
			return unauthorized(c, err.Error())
		}
		ctx := c.Request().Context()
		claims := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token header has no kid")
			}
			return m.keys.lookup(ctx, kid)
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(m.issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			return unauthorized(c, "invalid token")
		}
		if use, ok := claims["token_use"].(string); ok && use != "id" && use != "access" {
			return unauthorized(c, "unsupported token use")
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return unauthorized(c, "token has no subject")
		}
		email, _ := claims["email"].(string)
		c.Set(ContextUserID, sub)
		c.Set(ContextEmail, email)
		return next(c)
	}
}
