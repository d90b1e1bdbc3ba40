package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// TokenVerifier checks a Firebase ID token and returns its subject.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware returns nil when projectID is empty; callers then serve
// the API without Firebase auth.
func NewAuthMiddleware(ctx context.Context, projectID string) (*AuthMiddleware, error) {
	if projectID == "" {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return NewAuthMiddlewareWithVerifier(client), nil
}

func NewAuthMiddlewareWithVerifier(v TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "missing bearer token"))
		}
		tokenStr := strings.TrimPrefix(authz, "Bearer ")
		token, err := m.verifier.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("invalid_token", "token verification failed"))
		}
		c.Set("uid", token.UID)
		return next(c)
	}
}

// errorBody mirrors handler.ErrorResponse without importing it.
func errorBody(code, message string) map[string]map[string]string {
	return map[string]map[string]string{"error": {"code": code, "message": message}}
}
