package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/taskapp/taskstream/internal/api/metrics"
)

// Auth validates the JWT and injects claims into context.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			username, userID, err := VerifyToken(parts[1], jwtSecret)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set("username", username)
			c.Set("user_id", userID)

			return next(c)
		}
	}
}

// VerifyToken parses and verifies an HS256 token, returning the subject
// username and user id claims. Shared by the Auth middleware and the push
// stream handler, which accepts the token via query parameter instead of a
// header.
func VerifyToken(token, jwtSecret string) (username string, userID int64, err error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		if err == nil {
			err = jwt.ErrTokenInvalidClaims
		}
		return "", 0, err
	}

	username, _ = claims["sub"].(string)
	if uid, ok := claims["uid"].(float64); ok {
		userID = int64(uid)
	}
	if username == "" {
		return "", 0, jwt.ErrTokenInvalidSubject
	}
	return username, userID, nil
}
