package auth

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Identity extraction only. Credential verification and token issuance live
// in the auth service; this package trusts its HMAC-signed access tokens.

type Middleware struct {
	JWTSecret []byte
}

func (m *Middleware) parse(c echo.Context) (jwt.MapClaims, error) {
	cookie, err := c.Cookie("accessToken")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}
	if cookie.Value == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func setUserContext(c echo.Context, claims jwt.MapClaims) error {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	role, _ := claims["role"].(string)
	c.Set("userID", uint(sub))
	c.Set("role", role)
	return nil
}

func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.parse(c)
		if err != nil {
			return err
		}
		if err := setUserContext(c, claims); err != nil {
			return err
		}
		return next(c)
	}
}

func (m *Middleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.parse(c)
		if err != nil {
			return err
		}
		if err := setUserContext(c, claims); err != nil {
			return err
		}
		if role, _ := c.Get("role").(string); role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
		return next(c)
	}
}

// UserID reads the identity placed on the context by the middleware.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get("userID").(uint)
	return id, ok
}

func IsAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "admin"
}
