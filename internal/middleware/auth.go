package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/labstack/echo/v4"
)

type OperatorCtxKey struct {
}

// AuthJWTMiddleware requires an operator bearer token on the group. With no
// server.jwtSecretKey configured the group is open.
func (mw *MiddlewareManager) AuthJWTMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			secret := mw.cfg.Server.JwtSecretKey
			if secret == "" {
				return next(c)
			}

			bearerHeader := c.Request().Header.Get("Authorization")
			headerParts := strings.Split(bearerHeader, " ")
			if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "Bearer") {
				mw.logger.Warnf("auth middleware RequestID: %s, malformed authorization header", utils.GetRequestID(c))
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			claims, err := utils.ValidateToken(headerParts[1], secret)
			if err != nil {
				mw.logger.Warnf("auth middleware RequestID: %s, validateJWTToken: %v", utils.GetRequestID(c), err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			c.Set("operator", claims.Operator)
			ctx := context.WithValue(c.Request().Context(), OperatorCtxKey{}, claims.Operator)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
