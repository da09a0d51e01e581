package mockbackend

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const claimsCtxKey string = "tokenClaims"

// RequireAuthentication accepts requests with a valid access token whose school matches the
// tenant header
func (s *Server) RequireAuthentication(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		value, found := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !found || strings.TrimSpace(value) == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
		}
		claims, err := s.tokens.parse(value, accessTokenType)
		if err != nil {
			return c.JSON(
				http.StatusUnauthorized,
				echo.Map{"detail": "Given token not valid for any token type", "code": "token_not_valid"},
			)
		}
		schoolCode := c.Request().Header.Get(s.tenantHeader)
		if schoolCode == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"detail": "The " + s.tenantHeader + " header is required."})
		}
		if !strings.EqualFold(schoolCode, claims.SchoolCode) {
			return c.JSON(http.StatusForbidden, echo.Map{"detail": "You do not have permission to perform this action."})
		}
		c.Set(claimsCtxKey, claims)
		return next(c)
	}
}

func contextClaims(c echo.Context) (*tokenClaims, bool) {
	claims, ok := c.Get(claimsCtxKey).(*tokenClaims)
	return claims, ok
}
