package utils

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/schoolhub/schoolctl/internal/models"
)

const HeaderRequestID string = echo.HeaderXRequestID

func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// ULIDGenerator implements models.IDGenerator. IDs come from a process wide monotonic source,
// so the IDs of requests sent within the same millisecond still sort in sending order.
type ULIDGenerator struct{}

func (ULIDGenerator) ID() (string, error) {
	id, err := ulid.New(ulid.Now(), ulid.DefaultEntropy())
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRequestID returns the value of the X-Request-ID header that correlates an outgoing
// request with the backend logs, or "" when no ID could be generated
func NewRequestID(generator models.IDGenerator) string {
	if generator == nil {
		generator = ULIDGenerator{}
	}
	id, err := generator.ID()
	if err != nil {
		slog.Error("generating request ID failed", "error", err)
		return ""
	}
	return id
}
