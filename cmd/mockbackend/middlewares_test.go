package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerUsesConfiguredTenantHeader(t *testing.T) {
	buf := bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := echo.New()
	e.Pre(middleware.RequestID())
	e.Use(requestLogger(logger, "X-Tenant"))
	e.GET("/api/accounts/me/", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/me/", nil)
	req.Header.Set("X-Tenant", "SCH-042")
	req.Header.Set("X-School-Code", "OTHER")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "REQUEST", line["msg"])
	assert.Equal(t, "SCH-042", line["schoolCode"])
	assert.Equal(t, "/api/accounts/me/", line["handler"])
	assert.NotEmpty(t, line["requestID"])
}

func TestUserFlags(t *testing.T) {
	var users userFlags

	require.NoError(t, users.Set("jdoe:secret:sch-001"))
	require.NoError(t, users.Set("admin:pw:SCH-001:admin"))
	assert.Error(t, users.Set("missing-school:pw"))

	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[1].Role)
	assert.Equal(t, "jdoe,admin", users.String())
}
