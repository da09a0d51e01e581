// Package mockbackend is a development stand-in for the school management backend. It implements
// the authentication endpoints with real JWTs and a few tenant scoped resources.
package mockbackend

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/schoolhub/schoolctl/internal/config"
)

const DefaultBasePath string = "/api"
const DefaultTenantHeader string = "X-School-Code"

type Server struct {
	config       *config.MockBackendConfig
	basePath     string
	tenantHeader string
	seed         []NewUser
	users        *userRepository
	tokens       *tokenIssuer
	payments     *paymentStore
}

func (s *Server) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	e := server.Group(s.basePath)
	e.Use(commonMiddlewares...)

	e.POST("/auth/login/", s.PostLogin)
	e.POST("/auth/token/refresh/", s.PostTokenRefresh)
	e.POST("/auth/users/register/", s.PostRegister)

	protected := e.Group("", s.RequireAuthentication)
	protected.GET("/accounts/me/", s.GetMe)
	protected.GET("/accounts/users/", s.GetUsers)
	protected.GET("/payments/payments/", s.GetPayments)
	protected.POST("/payments/payments/", s.PostPayment)
}

// AddUser creates a user directly, used to seed accounts
func (s *Server) AddUser(newUser NewUser) (User, error) {
	return s.users.add(newUser)
}

type ServerOption func(*Server) error

func WithConfig(mockConfig config.MockBackendConfig) ServerOption {
	return func(s *Server) error {
		err := mockConfig.Validate()
		if err != nil {
			return err
		}
		s.config = &mockConfig
		return nil
	}
}

func WithBasePath(basePath string) ServerOption {
	return func(s *Server) error {
		s.basePath = "/" + strings.Trim(basePath, "/")
		if s.basePath == "/" {
			s.basePath = ""
		}
		return nil
	}
}

func WithTenantHeader(header string) ServerOption {
	return func(s *Server) error {
		if strings.TrimSpace(header) == "" {
			return fmt.Errorf("the tenant header name cannot be empty")
		}
		s.tenantHeader = header
		return nil
	}
}

func WithUsers(users ...NewUser) ServerOption {
	return func(s *Server) error {
		s.seed = append(s.seed, users...)
		return nil
	}
}

// NewServer creates the development backend. Without a signing key a random one is
// generated, tokens then do not survive a restart.
func NewServer(options ...ServerOption) (*Server, error) {
	server := Server{
		basePath:     DefaultBasePath,
		tenantHeader: DefaultTenantHeader,
		users:        newUserRepository(),
		payments:     newPaymentStore(),
	}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return &Server{}, err
		}
	}
	if server.config == nil {
		return &Server{}, fmt.Errorf("mock backend config not provided")
	}
	signingKey := []byte(server.config.SigningKey)
	if len(signingKey) == 0 {
		signingKey = make([]byte, 32)
		_, err := rand.Read(signingKey)
		if err != nil {
			return &Server{}, fmt.Errorf("cannot generate a signing key: %w", err)
		}
		slog.Warn("MOCK BACKEND", "message", "no signing key configured, tokens will not survive a restart")
	}
	server.tokens = newTokenIssuer(signingKey, server.config.AccessTokenTTL(), server.config.RefreshTokenTTL())
	for _, newUser := range server.seed {
		_, err := server.users.add(newUser)
		if err != nil {
			return &Server{}, fmt.Errorf("cannot seed user %q: %w", newUser.Username, err)
		}
	}
	return &server, nil
}
