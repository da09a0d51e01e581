package mockbackend

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/schoolhub/schoolctl/internal/models"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const requiredField string = "This field is required."

type loginBody struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	SchoolCode string `json:"school_code"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

type registerBody struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password2"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            string `json:"role"`
	SchoolCode      string `json:"school_code"`
}

type paymentBody struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Student     string `json:"student"`
}

// fieldErrors keeps the order in which the fields were validated in the response
type fieldErrors struct {
	*orderedmap.OrderedMap[string, []string]
}

func (f fieldErrors) add(field, message string) {
	messages, _ := f.Get(field)
	f.Set(field, append(messages, message))
}

func newFieldErrors() fieldErrors {
	return fieldErrors{orderedmap.New[string, []string]()}
}

func (s *Server) schoolCode(c echo.Context, fromBody string) string {
	if fromBody != "" {
		return strings.ToUpper(fromBody)
	}
	return strings.ToUpper(c.Request().Header.Get(s.tenantHeader))
}

func (s *Server) PostLogin(c echo.Context) error {
	var body loginBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error."})
	}
	schoolCode := s.schoolCode(c, body.SchoolCode)
	errs := newFieldErrors()
	if strings.TrimSpace(body.Username) == "" {
		errs.add("username", requiredField)
	}
	if body.Password == "" {
		errs.add("password", requiredField)
	}
	if schoolCode == "" {
		errs.add("school_code", requiredField)
	}
	if errs.Len() > 0 {
		return c.JSON(http.StatusBadRequest, errs.OrderedMap)
	}
	user, err := s.users.authenticate(body.Username, body.Password, schoolCode)
	if err != nil {
		slog.Info("MOCK BACKEND", "message", "login failed", "username", body.Username, "schoolCode", schoolCode)
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "No active account found with the given credentials"})
	}
	access, refresh, err := s.tokens.issuePair(user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access, "refresh": refresh, "user": user.Profile()})
}

func (s *Server) PostTokenRefresh(c echo.Context) error {
	var body refreshBody
	if err := c.Bind(&body); err != nil || body.Refresh == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"refresh": []string{requiredField}})
	}
	claims, err := s.tokens.parse(body.Refresh, refreshTokenType)
	if err != nil {
		slog.Info("MOCK BACKEND", "message", "refresh rejected", "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token is invalid or expired", "code": "token_not_valid"})
	}
	user, found := s.users.get(claims.Username)
	if !found || user.ID.String() != claims.Subject {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "User not found", "code": "user_not_found"})
	}
	access, err := s.tokens.issue(user, accessTokenType, s.tokens.accessTTL)
	if err != nil {
		return err
	}
	response := echo.Map{"access": access}
	if s.config.RotateRefreshTokens {
		refresh, err := s.tokens.issue(user, refreshTokenType, s.tokens.refreshTTL)
		if err != nil {
			return err
		}
		s.tokens.revoke(claims)
		response["refresh"] = refresh
	}
	return c.JSON(http.StatusOK, response)
}

func (s *Server) PostRegister(c echo.Context) error {
	var body registerBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error."})
	}
	schoolCode := s.schoolCode(c, body.SchoolCode)
	errs := newFieldErrors()
	if strings.TrimSpace(body.Username) == "" {
		errs.add("username", requiredField)
	} else if _, found := s.users.get(body.Username); found {
		errs.add("username", "A user with that username already exists.")
	}
	if body.Email != "" && !strings.Contains(body.Email, "@") {
		errs.add("email", "Enter a valid email address.")
	}
	if body.Password == "" {
		errs.add("password", requiredField)
	} else if len(body.Password) < 8 {
		errs.add("password", "This password is too short. It must contain at least 8 characters.")
	}
	if schoolCode == "" {
		errs.add("school_code", requiredField)
	}
	if errs.Len() == 0 && body.PasswordConfirm != "" && body.PasswordConfirm != body.Password {
		errs.add("non_field_errors", "The two password fields didn't match.")
	}
	if errs.Len() > 0 {
		return c.JSON(http.StatusBadRequest, errs.OrderedMap)
	}
	user, err := s.users.add(NewUser{
		Username:   body.Username,
		Email:      body.Email,
		Password:   body.Password,
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Role:       body.Role,
		SchoolCode: schoolCode,
	})
	if errors.Is(err, errDuplicateUsername) {
		return c.JSON(http.StatusBadRequest, echo.Map{"username": []string{"A user with that username already exists."}})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user.Profile())
}

func (s *Server) GetMe(c echo.Context) error {
	claims, ok := contextClaims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
	}
	user, found := s.users.get(claims.Username)
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
	}
	return c.JSON(http.StatusOK, user.Profile())
}

// GetUsers lists the users of the school of the caller, only for administrators
func (s *Server) GetUsers(c echo.Context) error {
	claims, ok := contextClaims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
	}
	caller, found := s.users.get(claims.Username)
	if !found || caller.Role != "admin" {
		return c.JSON(http.StatusForbidden, echo.Map{"detail": "You do not have permission to perform this action."})
	}
	profiles := []models.UserProfile{}
	for _, user := range s.users.list() {
		if user.SchoolCode == caller.SchoolCode {
			profiles = append(profiles, user.Profile())
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(profiles), "results": profiles})
}

func (s *Server) GetPayments(c echo.Context) error {
	claims, ok := contextClaims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
	}
	payments := s.payments.list(claims.SchoolCode)
	return c.JSON(http.StatusOK, echo.Map{"count": len(payments), "results": payments})
}

func (s *Server) PostPayment(c echo.Context) error {
	claims, ok := contextClaims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
	}
	var body paymentBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error."})
	}
	errs := newFieldErrors()
	if body.Amount == "" {
		errs.add("amount", requiredField)
	} else if amount, err := strconv.ParseFloat(body.Amount, 64); err != nil {
		errs.add("amount", "A valid number is required.")
	} else if amount <= 0 {
		errs.add("amount", "Ensure this value is greater than 0.")
	}
	if errs.Len() > 0 {
		return c.JSON(http.StatusBadRequest, errs.OrderedMap)
	}
	payment := s.payments.add(claims.SchoolCode, Payment{
		Amount:      body.Amount,
		Description: body.Description,
		Student:     body.Student,
		CreatedBy:   claims.Username,
	})
	return c.JSON(http.StatusCreated, payment)
}
