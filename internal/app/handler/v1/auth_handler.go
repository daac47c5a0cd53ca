package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"faaxis/internal/app/model/api"
	"faaxis/internal/service"
)

// CookieConfig controls the session and token cookies.
type CookieConfig struct {
	SessionName string
	TokenName   string
	MaxAge      time.Duration
	TokenMaxAge time.Duration
	Secure      bool
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService service.AuthService
	cookies     CookieConfig
	validator   *validator.Validate
	logger      *logrus.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService service.AuthService, cookies CookieConfig, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		validator:   validator.New(),
		logger:      logger,
	}
}

// RegisterRoutes registers the /api routes. rateLimit wraps the endpoints
// that accept credentials or single-use secrets.
func (h *AuthHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		// Credential endpoints
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/jwt/login", h.TokenLogin)
			r.Post("/jwt/register", h.TokenRegister)
			r.Post("/admin-auth/verify", h.AdminVerify)
			r.Post("/admin-auth/verify-code", h.AdminVerifyCode)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})

		r.Post("/logout", h.Logout)
		r.Get("/jwt/auth-bridge", h.AuthBridge)
		r.Get("/verify-email", h.VerifyEmail)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/user", h.GetUser)
			r.Patch("/user", h.UpdateUser)
			r.Post("/resend-verification", h.ResendVerification)
			r.Post("/generate-totp-secret", h.GenerateTOTPSecret)
			r.With(rateLimit).Post("/verify-totp", h.VerifyTOTP)
			r.Post("/disable-totp", h.DisableTOTP)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/users", h.ListUsers)
			r.Delete("/users/{id}", h.DeleteUser)
		})
	})
}

// Login handles session login
// @Summary Session login
// @Description Authenticate with username and password and start a cookie session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body api.LoginRequest true "Login request"
// @Success 200 {object} api.SessionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.setCookie(w, h.cookies.SessionName, res.SessionID, h.cookies.MaxAge)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &api.SessionResponse{
		User:      api.NewUserResponse(res.User),
		SessionID: res.SessionID,
	})
}

// Register handles session registration
// @Summary Register
// @Description Create an account and start a cookie session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body api.RegisterRequest true "Register request"
// @Success 201 {object} api.SessionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 500 {object} api.ErrorResponse
// @Router /api/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := h.authService.Register(r.Context(), registerInput(&req))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.setCookie(w, h.cookies.SessionName, res.SessionID, h.cookies.MaxAge)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, &api.SessionResponse{
		User:      api.NewUserResponse(res.User),
		SessionID: res.SessionID,
	})
}

// Logout handles logout
// @Summary Logout
// @Description Destroy the current session and clear auth cookies
// @Tags auth
// @Produce json
// @Success 200 {object} api.SuccessResponse
// @Router /api/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), h.sessionID(r)); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Failed to destroy session")
	}

	h.clearCookie(w, h.cookies.SessionName)
	h.clearCookie(w, h.cookies.TokenName)
	h.renderSuccess(w, r, http.StatusOK, "Logged out successfully")
}

// GetUser returns the authenticated user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} api.UserEnvelope
// @Failure 401 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /api/user [get]
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	render.JSON(w, r, &api.UserEnvelope{User: api.NewUserResponse(p.User)})
}

// TokenLogin handles token login
// @Summary Token login
// @Description Authenticate with username and password and receive a signed token
// @Tags jwt
// @Accept json
// @Produce json
// @Param request body api.LoginRequest true "Login request"
// @Success 200 {object} api.TokenResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/jwt/login [post]
func (h *AuthHandler) TokenLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := h.authService.TokenLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderToken(w, r, http.StatusOK, res)
}

// TokenRegister handles token registration
// @Summary Token register
// @Tags jwt
// @Accept json
// @Produce json
// @Param request body api.RegisterRequest true "Register request"
// @Success 201 {object} api.TokenResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 500 {object} api.ErrorResponse
// @Router /api/jwt/register [post]
func (h *AuthHandler) TokenRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := h.authService.TokenRegister(r.Context(), registerInput(&req))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderToken(w, r, http.StatusCreated, res)
}

// AuthBridge exchanges the session cookie for a token
// @Summary Session to token bridge
// @Description Issue a token for the user of the current session
// @Tags jwt
// @Produce json
// @Success 200 {object} api.TokenResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/jwt/auth-bridge [get]
func (h *AuthHandler) AuthBridge(w http.ResponseWriter, r *http.Request) {
	res, err := h.authService.Bridge(r.Context(), h.sessionID(r))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderToken(w, r, http.StatusOK, res)
}

// Helper methods

func registerInput(req *api.RegisterRequest) *service.RegisterInput {
	return &service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}
}

func (h *AuthHandler) renderToken(w http.ResponseWriter, r *http.Request, status int, res *service.TokenResult) {
	h.setCookie(w, h.cookies.TokenName, res.Token, h.cookies.TokenMaxAge)
	render.Status(r, status)
	render.JSON(w, r, &api.TokenResponse{
		User:      api.NewUserResponse(res.User),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *AuthHandler) decodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return h.validator.Struct(v)
}

// renderServiceError maps service errors onto the HTTP error taxonomy.
// Infrastructure failures are logged and reported generically.
func (h *AuthHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrUserExists):
		h.renderError(w, r, http.StatusBadRequest, "conflict", "An account with this email already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		h.renderError(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrTooManyAttempts):
		h.renderError(w, r, http.StatusUnauthorized, "too_many_attempts", "Too many failed attempts, please sign in again")
	case errors.Is(err, service.ErrInvalidCode):
		h.renderError(w, r, http.StatusUnauthorized, "invalid_code", "Invalid or expired verification code")
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrTokenExpired):
		h.renderError(w, r, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
	case errors.Is(err, service.ErrUnauthenticated):
		h.renderError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		h.renderError(w, r, http.StatusForbidden, "forbidden", "Insufficient permissions")
	case errors.Is(err, service.ErrUserNotFound):
		h.renderError(w, r, http.StatusNotFound, "not_found", "User not found")
	default:
		h.logger.WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"error": err.Error(),
		}).Error("Request failed")
		h.renderError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (h *AuthHandler) renderError(w http.ResponseWriter, r *http.Request, status int, errorType, message string) {
	render.Status(r, status)
	render.JSON(w, r, &api.ErrorResponse{
		Error:   errorType,
		Message: message,
		Success: false,
	})
}

func (h *AuthHandler) renderSuccess(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, &api.SuccessResponse{
		Message: message,
		Success: true,
	})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) sessionID(r *http.Request) string {
	c, err := r.Cookie(h.cookies.SessionName)
	if err != nil {
		return ""
	}
	return c.Value
}
