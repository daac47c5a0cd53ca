package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"faaxis/internal/app/model/api"
	"faaxis/internal/service"
)

// AdminVerify handles the admin password step
// @Summary Admin password step
// @Description Verify admin credentials and email a one-time code
// @Tags admin-auth
// @Accept json
// @Produce json
// @Param request body api.AdminVerifyRequest true "Admin credentials"
// @Success 200 {object} api.AdminOTPResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/admin-auth/verify [post]
func (h *AuthHandler) AdminVerify(w http.ResponseWriter, r *http.Request) {
	var req api.AdminVerifyRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	otpKey, err := h.authService.AdminVerifyPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, &api.AdminOTPResponse{
		OTPKey:  otpKey,
		Message: "Verification code sent to your email",
	})
}

// AdminVerifyCode handles the admin one-time code step
// @Summary Admin code step
// @Description Exchange the emailed code for an admin session
// @Tags admin-auth
// @Accept json
// @Produce json
// @Param request body api.AdminVerifyCodeRequest true "One-time code"
// @Success 200 {object} api.SessionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/admin-auth/verify-code [post]
func (h *AuthHandler) AdminVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req api.AdminVerifyCodeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := h.authService.AdminVerifyCode(r.Context(), req.OTPKey, req.Code)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.setCookie(w, h.cookies.SessionName, res.SessionID, h.cookies.MaxAge)
	render.JSON(w, r, &api.SessionResponse{
		User:      api.NewUserResponse(res.User),
		SessionID: res.SessionID,
	})
}

// GenerateTOTPSecret handles TOTP setup
// @Summary Generate TOTP secret
// @Tags totp
// @Accept json
// @Produce json
// @Param request body api.TOTPUserRequest true "Account"
// @Success 200 {object} api.TOTPSetupResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /api/generate-totp-secret [post]
func (h *AuthHandler) GenerateTOTPSecret(w http.ResponseWriter, r *http.Request) {
	var req api.TOTPUserRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if !h.canManageTOTP(r, req.Username) {
		h.renderServiceError(w, r, service.ErrForbidden)
		return
	}

	setup, err := h.authService.GenerateTOTPSecret(r.Context(), req.Username)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, &api.TOTPSetupResponse{
		Secret:    setup.Secret,
		QRCodeURL: setup.QRCodeURL,
	})
}

// VerifyTOTP handles TOTP verification
// @Summary Verify TOTP code
// @Tags totp
// @Accept json
// @Produce json
// @Param request body api.VerifyTOTPRequest true "TOTP code"
// @Success 200 {object} api.TOTPVerifyResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /api/verify-totp [post]
func (h *AuthHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyTOTPRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if !h.canManageTOTP(r, req.Username) {
		h.renderServiceError(w, r, service.ErrForbidden)
		return
	}

	ok, err := h.authService.VerifyTOTP(r.Context(), req.Username, req.Code)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	if !ok {
		h.renderServiceError(w, r, service.ErrInvalidCode)
		return
	}

	render.JSON(w, r, &api.TOTPVerifyResponse{Verified: true})
}

// DisableTOTP handles TOTP removal
// @Summary Disable TOTP
// @Tags totp
// @Accept json
// @Produce json
// @Param request body api.TOTPUserRequest true "Account"
// @Success 200 {object} api.SuccessResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /api/disable-totp [post]
func (h *AuthHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	var req api.TOTPUserRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if !h.canManageTOTP(r, req.Username) {
		h.renderServiceError(w, r, service.ErrForbidden)
		return
	}

	if err := h.authService.DisableTOTP(r.Context(), req.Username); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderSuccess(w, r, http.StatusOK, "TOTP disabled successfully")
}

// ListUsers lists all accounts
// @Summary List users
// @Tags admin
// @Produce json
// @Success 200 {object} api.UserListResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /api/admin/users [get]
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	resp := &api.UserListResponse{Users: make([]*api.UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, api.NewUserResponse(u))
	}
	render.JSON(w, r, resp)
}

// DeleteUser removes an account
// @Summary Delete user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} api.SuccessResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /api/admin/users/{id} [delete]
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", "Invalid user id")
		return
	}

	actor := principalFrom(r.Context())
	if err := h.authService.DeleteUser(r.Context(), actor.User.ID, id); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderSuccess(w, r, http.StatusOK, "User deleted successfully")
}

// canManageTOTP allows callers to manage their own TOTP, and step-up admins
// anyone's. An admin account's TOTP is a second factor for the admin login,
// so it can only be changed from a step-up admin session.
func (h *AuthHandler) canManageTOTP(r *http.Request, username string) bool {
	p := principalFrom(r.Context())
	if p == nil {
		return false
	}
	if p.isAdmin() {
		return true
	}
	return !p.User.IsAdmin && strings.EqualFold(strings.TrimSpace(username), p.User.Username)
}
