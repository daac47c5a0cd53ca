package v1

import (
	"net/http"

	"github.com/go-chi/render"

	"faaxis/internal/app/model/api"
	"faaxis/internal/service"
)

// UpdateUser updates the caller's profile
// @Summary Update profile
// @Tags account
// @Accept json
// @Produce json
// @Param request body api.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} api.UserEnvelope
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/user [patch]
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateProfileRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	p := principalFrom(r.Context())
	user, err := h.authService.UpdateProfile(r.Context(), p.User.ID, &service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, &api.UserEnvelope{User: api.NewUserResponse(user)})
}

// ForgotPassword starts a password reset
// @Summary Request password reset
// @Description Always succeeds; a reset link is emailed if the account exists
// @Tags account
// @Accept json
// @Produce json
// @Param request body api.ForgotPasswordRequest true "Account email"
// @Success 200 {object} api.SuccessResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /api/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ForgotPasswordRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderSuccess(w, r, http.StatusOK, "If an account exists for this email, a reset link has been sent")
}

// ResetPassword completes a password reset
// @Summary Reset password
// @Tags account
// @Accept json
// @Produce json
// @Param request body api.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} api.SuccessResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ResetPasswordRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderSuccess(w, r, http.StatusOK, "Password reset successfully")
}

// VerifyEmail confirms an email address
// @Summary Verify email
// @Tags account
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} api.SuccessResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/verify-email [get]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.renderError(w, r, http.StatusBadRequest, "validation_error", "token is required")
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), token); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderSuccess(w, r, http.StatusOK, "Email verified successfully")
}

// ResendVerification emails a fresh verification link
// @Summary Resend verification email
// @Tags account
// @Produce json
// @Success 200 {object} api.SuccessResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /api/resend-verification [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if err := h.authService.ResendVerification(r.Context(), p.User.ID); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.renderSuccess(w, r, http.StatusOK, "Verification email sent")
}
