package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"boxoffice/internal/auth"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/utils"
)

type Handler struct {
	Auth     *auth.Service
	Logger   *logger.Logger
	validate *validator.Validate
}

func NewHandler(authService *auth.Service, log *logger.Logger) *Handler {
	return &Handler{Auth: authService, Logger: log, validate: validator.New()}
}

type registerRequest struct {
	Name           string `json:"name" validate:"required,max=64"`
	Email          string `json:"email" validate:"required,email,max=64"`
	Password       string `json:"password" validate:"required,min=8"`
	PasswordRepeat string `json:"password_repeat" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ValidationResponse("Please correct the highlighted fields", registrationFieldErrors(err)))
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Email already registered", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Register: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not register", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(
		"A confirmation email has been sent to you",
		map[string]interface{}{"user_id": user.ID, "email": user.Email},
	))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Email and password are required", err.Error()))
		return
	}

	token, user, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid email or password", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Login: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not log in", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged in", map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"confirmed": user.Confirmed,
		},
	}))
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.Auth.Confirm(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("The confirmation link is invalid or has expired", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Confirm: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not confirm account", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("You have confirmed your account", nil))
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPerformRequest struct {
	Password       string `json:"password" validate:"required,min=8"`
	PasswordRepeat string `json:"password_repeat" validate:"required,eqfield=Password"`
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("A valid email address is required", err.Error()))
		return
	}

	if err := h.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RequestPasswordReset: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not request password reset", err.Error()))
		return
	}
	// Same response for known and unknown addresses.
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("If the address is registered, a reset email has been sent", nil))
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req resetPerformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ValidationResponse("Please correct the highlighted fields", registrationFieldErrors(err)))
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), token, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("The reset link is invalid or has expired", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ResetPassword: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not reset password", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Your password has been updated", nil))
}

func registrationFieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				fields[fe.Field()] = "This field is required."
			case "email":
				fields[fe.Field()] = "Invalid email address."
			case "eqfield":
				fields[fe.Field()] = "Passwords do not match."
			case "min":
				fields[fe.Field()] = "Password must be at least 8 characters."
			case "max":
				fields[fe.Field()] = "Field must be 64 characters or fewer."
			default:
				fields[fe.Field()] = "Invalid value."
			}
		}
	}
	return fields
}
