package http

import (
	"net/http"
	"time"

	"github.com/psytech/auth-backend/internal/auth/service"
	"github.com/psytech/auth-backend/internal/common/constants"
	commonhttp "github.com/psytech/auth-backend/internal/common/http"
	"github.com/psytech/auth-backend/internal/common/logger"
	userdomain "github.com/psytech/auth-backend/internal/user/domain"
)

type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userPayload struct {
	ID               string    `json:"id"`
	PhoneNumber      string    `json:"phoneNumber"`
	Name             string    `json:"name"`
	BusinessName     string    `json:"businessName"`
	Purpose          string    `json:"purpose"`
	ShowDate         bool      `json:"showDate"`
	Language         string    `json:"language"`
	ProfileImagePath string    `json:"profileImagePath"`
	LogoPath         string    `json:"logoPath"`
	IsPremium        bool      `json:"isPremium"`
	CreatedAt        time.Time `json:"createdAt"`
}

type sessionResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// Token duplicates AccessToken for clients that predate the split pair.
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expiresIn"`
	User      *userPayload `json:"user,omitempty"`
	IsNewUser bool         `json:"isNewUser"`
}

type Handler struct {
	sessions *service.SessionService
	errors   *commonhttp.ErrorHandler
	log      *logger.Logger
}

func NewHandler(sessions *service.SessionService, log *logger.Logger) http.Handler {
	h := &Handler{
		sessions: sessions,
		errors:   commonhttp.NewErrorHandler(log),
		log:      log,
	}
	post := commonhttp.RequireMethod(http.MethodPost)
	bounded := commonhttp.WithTimeout(constants.DefaultAuthRequestTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log))
	mux.HandleFunc("/api/auth/send-otp", post(bounded(h.sendOTP)))
	mux.HandleFunc("/api/auth/verify-otp", post(bounded(h.verifyOTP)))
	mux.HandleFunc("/api/auth/refresh-token", post(bounded(h.refresh)))
	mux.HandleFunc("/api/auth/logout", post(bounded(h.logout)))
	return mux
}

func (h *Handler) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("send-otp failed: invalid json: %v", err)
		commonhttp.WriteErrorCode(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
		return
	}

	if fields := commonhttp.ValidateStruct(req); fields != nil {
		h.errors.HandleError(w, r, service.ErrValidation.WithMessage(commonhttp.FirstValidationMessage(fields)))
		return
	}

	if err := h.sessions.RequestOTP(r.Context(), req.PhoneNumber); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteSuccess(w, http.StatusOK, "OTP sent successfully")
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("verify-otp failed: invalid json: %v", err)
		commonhttp.WriteErrorCode(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
		return
	}

	if fields := commonhttp.ValidateStruct(req); fields != nil {
		h.errors.HandleError(w, r, service.ErrValidation.WithMessage(commonhttp.FirstValidationMessage(fields)))
		return
	}

	session, err := h.sessions.VerifyOTPAndIssueSession(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newSessionResponse(session, true))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		commonhttp.WriteErrorCode(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
		return
	}

	if req.RefreshToken == "" {
		commonhttp.WriteErrorCode(w, http.StatusBadRequest, commonhttp.CodeMissingRefreshToken, "refreshToken is required")
		return
	}

	session, err := h.sessions.RotateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, newSessionResponse(session, false))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength > 0 {
		if err := commonhttp.DecodeJSON(r, &req); err != nil {
			commonhttp.WriteErrorCode(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
			return
		}
	}

	accessToken := ""
	if header := r.Header.Get("Authorization"); header != "" {
		if token, err := service.ExtractBearerToken(header); err == nil {
			accessToken = token
		}
	}

	if err := h.sessions.Logout(r.Context(), accessToken, req.RefreshToken); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteSuccess(w, http.StatusOK, "logged out successfully")
}

func newSessionResponse(session service.Session, includeUser bool) sessionResponse {
	resp := sessionResponse{
		Success:      true,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		Token:        session.AccessToken,
		ExpiresIn:    session.ExpiresIn,
		IsNewUser:    session.IsNewUser,
	}
	if includeUser {
		payload := newUserPayload(session.User)
		resp.User = &payload
	}
	return resp
}

func newUserPayload(user userdomain.User) userPayload {
	return userPayload{
		ID:               string(user.ID),
		PhoneNumber:      user.PhoneNumber,
		Name:             user.Name,
		BusinessName:     user.BusinessName,
		Purpose:          user.Purpose,
		ShowDate:         user.ShowDate,
		Language:         user.Language,
		ProfileImagePath: user.ProfileImagePath,
		LogoPath:         user.LogoPath,
		IsPremium:        user.IsPremium,
		CreatedAt:        user.CreatedAt,
	}
}
