package handlers

import (
	"net/http"
	"time"

	"github.com/eventhon/eventhon/internal/config"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/service"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	auth    *service.AuthService
	session config.SessionConfig
	logger  *logrus.Logger
}

func NewAuthHandlers(auth *service.AuthService, session config.SessionConfig, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		auth:    auth,
		session: session,
		logger:  logger,
	}
}

type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type ResendOTPRequest struct {
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithMessage(w, http.StatusOK, "OTP sent to email. Please verify.")
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if err := h.auth.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithMessage(w, http.StatusOK, "Account verified successfully")
}

func (h *AuthHandlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if err := h.auth.ResendOTP(r.Context(), req.Email); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithMessage(w, http.StatusOK, "OTP sent to email. Please verify.")
}

// Login returns the session and also sets it as an httpOnly cookie.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookie(session.Token, h.session.CookieMaxAge))
	respondWithJSON(w, http.StatusOK, session)
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), claimsOf(r)); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookie("", -1))
	respondWithMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r.Context(), claimsOf(r).UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// cookie builds the session cookie. A negative maxAge deletes it.
func (h *AuthHandlers) cookie(value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     h.session.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.session.CookieDomain,
		HttpOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(maxAge / time.Second)
	}
	return c
}
