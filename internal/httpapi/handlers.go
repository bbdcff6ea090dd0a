package httpapi

import (
	"errors"
	"net/http"

	"github.com/modernwms/wmsauth"
	"github.com/modernwms/wmsauth/directory"
	"github.com/modernwms/wmsauth/middleware"
	"go.uber.org/zap"
)

type loginData struct {
	directory.Summary
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	RefreshToken string   `json:"refresh_token"`
	Scopes       []string `json:"scopes"`
}

type refreshData struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	RefreshToken string   `json:"refresh_token"`
	UserID       string   `json:"user_id"`
	Scopes       []string `json:"scopes"`
}

type healthData struct {
	Status          string `json:"status"`
	Sessions        bool   `json:"sessions"`
	SessionsLatency string `json:"sessions_latency"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r, "username", "password")
	if err != nil || p.get("username") == "" || p.raw("password") == "" {
		writeFailure(w, http.StatusBadRequest, msgInvalidCredentials)
		return
	}

	res, err := s.engine.Login(r.Context(), p.get("username"), p.raw("password"))
	switch {
	case err == nil:
	case errors.Is(err, wmsauth.ErrInvalidCredentials):
		writeFailure(w, http.StatusBadRequest, msgInvalidCredentials)
		return
	case errors.Is(err, wmsauth.ErrLoginRateLimited):
		w.Header().Set("Retry-After", "60")
		writeFailure(w, http.StatusTooManyRequests, msgRateLimited)
		return
	default:
		s.unavailable(w, "login", err)
		return
	}

	writeSuccess(w, loginData{
		Summary:      res.Principal,
		AccessToken:  res.AccessToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
		RefreshToken: res.RefreshToken,
		Scopes:       res.Scopes,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r, "refresh_token")
	if err != nil || p.get("refresh_token") == "" {
		writeFailure(w, http.StatusBadRequest, msgInvalidRefresh)
		return
	}

	res, err := s.engine.Refresh(r.Context(), p.get("refresh_token"))
	switch {
	case err == nil:
	case errors.Is(err, wmsauth.ErrInvalidToken):
		writeFailure(w, http.StatusBadRequest, msgInvalidRefresh)
		return
	case errors.Is(err, wmsauth.ErrPrincipalNotFound):
		writeFailure(w, http.StatusNotFound, msgUserNotFound)
		return
	default:
		s.unavailable(w, "refresh", err)
		return
	}

	writeSuccess(w, refreshData{
		AccessToken:  res.AccessToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
		RefreshToken: res.RefreshToken,
		UserID:       res.PrincipalID,
		Scopes:       res.Scopes,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth, _ := middleware.AuthResultFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), auth.PrincipalID); err != nil {
		s.unavailable(w, "logout", err)
		return
	}
	writeSuccess(w, msgLoggedOut)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	auth, _ := middleware.AuthResultFromContext(r.Context())
	writeSuccess(w, auth.Principal)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r, "current_password", "new_password")
	if err != nil || p.raw("current_password") == "" || p.raw("new_password") == "" {
		writeFailure(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	auth, _ := middleware.AuthResultFromContext(r.Context())
	err = s.engine.ChangePassword(r.Context(), auth.PrincipalID, p.raw("current_password"), p.raw("new_password"))
	switch {
	case err == nil:
		writeSuccess(w, msgPasswordUpdated)
	case errors.Is(err, wmsauth.ErrInvalidCredentials):
		writeFailure(w, http.StatusBadRequest, msgCurrentPassword)
	case errors.Is(err, wmsauth.ErrPasswordReuse):
		writeFailure(w, http.StatusBadRequest, msgPasswordReuse)
	case errors.Is(err, wmsauth.ErrPasswordPolicy):
		writeFailure(w, http.StatusBadRequest, msgPasswordPolicy)
	case errors.Is(err, wmsauth.ErrPrincipalNotFound):
		writeFailure(w, http.StatusNotFound, msgUserNotFound)
	default:
		s.unavailable(w, "change password", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	data := healthData{
		Status:          "ok",
		Sessions:        h.SessionsAvailable,
		SessionsLatency: h.SessionsLatency.String(),
	}
	if !h.SessionsAvailable {
		data.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, data)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) unavailable(w http.ResponseWriter, op string, err error) {
	s.logger.Warn(op+" failed", zap.Error(err))
	writeFailure(w, http.StatusServiceUnavailable, msgUnavailable)
}
