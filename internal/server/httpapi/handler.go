package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/dmitrijs2005/chirp/internal/server/services"
)

func (s *HTTPServer) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, w, &req); err != nil {
		s.metrics.authEvent("register", err)
		s.writeError(w, r, err)
		return
	}

	result, err := s.auth.Register(r.Context(), services.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	s.metrics.authEvent("register", err)
	if err != nil {
		code := s.writeError(w, r, err)
		s.logger.Info(r.Context(), "Registration rejected", "code", code)
		return
	}

	s.logger.Info(r.Context(), "Registered", "account_id", result.User.ID)
	s.writeJSON(w, r, http.StatusOK, toAuthResponse(result))
}

func (s *HTTPServer) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, w, &req); err != nil {
		s.metrics.authEvent("login", err)
		s.writeError(w, r, err)
		return
	}

	result, err := s.auth.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	s.metrics.authEvent("login", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, toAuthResponse(result))
}

func (s *HTTPServer) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, w, &req); err != nil {
		s.metrics.authEvent("refresh", err)
		s.writeError(w, r, err)
		return
	}

	result, err := s.auth.Refresh(r.Context(), services.RefreshInput{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	s.metrics.authEvent("refresh", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, toAuthResponse(result))
}

// Logout does not sit behind accessTokenMiddleware: an expired or foreign
// token still gets a 200 so clients can always clear their session.
func (s *HTTPServer) Logout(w http.ResponseWriter, r *http.Request) {
	err := s.auth.Logout(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
	s.metrics.authEvent("logout", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *HTTPServer) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeUnauthorized(w, r, CodeInvalidToken)
		return
	}

	account, err := s.auth.Me(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			s.writeUnauthorized(w, r, CodeAccountNotFound)
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, toUserResponse(account))
}

func (s *HTTPServer) RequestAvatarUpload(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeUnauthorized(w, r, CodeInvalidToken)
		return
	}

	upload, err := s.avatars.RequestUpload(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			s.writeUnauthorized(w, r, CodeAccountNotFound)
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, avatarUploadResponse{
		UploadURL: upload.UploadURL,
		AvatarURL: upload.AvatarURL,
		ExpiresAt: upload.ExpiresAt.UTC(),
	})
}
