package httpapi

import (
	"time"

	"github.com/dmitrijs2005/chirp/internal/server/models"
	"github.com/dmitrijs2005/chirp/internal/server/services"
)

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	Email       string    `json:"email,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	User         userResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type avatarUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	AvatarURL string    `json:"avatarUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type databaseHealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func toUserResponse(a *models.Account) userResponse {
	return userResponse{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		Bio:         a.Bio,
		AvatarURL:   a.AvatarURL,
		CreatedAt:   a.CreatedAt.UTC(),
	}
}

func toAuthResponse(r *services.AuthResult) authResponse {
	return authResponse{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresAt:    r.ExpiresAt.UTC(),
		RefreshToken: r.RefreshToken,
		User:         toUserResponse(r.User),
	}
}
