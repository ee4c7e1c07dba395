package services

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"blocklab-backend/internal/middleware"
	"blocklab-backend/internal/models"
)

// AuthService authenticates researchers for the analytics, export, and
// experiment-admin endpoints. Participants never log in; they hold only their
// per-session secret.
type AuthService struct {
	researchers ResearcherStore
	jwtAuth     *middleware.JWTAuth
}

func NewAuthService(researchers ResearcherStore, jwtAuth *middleware.JWTAuth) *AuthService {
	return &AuthService{researchers: researchers, jwtAuth: jwtAuth}
}

// Login verifies credentials and returns a signed access token. Wrong email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.Researcher, error) {
	researcher, err := s.researchers.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if researcher == nil {
		return "", nil, &InvalidParticipantError{}
	}
	if bcrypt.CompareHashAndPassword([]byte(researcher.PasswordHash), []byte(password)) != nil {
		return "", nil, &InvalidParticipantError{}
	}

	token, err := s.jwtAuth.GenerateAccessToken(researcher.ID, researcher.Email)
	if err != nil {
		return "", nil, err
	}
	return token, researcher, nil
}
