package usecase

import (
	authdomain "email-agent-backend/internal/auth/domain"
	authdto "email-agent-backend/internal/auth/dto"
)

// AuthUsecase defines the interface for account and device-token use cases
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	ValidateToken(token string) (*authdomain.User, error)
	GetUser(userID string) (*authdomain.User, error)
	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(userID, token string) error
}
