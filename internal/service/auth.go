package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/identity"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const invalidCredentials = "Invalid email or password"

// AuthService signs portal users in with email and password
type AuthService struct {
	users  UserStore
	issuer *identity.Issuer
}

func NewAuthService(users UserStore, issuer *identity.Issuer) *AuthService {
	return &AuthService{users: users, issuer: issuer}
}

// Login checks the password and returns the user with a signed bearer token
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.BadRequest("email and password are required")
	}

	user, err := s.users.FindCustomerUser(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated(invalidCredentials)
		}
		return nil, classify(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("Account is inactive. Please contact support.")
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthenticated(invalidCredentials)
	}

	if err := s.users.TouchLastLogin(ctx, user.Email); err != nil {
		logging.LogKV("warn", "last_login_update_failed", map[string]interface{}{"email": user.Email, "error": err.Error()})
	}

	territories, err := s.users.UserTerritories(ctx, user.Email)
	if err != nil {
		return nil, classify(err, "failed to load territories")
	}
	if len(territories) == 0 && user.CustomerNumber != "" {
		territories, err = s.users.CustomerTerritories(ctx, user.CustomerNumber)
		if err != nil {
			return nil, classify(err, "failed to load territories")
		}
	}

	role, known := models.ParseRole(user.Role)
	if !known {
		logging.LogKV("warn", "unknown_role_downgraded", map[string]interface{}{"role": user.Role, "email": user.Email})
	}
	name := user.FullName()
	if name == "" {
		name = "Unknown User"
	}

	principal := models.Principal{
		Email:          user.Email,
		Name:           name,
		Role:           role,
		CustomerNumber: user.CustomerNumber,
		CustomerName:   user.CustomerName,
		Territories:    territories,
	}
	token, err := s.issuer.Issue(principal)
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue token")
	}

	logging.LogKV("info", "login", map[string]interface{}{"email": user.Email, "role": string(role)})
	return &models.LoginResponse{
		Email:          principal.Email,
		Name:           principal.Name,
		CustomerNumber: principal.CustomerNumber,
		CustomerName:   principal.CustomerName,
		Role:           principal.Role,
		Territories:    principal.Territories,
		Token:          token,
	}, nil
}
