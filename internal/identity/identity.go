// Package identity turns an inbound bearer credential into a Principal.
//
// Exactly one strategy is active per process: self-contained signed tokens
// (optionally accepting demo tokens) or delegated verification against an
// external identity provider followed by a directory lookup.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// Resolver resolves a bearer credential to a Principal
type Resolver interface {
	Resolve(ctx context.Context, credential string) (models.Principal, error)
}

// Directory is the read-only store view used to resolve roles and scope
type Directory interface {
	UserTerritories(ctx context.Context, email string) ([]string, error)
	FindCustomerUser(ctx context.Context, email string) (*models.CustomerUser, error)
	CustomerTerritories(ctx context.Context, customerNumber string) ([]string, error)
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// Anonymous is the explicit lowest-privilege Principal: a Customer with no
// customer number, which the access policy scopes to nothing.
func Anonymous() models.Principal {
	return models.Principal{
		Email:     "anonymous",
		Name:      "Anonymous User",
		Role:      models.RoleCustomer,
		Anonymous: true,
	}
}

// ParseBearer extracts the credential from an Authorization header value
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthenticated("authorization header required")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperr.Unauthenticated("authorization header must be in format 'Bearer <token>'")
	}
	return parts[1], nil
}

// New selects the resolver configured by AUTH_MODE
func New(opts config.AuthOptions, dir Directory) (Resolver, error) {
	switch opts.Mode {
	case config.AuthModeToken:
		return &TokenResolver{Secret: []byte(opts.JWTSecret), AllowDemo: opts.DemoAuth}, nil
	case config.AuthModeDelegated:
		if dir == nil {
			return nil, fmt.Errorf("delegated auth requires a directory")
		}
		return NewDelegatedResolver(opts, dir), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", opts.Mode)
	}
}
