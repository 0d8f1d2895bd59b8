package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// DemoTokenPrefix marks a base64 JSON user payload issued by the demo frontend
const DemoTokenPrefix = "demo-token-"

// TokenResolver verifies HMAC-signed JWTs and, when AllowDemo is set, demo tokens
type TokenResolver struct {
	Secret    []byte
	AllowDemo bool
}

func (t *TokenResolver) Resolve(_ context.Context, credential string) (models.Principal, error) {
	if credential == "" {
		return models.Principal{}, apperr.Unauthenticated("bearer token required")
	}
	if strings.HasPrefix(credential, DemoTokenPrefix) {
		if !t.AllowDemo {
			return models.Principal{}, apperr.Unauthenticated("demo tokens are not accepted")
		}
		return decodeDemoToken(strings.TrimPrefix(credential, DemoTokenPrefix)), nil
	}
	if len(t.Secret) == 0 {
		return models.Principal{}, apperr.Unauthenticated("signed tokens are not accepted")
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.Secret, nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, apperr.Unauthenticated("the provided token is invalid or expired")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, apperr.Unauthenticated("unreadable token claims")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return models.Principal{}, apperr.Unauthenticated("token carries no email")
	}

	p := models.Principal{Email: email}
	p.Name, _ = claims["name"].(string)
	p.CustomerNumber, _ = claims["customer_number"].(string)
	p.CustomerName, _ = claims["customer_name"].(string)
	roleClaim, _ := claims["role"].(string)
	p.Role = roleOrLowest(roleClaim, email)
	if arr, ok := claims["territories"].([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				p.Territories = append(p.Territories, s)
			}
		}
	}
	return p, nil
}

type demoUser struct {
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	CustomerNumber string   `json:"customer_number"`
	CustomerName   string   `json:"customer_name"`
	Territories    []string `json:"territories"`
}

// decodeDemoToken never fails: anything unreadable becomes Anonymous
func decodeDemoToken(payload string) models.Principal {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		logging.LogKV("warn", "demo_token_undecodable", map[string]interface{}{"error": err.Error()})
		return Anonymous()
	}
	var u demoUser
	if err := json.Unmarshal(raw, &u); err != nil || u.Email == "" {
		logging.LogKV("warn", "demo_token_invalid_payload", nil)
		return Anonymous()
	}
	return models.Principal{
		Email:          u.Email,
		Name:           u.Name,
		Role:           roleOrLowest(u.Role, u.Email),
		CustomerNumber: u.CustomerNumber,
		CustomerName:   u.CustomerName,
		Territories:    u.Territories,
	}
}

func roleOrLowest(claim, email string) models.Role {
	role, known := models.ParseRole(claim)
	if !known {
		logging.LogKV("warn", "unknown_role_downgraded", map[string]interface{}{"role": claim, "email": email})
	}
	return role
}

// EncodeDemoToken builds a demo token for p; used by tests and local tooling
func EncodeDemoToken(p models.Principal) string {
	b, _ := json.Marshal(demoUser{
		Email:          p.Email,
		Name:           p.Name,
		Role:           string(p.Role),
		CustomerNumber: p.CustomerNumber,
		CustomerName:   p.CustomerName,
		Territories:    p.Territories,
	})
	return DemoTokenPrefix + base64.StdEncoding.EncodeToString(b)
}

// Issuer signs self-contained tokens for the login flow
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// NewIssuer returns an Issuer, defaulting the lifetime to 30 minutes
func NewIssuer(secret string, expirationMinutes int) *Issuer {
	if expirationMinutes <= 0 {
		expirationMinutes = 30
	}
	return &Issuer{Secret: []byte(secret), TTL: time.Duration(expirationMinutes) * time.Minute, Now: time.Now}
}

// Issue signs a JWT carrying the principal's identity and scope
func (i *Issuer) Issue(p models.Principal) (string, error) {
	if len(i.Secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := i.Now()
	claims := jwt.MapClaims{
		"email": p.Email,
		"role":  string(p.Role),
		"exp":   now.Add(i.TTL).Unix(),
		"iat":   now.Unix(),
	}
	if p.Name != "" {
		claims["name"] = p.Name
	}
	if p.CustomerNumber != "" {
		claims["customer_number"] = p.CustomerNumber
	}
	if p.CustomerName != "" {
		claims["customer_name"] = p.CustomerName
	}
	if len(p.Territories) > 0 {
		claims["territories"] = p.Territories
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.Secret)
}
