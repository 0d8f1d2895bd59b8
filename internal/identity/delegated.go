package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// userInfo is the subset of the provider profile used to identify the caller
type userInfo struct {
	Mail              string `json:"mail"`
	Email             string `json:"email"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	Name              string `json:"name"`
}

func (u userInfo) email() string {
	for _, v := range []string{u.Mail, u.Email, u.UserPrincipalName} {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

func (u userInfo) displayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// DelegatedResolver verifies access tokens with the identity provider and
// derives role and scope from the directory tables.
type DelegatedResolver struct {
	userInfoURL string
	timeout     time.Duration
	isAdmin     func(email string) bool
	dir         Directory
	// baseClient is wrapped by the oauth2 transport; nil uses http.DefaultClient
	baseClient *http.Client
}

// NewDelegatedResolver builds a resolver against the configured userinfo endpoint
func NewDelegatedResolver(opts config.AuthOptions, dir Directory) *DelegatedResolver {
	return &DelegatedResolver{
		userInfoURL: opts.UserInfoURL,
		timeout:     opts.IDPTimeout,
		isAdmin:     opts.IsAdminEmail,
		dir:         dir,
	}
}

func (d *DelegatedResolver) Resolve(ctx context.Context, credential string) (models.Principal, error) {
	if credential == "" {
		return models.Principal{}, apperr.Unauthenticated("bearer token required")
	}
	info, err := d.fetchUserInfo(ctx, credential)
	if err != nil {
		return models.Principal{}, err
	}
	email := info.email()
	if email == "" {
		return models.Principal{}, apperr.Unauthenticated("identity provider returned no email for this token")
	}
	return d.principalFor(ctx, email, info.displayName())
}

func (d *DelegatedResolver) fetchUserInfo(ctx context.Context, accessToken string) (userInfo, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if d.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, d.baseClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.userInfoURL, nil)
	if err != nil {
		return userInfo{}, apperr.Internal(err, "failed to build userinfo request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return userInfo{}, apperr.Internal(err, "identity provider unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return userInfo{}, apperr.Unauthenticated("the provided token is invalid or expired")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return userInfo{}, apperr.Internal(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			"identity provider error")
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, apperr.Internal(err, "failed to decode userinfo response")
	}
	return info, nil
}

// principalFor applies the directory priority: territory mapping, then
// customer user, then admin allow-list or admin table.
func (d *DelegatedResolver) principalFor(ctx context.Context, email, name string) (models.Principal, error) {
	territories, err := d.dir.UserTerritories(ctx, email)
	if err != nil {
		return models.Principal{}, apperr.Internal(err, "failed to load user territories")
	}
	if len(territories) > 0 {
		return models.Principal{Email: email, Name: name, Role: models.RoleSalesTech, Territories: territories}, nil
	}

	user, err := d.dir.FindCustomerUser(ctx, email)
	switch {
	case err == nil && user.IsActive:
		custTerritories, err := d.dir.CustomerTerritories(ctx, user.CustomerNumber)
		if err != nil {
			return models.Principal{}, apperr.Internal(err, "failed to load customer territories")
		}
		if full := user.FullName(); full != "" {
			name = full
		}
		return models.Principal{
			Email:          email,
			Name:           name,
			Role:           models.RoleCustomer,
			CustomerNumber: user.CustomerNumber,
			CustomerName:   user.CustomerName,
			Territories:    custTerritories,
		}, nil
	case err != nil && !apperr.Is(err, apperr.KindNotFound):
		return models.Principal{}, apperr.Internal(err, "failed to load customer user")
	}

	if d.isAdmin != nil && d.isAdmin(email) {
		return models.Principal{Email: email, Name: name, Role: models.RoleAdmin}, nil
	}
	admin, err := d.dir.IsAdmin(ctx, email)
	if err != nil {
		return models.Principal{}, apperr.Internal(err, "failed to check admin table")
	}
	if admin {
		return models.Principal{Email: email, Name: name, Role: models.RoleAdmin}, nil
	}

	return models.Principal{}, apperr.Unauthorized("user %s is not registered for this service", email)
}
