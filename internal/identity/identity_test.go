package identity

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const testSecret = "unit-test-secret"

func TestParseBearer(t *testing.T) {
	tok, err := ParseBearer("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	for _, h := range []string{"", "abc.def", "Basic abc", "Bearer"} {
		_, err := ParseBearer(h)
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated), h)
	}
}

func TestIssuedTokenRoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, 60)
	in := models.Principal{
		Email:          "tech@vendor.example",
		Name:           "Sam Tech",
		Role:           models.RoleSalesTech,
		Territories:    []string{"US-EAST", "US-WEST"},
		CustomerNumber: "",
	}
	token, err := issuer.Issue(in)
	require.NoError(t, err)

	r := &TokenResolver{Secret: []byte(testSecret)}
	out, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, models.RoleSalesTech, out.Role)
	assert.Equal(t, []string{"US-EAST", "US-WEST"}, out.Territories)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	issuer := NewIssuer(testSecret, 5)
	issuer.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := issuer.Issue(models.Principal{Email: "a@b.example", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = (&TokenResolver{Secret: []byte(testSecret)}).Resolve(context.Background(), token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestWrongSecretIsRejected(t *testing.T) {
	token, err := NewIssuer("other", 5).Issue(models.Principal{Email: "a@b.example", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = (&TokenResolver{Secret: []byte(testSecret)}).Resolve(context.Background(), token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestUnknownRoleDowngradesToCustomer(t *testing.T) {
	claims := jwt.MapClaims{
		"email": "who@vendor.example",
		"role":  "SuperUser",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	p, err := (&TokenResolver{Secret: []byte(testSecret)}).Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, p.Role)
	assert.Empty(t, p.CustomerNumber)
}

func TestDemoToken(t *testing.T) {
	r := &TokenResolver{AllowDemo: true}
	token := EncodeDemoToken(models.Principal{
		Email:          "buyer@clinic.example",
		Role:           models.RoleCustomer,
		CustomerNumber: "C-100",
		Territories:    []string{"US-EAST"},
	})

	p, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "buyer@clinic.example", p.Email)
	assert.Equal(t, "C-100", p.CustomerNumber)
	assert.False(t, p.Anonymous)
}

func TestUndecodableDemoTokenIsAnonymous(t *testing.T) {
	r := &TokenResolver{AllowDemo: true}

	for _, payload := range []string{
		"%%%not-base64",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		base64.StdEncoding.EncodeToString([]byte(`{"role":"Admin"}`)),
	} {
		p, err := r.Resolve(context.Background(), DemoTokenPrefix+payload)
		require.NoError(t, err)
		assert.True(t, p.Anonymous)
		assert.Equal(t, models.RoleCustomer, p.Role)
		assert.Empty(t, p.CustomerNumber)
	}
}

func TestDemoTokenRejectedWhenDisabled(t *testing.T) {
	r := &TokenResolver{Secret: []byte(testSecret)}
	_, err := r.Resolve(context.Background(), EncodeDemoToken(models.Principal{Email: "x@y.example", Role: models.RoleAdmin}))
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

type fakeDirectory struct {
	userTerritories map[string][]string
	users           map[string]*models.CustomerUser
	custTerritories map[string][]string
	admins          map[string]bool
}

func (f *fakeDirectory) UserTerritories(_ context.Context, email string) ([]string, error) {
	return f.userTerritories[email], nil
}

func (f *fakeDirectory) FindCustomerUser(_ context.Context, email string) (*models.CustomerUser, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user %s not found", email)
}

func (f *fakeDirectory) CustomerTerritories(_ context.Context, customerNumber string) ([]string, error) {
	return f.custTerritories[customerNumber], nil
}

func (f *fakeDirectory) IsAdmin(_ context.Context, email string) (bool, error) {
	return f.admins[email], nil
}

func newIdP(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer tech":
			w.Write([]byte(`{"mail":"Tech@Vendor.example","displayName":"Sam Tech"}`))
		case "Bearer buyer":
			w.Write([]byte(`{"userPrincipalName":"buyer@clinic.example"}`))
		case "Bearer boss":
			w.Write([]byte(`{"email":"boss@vendor.example","name":"Boss"}`))
		case "Bearer dbadmin":
			w.Write([]byte(`{"mail":"ops@vendor.example"}`))
		case "Bearer stranger":
			w.Write([]byte(`{"mail":"stranger@else.example"}`))
		case "Bearer nomail":
			w.Write([]byte(`{"displayName":"Ghost"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDelegatedResolution(t *testing.T) {
	srv := newIdP(t)
	dir := &fakeDirectory{
		userTerritories: map[string][]string{"tech@vendor.example": {"US-EAST"}},
		users: map[string]*models.CustomerUser{
			"buyer@clinic.example": {Email: "buyer@clinic.example", FirstName: "Bo", LastName: "Buyer", CustomerNumber: "C-1", CustomerName: "Clinic", IsActive: true},
		},
		custTerritories: map[string][]string{"C-1": {"US-WEST"}},
		admins:          map[string]bool{"ops@vendor.example": true},
	}
	r := NewDelegatedResolver(config.AuthOptions{
		UserInfoURL: srv.URL,
		IDPTimeout:  time.Second,
		AdminEmails: []string{"boss@vendor.example"},
	}, dir)
	r.baseClient = srv.Client()
	ctx := context.Background()

	p, err := r.Resolve(ctx, "tech")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSalesTech, p.Role)
	assert.Equal(t, "tech@vendor.example", p.Email)
	assert.Equal(t, []string{"US-EAST"}, p.Territories)

	p, err = r.Resolve(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, p.Role)
	assert.Equal(t, "C-1", p.CustomerNumber)
	assert.Equal(t, "Bo Buyer", p.Name)
	assert.Equal(t, []string{"US-WEST"}, p.Territories)

	p, err = r.Resolve(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)

	p, err = r.Resolve(ctx, "dbadmin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)

	_, err = r.Resolve(ctx, "stranger")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = r.Resolve(ctx, "nomail")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = r.Resolve(ctx, "revoked")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = r.Resolve(ctx, "broken")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestInactiveCustomerUserFallsThrough(t *testing.T) {
	srv := newIdP(t)
	dir := &fakeDirectory{
		users: map[string]*models.CustomerUser{
			"buyer@clinic.example": {Email: "buyer@clinic.example", CustomerNumber: "C-1", IsActive: false},
		},
	}
	r := NewDelegatedResolver(config.AuthOptions{UserInfoURL: srv.URL}, dir)
	r.baseClient = srv.Client()

	_, err := r.Resolve(context.Background(), "buyer")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestNewSelectsMode(t *testing.T) {
	r, err := New(config.AuthOptions{Mode: config.AuthModeToken, JWTSecret: "s"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TokenResolver{}, r)

	_, err = New(config.AuthOptions{Mode: config.AuthModeDelegated}, nil)
	assert.Error(t, err)

	_, err = New(config.AuthOptions{Mode: "saml"}, nil)
	assert.Error(t, err)
}
