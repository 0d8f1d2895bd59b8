package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthenticated: http.StatusUnauthorized,
		KindUnauthorized:    http.StatusForbidden,
		KindForbidden:       http.StatusForbidden,
		KindBadRequest:      http.StatusBadRequest,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("request %d not found", 7)
	wrapped := fmt.Errorf("get request: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))
}

func TestInternalUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "failed to insert request")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to insert request: connection reset", err.Error())
}

func TestWithDetailCopies(t *testing.T) {
	base := Forbidden("item not eligible")
	withCountries := base.WithDetail("eligible_countries", []string{"US", "CA"})

	assert.Nil(t, base.Details)
	assert.Equal(t, []string{"US", "CA"}, withCountries.Details["eligible_countries"])
}
