package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in    string
		want  Role
		known bool
	}{
		{"Customer", RoleCustomer, true},
		{"SalesTech", RoleSalesTech, true},
		{"SALES_TECH", RoleSalesTech, true},
		{"admin", RoleAdmin, true},
		{"ADMIN", RoleAdmin, true},
		{"SuperUser", RoleCustomer, false},
		{"", RoleCustomer, false},
	}
	for _, tc := range cases {
		got, known := ParseRole(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.known, known, tc.in)
	}
}

func TestStatusVocabulary(t *testing.T) {
	assert.True(t, RequestStatus("Repair Completed").IsValid())
	assert.True(t, StatusCancelled.IsValid())
	assert.False(t, RequestStatus("Bogus").IsValid())
	assert.False(t, RequestStatus("in progress").IsValid())

	assert.True(t, StatusOpen.IsInitial())
	assert.False(t, StatusClosed.IsInitial())
	assert.Len(t, StatusStrings(), len(AllStatuses))
}

func TestItemEligibility(t *testing.T) {
	item := Item{EligibilityCountries: []string{"US", "CA"}, InstallBaseStatus: "scrapped"}

	assert.True(t, item.EligibleIn("us"))
	assert.False(t, item.EligibleIn("DE"))
	assert.True(t, item.HasTerminalInstallBaseStatus())

	item.InstallBaseStatus = "INSTALLED"
	assert.False(t, item.HasTerminalInstallBaseStatus())
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusResolved.IsTerminal())
	assert.False(t, StatusSubmitted.IsTerminal())
}
