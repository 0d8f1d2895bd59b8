// Package policy decides which requests a principal may see or act on.
// It is a pure table keyed by (role, operation) and performs no I/O.
package policy

import (
	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// Operation names a guarded action on service requests
type Operation string

const (
	OpList         Operation = "list"
	OpGet          Operation = "get"
	OpCreate       Operation = "create"
	OpUpdateStatus Operation = "update_status"
	OpUpload       Operation = "upload"
	OpDownload     Operation = "download"
)

// Policy carries the deployment-dependent scoping switches
type Policy struct {
	AdminTerritoryScoped    bool
	CustomerTerritoryScoped bool
}

// RowFilter restricts the rows a principal may touch. Zero value admits everything.
type RowFilter struct {
	CustomerNumber string
	Territories    []string
	ScopeTerritory bool
}

// Admits reports whether a row owned by customerNumber in territory passes the filter
func (f RowFilter) Admits(customerNumber, territory string) bool {
	if f.CustomerNumber != "" && customerNumber != f.CustomerNumber {
		return false
	}
	if f.ScopeTerritory && !contains(f.Territories, territory) {
		return false
	}
	return true
}

// Decision is the outcome of a policy lookup.
// Empty means the operation is allowed but the scope is known to match nothing.
type Decision struct {
	Allow  bool
	Err    error
	Filter RowFilter
	Empty  bool
}

type rule func(Policy, models.Principal, Operation) Decision

var table = map[models.Role]map[Operation]rule{
	models.RoleCustomer: {
		OpList:         customerOwned(true),
		OpCreate:       customerOwned(true),
		OpGet:          customerOwned(false),
		OpUpload:       customerOwned(false),
		OpDownload:     customerOwned(false),
		OpUpdateStatus: deny(apperr.Forbidden("customers cannot change request status")),
	},
	models.RoleSalesTech: {
		OpList:         territoryScoped,
		OpGet:          territoryScoped,
		OpUpdateStatus: territoryScoped,
		OpUpload:       territoryScoped,
		OpDownload:     territoryScoped,
		OpCreate:       deny(apperr.Forbidden("only customer accounts can submit service requests")),
	},
	models.RoleAdmin: {
		OpList:         admin,
		OpGet:          admin,
		OpUpdateStatus: admin,
		OpUpload:       admin,
		OpDownload:     admin,
		OpCreate:       deny(apperr.Forbidden("only customer accounts can submit service requests")),
	},
}

// Decide looks up the rule for the principal's role and op
func (p Policy) Decide(principal models.Principal, op Operation) Decision {
	ops, ok := table[principal.Role]
	if !ok {
		return Decision{Err: apperr.Forbidden("role %q is not permitted", principal.Role)}
	}
	r, ok := ops[op]
	if !ok {
		return Decision{Err: apperr.Forbidden("operation %s is not permitted for role %s", op, principal.Role)}
	}
	return r(p, principal, op)
}

// Authorize checks op against a single existing row
func (p Policy) Authorize(principal models.Principal, op Operation, rowCustomer, rowTerritory string) error {
	d := p.Decide(principal, op)
	if !d.Allow {
		return d.Err
	}
	if !d.Filter.Admits(rowCustomer, rowTerritory) {
		return apperr.Forbidden("request is outside your access scope")
	}
	return nil
}

func deny(err error) rule {
	return func(Policy, models.Principal, Operation) Decision {
		return Decision{Err: err}
	}
}

// customerOwned scopes to the principal's customer number. With requireNumber a
// missing number is a client error, otherwise it simply matches no row.
func customerOwned(requireNumber bool) rule {
	return func(p Policy, principal models.Principal, op Operation) Decision {
		if principal.CustomerNumber == "" {
			if requireNumber {
				return Decision{Err: apperr.BadRequest("customer number is required for customer accounts")}
			}
			return Decision{Err: apperr.Forbidden("request is outside your access scope")}
		}
		d := Decision{
			Allow: true,
			Filter: RowFilter{
				CustomerNumber: principal.CustomerNumber,
				Territories:    principal.Territories,
				ScopeTerritory: p.CustomerTerritoryScoped,
			},
		}
		if op == OpList && p.CustomerTerritoryScoped && len(principal.Territories) == 0 {
			d.Empty = true
		}
		return d
	}
}

func territoryScoped(_ Policy, principal models.Principal, op Operation) Decision {
	return scopedToTerritories(principal, op)
}

func admin(p Policy, principal models.Principal, op Operation) Decision {
	if !p.AdminTerritoryScoped {
		return Decision{Allow: true}
	}
	return scopedToTerritories(principal, op)
}

func scopedToTerritories(principal models.Principal, op Operation) Decision {
	d := Decision{
		Allow:  true,
		Filter: RowFilter{Territories: principal.Territories, ScopeTerritory: true},
	}
	if op == OpList && len(principal.Territories) == 0 {
		d.Empty = true
	}
	return d
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
