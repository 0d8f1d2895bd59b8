// Package repository is the only code that speaks SQL to the relational store.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// Tx is the write surface available inside a transaction
type Tx interface {
	NextRequestCode(ctx context.Context, countryCode string) (string, error)
	InsertRequest(ctx context.Context, req *models.ServiceRequest) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status models.RequestStatus) (int64, error)
	InsertActivity(ctx context.Context, e models.ActivityLogEntry) error
	InsertAttachment(ctx context.Context, a *models.Attachment) error
}

// Repository runs the logical queries against a Store, or against one open transaction
type Repository struct {
	store db.Store
	run   db.Runner
}

// New binds a Repository to a Store
func New(store db.Store) *Repository {
	return &Repository{store: store, run: store}
}

// InTx runs fn with a Repository bound to a single transaction. Nested calls reuse it.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	if r.store == nil {
		return fn(r)
	}
	return r.store.InTx(ctx, func(run db.Runner) error {
		return fn(&Repository{run: run})
	})
}

// Ping checks store connectivity
func (r *Repository) Ping(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Ping(ctx)
}

func appendCond(existing string, cond string) string {
	if existing == "" {
		return "WHERE " + cond
	}
	return existing + " AND " + cond
}

// placeholders returns "$start, $start+1, ..." for n values
func placeholders(start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(ph, ", ")
}

// nullable maps "" to SQL NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring match for ILIKE ... ESCAPE '\'. Wildcards in q match literally.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}

func scanStrings(rows db.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
