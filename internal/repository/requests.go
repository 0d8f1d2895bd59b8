package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const requestColumns = `
	id, request_code, request_type,
	COALESCE(serial_number, ''), COALESCE(item_number, ''), COALESCE(lot_number, ''),
	COALESCE(item_description, ''), COALESCE(product_family, ''),
	COALESCE(customer_number, ''), COALESCE(customer_name, ''), COALESCE(site_address, ''),
	territory, country_code, contact_email, contact_name, contact_phone,
	main_reason, COALESCE(sub_reason, ''), COALESCE(issue_description, ''),
	repairability_status, requested_service_date, urgency_level,
	loaner_required, COALESCE(loaner_details, ''), quote_required,
	status, submitted_by_email, COALESCE(submitted_by_name, ''),
	submitted_date, last_modified_date, language_code,
	COALESCE(customer_notes, ''), COALESCE(internal_notes, '')`

// RequestQuery is a scoped, filtered list query. Zero value lists everything.
type RequestQuery struct {
	CustomerNumber string
	Territories    []string
	ScopeTerritory bool

	Status       models.RequestStatus
	From         *time.Time // inclusive
	To           *time.Time // exclusive
	ItemNumber   string     // substring
	SerialNumber string     // substring
}

func scanRequest(row db.Row) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := row.Scan(
		&req.ID, &req.RequestCode, &req.RequestType,
		&req.SerialNumber, &req.ItemNumber, &req.LotNumber,
		&req.ItemDescription, &req.ProductFamily,
		&req.CustomerNumber, &req.CustomerName, &req.SiteAddress,
		&req.Territory, &req.CountryCode, &req.ContactEmail, &req.ContactName, &req.ContactPhone,
		&req.MainReason, &req.SubReason, &req.IssueDescription,
		&req.RepairabilityStatus, &req.RequestedServiceDate, &req.UrgencyLevel,
		&req.LoanerRequired, &req.LoanerDetails, &req.QuoteRequired,
		&req.Status, &req.SubmittedByEmail, &req.SubmittedByName,
		&req.SubmittedDate, &req.LastModifiedDate, &req.LanguageCode,
		&req.CustomerNotes, &req.InternalNotes,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// NextRequestCode draws a unique human-readable code from the store-side generator
func (r *Repository) NextRequestCode(ctx context.Context, countryCode string) (string, error) {
	var code string
	if err := r.run.QueryRow(ctx, `SELECT generate_request_code($1)`, countryCode).Scan(&code); err != nil {
		return "", fmt.Errorf("failed to generate request code: %w", err)
	}
	return code, nil
}

// InsertRequest stores a new request and fills in its id and submitted_date
func (r *Repository) InsertRequest(ctx context.Context, req *models.ServiceRequest) (int64, error) {
	query := `
		INSERT INTO service_requests (
			request_code, request_type, serial_number, item_number, lot_number,
			item_description, product_family, customer_number, customer_name, site_address,
			territory, country_code, contact_email, contact_name, contact_phone,
			main_reason, sub_reason, issue_description, repairability_status, requested_service_date,
			urgency_level, loaner_required, loaner_details, quote_required, status,
			submitted_by_email, submitted_by_name, language_code, customer_notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29
		)
		RETURNING id, submitted_date`

	err := r.run.QueryRow(ctx, query,
		req.RequestCode, string(req.RequestType), nullable(req.SerialNumber), nullable(req.ItemNumber), nullable(req.LotNumber),
		nullable(req.ItemDescription), nullable(req.ProductFamily), nullable(req.CustomerNumber), nullable(req.CustomerName), nullable(req.SiteAddress),
		req.Territory, req.CountryCode, req.ContactEmail, req.ContactName, req.ContactPhone,
		req.MainReason, nullable(req.SubReason), nullable(req.IssueDescription), req.RepairabilityStatus, req.RequestedServiceDate,
		string(req.UrgencyLevel), req.LoanerRequired, nullable(req.LoanerDetails), req.QuoteRequired, string(req.Status),
		req.SubmittedByEmail, nullable(req.SubmittedByName), req.LanguageCode, nullable(req.CustomerNotes),
	).Scan(&req.ID, &req.SubmittedDate)
	if err != nil {
		return 0, fmt.Errorf("failed to insert request: %w", err)
	}
	return req.ID, nil
}

// GetRequest loads one request by id
func (r *Repository) GetRequest(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`
	req, err := scanRequest(r.run.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("request %d not found", id)
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests matching q, newest first
func (r *Repository) ListRequests(ctx context.Context, q RequestQuery) ([]models.ServiceRequest, error) {
	if q.ScopeTerritory && len(q.Territories) == 0 {
		return []models.ServiceRequest{}, nil
	}

	where := ""
	args := []interface{}{}
	argIdx := 1
	add := func(cond string, val interface{}) {
		where = appendCond(where, cond)
		args = append(args, val)
		argIdx++
	}

	if q.CustomerNumber != "" {
		add(fmt.Sprintf("customer_number = $%d", argIdx), q.CustomerNumber)
	}
	if q.ScopeTerritory {
		where = appendCond(where, fmt.Sprintf("territory IN (%s)", placeholders(argIdx, len(q.Territories))))
		for _, t := range q.Territories {
			args = append(args, t)
		}
		argIdx += len(q.Territories)
	}
	if q.Status != "" {
		add(fmt.Sprintf("status = $%d", argIdx), string(q.Status))
	}
	if q.From != nil {
		add(fmt.Sprintf("submitted_date >= $%d", argIdx), *q.From)
	}
	if q.To != nil {
		add(fmt.Sprintf("submitted_date < $%d", argIdx), *q.To)
	}
	if q.ItemNumber != "" {
		add(fmt.Sprintf("item_number ILIKE $%d ESCAPE '\\'", argIdx), likePattern(q.ItemNumber))
	}
	if q.SerialNumber != "" {
		add(fmt.Sprintf("serial_number ILIKE $%d ESCAPE '\\'", argIdx), likePattern(q.SerialNumber))
	}

	query := fmt.Sprintf(`SELECT %s FROM service_requests %s ORDER BY submitted_date DESC, id DESC`, requestColumns, where)
	rows, err := r.run.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	out := []models.ServiceRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return out, nil
}

// UpdateStatus sets status and last_modified_date, returning rows affected
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus) (int64, error) {
	n, err := r.run.Exec(ctx, `
		UPDATE service_requests
		SET status = $1, last_modified_date = NOW()
		WHERE id = $2`, string(status), id)
	if err != nil {
		return 0, fmt.Errorf("failed to update status: %w", err)
	}
	return n, nil
}

// InsertActivity appends one activity log entry
func (r *Repository) InsertActivity(ctx context.Context, e models.ActivityLogEntry) error {
	_, err := r.run.Exec(ctx, `
		INSERT INTO activity_log (request_id, activity_type, activity_description, performed_by)
		VALUES ($1, $2, $3, $4)`, e.RequestID, e.ActivityType, e.Description, e.PerformedBy)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListActivity returns a request's activity log in chronological order
func (r *Repository) ListActivity(ctx context.Context, requestID int64) ([]models.ActivityLogEntry, error) {
	rows, err := r.run.Query(ctx, `
		SELECT id, request_id, activity_type, COALESCE(activity_description, ''), performed_by, created_at
		FROM activity_log
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	out := []models.ActivityLogEntry{}
	for rows.Next() {
		var e models.ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActivityType, &e.Description, &e.PerformedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
