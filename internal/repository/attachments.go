package repository

import (
	"context"
	"fmt"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const attachmentColumns = `id, request_id, file_name, blob_path, file_size, COALESCE(content_type, ''), uploaded_date`

func scanAttachment(row db.Row) (models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.RequestID, &a.FileName, &a.BlobPath, &a.FileSize, &a.ContentType, &a.UploadedDate)
	return a, err
}

// InsertAttachment records a blob that has already been written
func (r *Repository) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	err := r.run.QueryRow(ctx, `
		INSERT INTO attachments (request_id, file_name, blob_path, file_size, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_date`,
		a.RequestID, a.FileName, a.BlobPath, a.FileSize, nullable(a.ContentType),
	).Scan(&a.ID, &a.UploadedDate)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// ListAttachments returns a request's attachments, newest first
func (r *Repository) ListAttachments(ctx context.Context, requestID int64) ([]models.Attachment, error) {
	rows, err := r.run.Query(ctx, `SELECT `+attachmentColumns+`
		FROM attachments
		WHERE request_id = $1
		ORDER BY uploaded_date DESC, id DESC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	out := []models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAttachment finds the attachment of requestID stored at blobPath
func (r *Repository) GetAttachment(ctx context.Context, requestID int64, blobPath string) (*models.Attachment, error) {
	a, err := scanAttachment(r.run.QueryRow(ctx, `SELECT `+attachmentColumns+`
		FROM attachments
		WHERE request_id = $1 AND blob_path = $2`, requestID, blobPath))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("attachment %s not found", blobPath)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

// RecentAttachments returns up to limit attachments across all requests, newest first
func (r *Repository) RecentAttachments(ctx context.Context, limit int) ([]models.Attachment, error) {
	rows, err := r.run.Query(ctx, `SELECT `+attachmentColumns+`
		FROM attachments
		ORDER BY uploaded_date DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	out := []models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
