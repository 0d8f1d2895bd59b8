package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/policy"
	"github.com/GoblinVrc/service-request-backend/internal/repository"
	"github.com/GoblinVrc/service-request-backend/internal/storage"
)

const (
	// MaxAttachmentBytes is the per-file upload cap (25 MiB)
	MaxAttachmentBytes int64 = 25 << 20
	// DownloadURLTTL is the lifetime of a signed read URL
	DownloadURLTTL = time.Hour
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".zip": true, ".mov": true, ".mp4": true, ".avi": true, ".3gp": true,
}

// AllowedExtensions returns the accepted attachment extensions
func AllowedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip", ".mov", ".mp4", ".avi", ".3gp"}
}

// FileUpload is one incoming file. Open is called only after every file passed validation.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// AttachmentService stores attachments in the blob store and records them
type AttachmentService struct {
	store  AttachmentStore
	blob   storage.Blob
	policy policy.Policy
	newID  func() string
}

func NewAttachmentService(store AttachmentStore, blob storage.Blob, pol policy.Policy) *AttachmentService {
	if blob == nil {
		blob = storage.Disabled{}
	}
	return &AttachmentService{store: store, blob: blob, policy: pol, newID: uuid.NewString}
}

func validateUpload(f FileUpload) error {
	name := filepath.Base(strings.TrimSpace(f.Name))
	if name == "" || name == "." || name == "/" {
		return apperr.BadRequest("file name is required")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return apperr.BadRequest("file type %s not allowed for %s", ext, name).WithDetail("allowed", AllowedExtensions())
	}
	if f.Size > MaxAttachmentBytes {
		return apperr.BadRequest("file %s exceeds 25MB limit", name)
	}
	return nil
}

// Upload validates every file, then writes each blob before recording its row
func (s *AttachmentService) Upload(ctx context.Context, p models.Principal, requestID int64, files []FileUpload) (*models.UploadResponse, error) {
	if len(files) == 0 {
		return nil, apperr.BadRequest("at least one file is required")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, classify(err, "failed to get service request")
	}
	if err := s.policy.Authorize(p, policy.OpUpload, req.CustomerNumber, req.Territory); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := validateUpload(f); err != nil {
			return nil, err
		}
	}

	uploaded := make([]models.UploadedFile, 0, len(files))
	for _, f := range files {
		name := filepath.Base(strings.TrimSpace(f.Name))
		blobPath := path.Join(fmt.Sprint(requestID), s.newID()+"_"+name)

		if err := s.put(ctx, blobPath, f); err != nil {
			logging.LogKV("error", "upload_failed", map[string]interface{}{
				"request_id": requestID,
				"blob_path":  blobPath,
				"error":      err.Error(),
			})
			return nil, apperr.Internal(err, "failed to store %s", name)
		}

		att := &models.Attachment{
			RequestID:   requestID,
			FileName:    name,
			BlobPath:    blobPath,
			FileSize:    f.Size,
			ContentType: f.ContentType,
		}
		err := s.store.InTx(ctx, func(tx repository.Tx) error {
			if err := tx.InsertAttachment(ctx, att); err != nil {
				return err
			}
			return tx.InsertActivity(ctx, models.ActivityLogEntry{
				RequestID:    requestID,
				ActivityType: models.ActivityAttachment,
				Description:  "Attachment added: " + name,
				PerformedBy:  p.Email,
			})
		})
		if err != nil {
			return nil, classify(err, "failed to record attachment %s", name)
		}
		uploaded = append(uploaded, models.UploadedFile{FileName: name, BlobPath: blobPath, Size: f.Size})
	}

	return &models.UploadResponse{
		Message: fmt.Sprintf("Uploaded %d file(s) successfully", len(uploaded)),
		Files:   uploaded,
	}, nil
}

func (s *AttachmentService) put(ctx context.Context, blobPath string, f FileUpload) error {
	if !s.blob.Enabled() {
		return storage.ErrDisabled
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()
	return s.blob.Put(ctx, blobPath, io.LimitReader(rc, MaxAttachmentBytes), f.Size, f.ContentType)
}

// DownloadURL signs a short-lived read URL for a recorded attachment
func (s *AttachmentService) DownloadURL(ctx context.Context, p models.Principal, requestID int64, fileName string) (*models.DownloadResponse, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, classify(err, "failed to get service request")
	}
	if err := s.policy.Authorize(p, policy.OpDownload, req.CustomerNumber, req.Territory); err != nil {
		return nil, err
	}

	att, err := s.store.GetAttachment(ctx, requestID, path.Join(fmt.Sprint(requestID), path.Base(fileName)))
	if err != nil {
		return nil, classify(err, "failed to get attachment")
	}
	url, err := s.blob.SignReadURL(ctx, att.BlobPath, DownloadURLTTL)
	if err != nil {
		return nil, apperr.Internal(err, "failed to sign download url")
	}
	return &models.DownloadResponse{DownloadURL: url}, nil
}
