package service

import (
	"context"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/policy"
	"github.com/GoblinVrc/service-request-backend/internal/storage"
)

func newAttachments(store *memStore, blob storage.Blob) *AttachmentService {
	svc := NewAttachmentService(store, blob, policy.Policy{})
	svc.newID = func() string { return "0f0e0d0c" }
	return svc
}

func TestUploadThenDownloadReferencesStoredPath(t *testing.T) {
	store := newMemStore()
	req := store.seed("C-A", "EAST", models.StatusSubmitted)
	blob := newMemBlob()
	svc := newAttachments(store, blob)

	res, err := svc.Upload(context.Background(), customerA, req.ID, []FileUpload{upload("report.pdf", "%PDF-1.7")})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	stored := res.Files[0].BlobPath
	assert.Equal(t, "1/0f0e0d0c_report.pdf", stored)
	assert.Equal(t, []byte("%PDF-1.7"), blob.objects[stored])
	require.Len(t, store.attachments, 1)
	assert.Equal(t, stored, store.attachments[0].BlobPath)

	dl, err := svc.DownloadURL(context.Background(), techEast, req.ID, path.Base(stored))
	require.NoError(t, err)
	assert.Contains(t, dl.DownloadURL, stored)
	assert.Contains(t, dl.DownloadURL, "expires=3600")
}

func TestUploadBlobFailureWritesNoRow(t *testing.T) {
	store := newMemStore()
	req := store.seed("C-A", "EAST", models.StatusSubmitted)
	blob := newMemBlob()
	blob.failPut = true
	svc := newAttachments(store, blob)

	_, err := svc.Upload(context.Background(), customerA, req.ID, []FileUpload{upload("photo.jpg", "jpeg")})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Empty(t, store.attachments)
	assert.Empty(t, store.activity)
}

func TestUploadDisabledBlobIsInternal(t *testing.T) {
	store := newMemStore()
	req := store.seed("C-A", "EAST", models.StatusSubmitted)
	svc := newAttachments(store, nil)

	_, err := svc.Upload(context.Background(), customerA, req.ID, []FileUpload{upload("photo.jpg", "jpeg")})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Empty(t, store.attachments)
}

func TestUploadValidatesEveryFileFirst(t *testing.T) {
	store := newMemStore()
	req := store.seed("C-A", "EAST", models.StatusSubmitted)
	blob := newMemBlob()
	svc := newAttachments(store, blob)

	_, err := svc.Upload(context.Background(), customerA, req.ID, []FileUpload{
		upload("ok.png", "png"),
		upload("run.exe", "MZ"),
	})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.Empty(t, blob.objects)

	big := upload("scan.pdf", "x")
	big.Size = MaxAttachmentBytes + 1
	_, err = svc.Upload(context.Background(), customerA, req.ID, []FileUpload{big})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "25MB"))
	assert.Empty(t, blob.objects)
}

func TestUploadScope(t *testing.T) {
	store := newMemStore()
	req := store.seed("C-B", "WEST", models.StatusSubmitted)
	svc := newAttachments(store, newMemBlob())

	_, err := svc.Upload(context.Background(), customerA, req.ID, []FileUpload{upload("a.pdf", "x")})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Upload(context.Background(), customerA, 404, []FileUpload{upload("a.pdf", "x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDownloadUnknownFile(t *testing.T) {
	store := newMemStore()
	req := store.seed("C-A", "EAST", models.StatusSubmitted)
	svc := newAttachments(store, newMemBlob())

	_, err := svc.DownloadURL(context.Background(), customerA, req.ID, "nope.pdf")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.DownloadURL(context.Background(), customerB, req.ID, "nope.pdf")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
