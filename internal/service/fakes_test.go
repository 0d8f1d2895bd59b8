package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/repository"
)

// memStore is an in-memory RequestStore/AttachmentStore. InTx restores a
// snapshot when fn fails so tests can observe atomicity.
type memStore struct {
	requests    map[int64]*models.ServiceRequest
	activity    []models.ActivityLogEntry
	attachments []models.Attachment

	customerTerritories map[string][]string
	repairability       map[string]string

	nextID  int64
	codeSeq int
	clock   time.Time

	failActivity bool
	failCode     bool
}

func newMemStore() *memStore {
	return &memStore{
		requests:            map[int64]*models.ServiceRequest{},
		customerTerritories: map[string][]string{},
		repairability:       map[string]string{},
		clock:               time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

type memSnapshot struct {
	requests    map[int64]models.ServiceRequest
	activity    []models.ActivityLogEntry
	attachments []models.Attachment
	nextID      int64
}

func (m *memStore) InTx(_ context.Context, fn func(repository.Tx) error) error {
	snap := memSnapshot{
		requests:    map[int64]models.ServiceRequest{},
		activity:    append([]models.ActivityLogEntry(nil), m.activity...),
		attachments: append([]models.Attachment(nil), m.attachments...),
		nextID:      m.nextID,
	}
	for id, r := range m.requests {
		snap.requests[id] = *r
	}
	if err := fn(m); err != nil {
		m.requests = map[int64]*models.ServiceRequest{}
		for id, r := range snap.requests {
			r := r
			m.requests[id] = &r
		}
		m.activity = snap.activity
		m.attachments = snap.attachments
		m.nextID = snap.nextID
		return err
	}
	return nil
}

func (m *memStore) NextRequestCode(_ context.Context, country string) (string, error) {
	if m.failCode {
		return "", errors.New("sequence unavailable")
	}
	m.codeSeq++
	return fmt.Sprintf("SR-%s-20260301-%06d", country, m.codeSeq), nil
}

func (m *memStore) InsertRequest(_ context.Context, req *models.ServiceRequest) (int64, error) {
	m.nextID++
	m.clock = m.clock.Add(time.Minute)
	req.ID = m.nextID
	req.SubmittedDate = m.clock
	cp := *req
	m.requests[req.ID] = &cp
	return req.ID, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, status models.RequestStatus) (int64, error) {
	r, ok := m.requests[id]
	if !ok {
		return 0, nil
	}
	now := m.clock
	r.Status = status
	r.LastModifiedDate = &now
	return 1, nil
}

func (m *memStore) InsertActivity(_ context.Context, e models.ActivityLogEntry) error {
	if m.failActivity {
		return errors.New("activity log unavailable")
	}
	e.ID = int64(len(m.activity) + 1)
	e.CreatedAt = m.clock
	m.activity = append(m.activity, e)
	return nil
}

func (m *memStore) InsertAttachment(_ context.Context, a *models.Attachment) error {
	a.ID = int64(len(m.attachments) + 1)
	m.clock = m.clock.Add(time.Second)
	a.UploadedDate = m.clock
	m.attachments = append(m.attachments, *a)
	return nil
}

func (m *memStore) GetRequest(_ context.Context, id int64) (*models.ServiceRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("request %d not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRequests(_ context.Context, q repository.RequestQuery) ([]models.ServiceRequest, error) {
	out := []models.ServiceRequest{}
	for _, r := range m.requests {
		if q.CustomerNumber != "" && r.CustomerNumber != q.CustomerNumber {
			continue
		}
		if q.ScopeTerritory && !contains(q.Territories, r.Territory) {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if q.From != nil && r.SubmittedDate.Before(*q.From) {
			continue
		}
		if q.To != nil && !r.SubmittedDate.Before(*q.To) {
			continue
		}
		if q.ItemNumber != "" && !strings.Contains(strings.ToLower(r.ItemNumber), strings.ToLower(q.ItemNumber)) {
			continue
		}
		if q.SerialNumber != "" && !strings.Contains(strings.ToLower(r.SerialNumber), strings.ToLower(q.SerialNumber)) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedDate.After(out[j].SubmittedDate) })
	return out, nil
}

func (m *memStore) ListActivity(_ context.Context, requestID int64) ([]models.ActivityLogEntry, error) {
	out := []models.ActivityLogEntry{}
	for _, e := range m.activity {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListAttachments(_ context.Context, requestID int64) ([]models.Attachment, error) {
	out := []models.Attachment{}
	for i := len(m.attachments) - 1; i >= 0; i-- {
		if m.attachments[i].RequestID == requestID {
			out = append(out, m.attachments[i])
		}
	}
	return out, nil
}

func (m *memStore) GetAttachment(_ context.Context, requestID int64, blobPath string) (*models.Attachment, error) {
	for _, a := range m.attachments {
		if a.RequestID == requestID && a.BlobPath == blobPath {
			a := a
			return &a, nil
		}
	}
	return nil, apperr.NotFound("attachment %s not found", blobPath)
}

func (m *memStore) CustomerTerritories(_ context.Context, customerNumber string) ([]string, error) {
	return m.customerTerritories[customerNumber], nil
}

func (m *memStore) ServiceableRepairability(_ context.Context, serial, itemNumber string) (*string, error) {
	for _, key := range []string{serial, itemNumber} {
		if v, ok := m.repairability[key]; ok && key != "" {
			return &v, nil
		}
	}
	return nil, nil
}

// seed stores a request directly, bypassing the lifecycle
func (m *memStore) seed(customerNumber, territory string, status models.RequestStatus) *models.ServiceRequest {
	req := &models.ServiceRequest{
		RequestType:    models.RequestTypeItem,
		ItemNumber:     "ITM-" + customerNumber,
		CustomerNumber: customerNumber,
		Territory:      territory,
		CountryCode:    "US",
		Status:         status,
		UrgencyLevel:   models.UrgencyNormal,
	}
	m.InsertRequest(context.Background(), req)
	return req
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// memBlob records writes and can be told to fail
type memBlob struct {
	objects map[string][]byte
	failPut bool
}

func newMemBlob() *memBlob { return &memBlob{objects: map[string][]byte{}} }

func (b *memBlob) Put(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	if b.failPut {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[path] = data
	return nil
}

func (b *memBlob) SignReadURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	if _, ok := b.objects[path]; !ok {
		return "", errors.New("no such object")
	}
	return fmt.Sprintf("https://blob.example/attachments/%s?expires=%d", path, int(ttl.Seconds())), nil
}

func (b *memBlob) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b.objects[path]
	return ok, nil
}

func (b *memBlob) Enabled() bool { return true }

func upload(name string, body string) FileUpload {
	return FileUpload{
		Name:        name,
		Size:        int64(len(body)),
		ContentType: "application/octet-stream",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewBufferString(body)), nil
		},
	}
}

// recordingNotifier counts calls and optionally fails
type recordingNotifier struct {
	created []string
	changed []string
	err     error
}

func (n *recordingNotifier) RequestCreated(_ context.Context, req *models.ServiceRequest) error {
	n.created = append(n.created, req.RequestCode)
	return n.err
}

func (n *recordingNotifier) StatusChanged(_ context.Context, req *models.ServiceRequest, from, to models.RequestStatus) error {
	n.changed = append(n.changed, fmt.Sprintf("%s:%s->%s", req.RequestCode, from, to))
	return n.err
}
