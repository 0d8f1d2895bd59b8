package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/notify"
	"github.com/GoblinVrc/service-request-backend/internal/policy"
	"github.com/GoblinVrc/service-request-backend/internal/repository"
)

const dateLayout = "2006-01-02"

const createdNextSteps = "Your request has been routed to the appropriate service team and you will receive updates via email."

// RequestService creates, lists, reads and transitions service requests
type RequestService struct {
	store         RequestStore
	policy        policy.Policy
	notifier      notify.Notifier
	initialStatus models.RequestStatus
	validate      *validator.Validate
}

// NewRequestService wires the lifecycle manager. A nil notifier disables notifications.
func NewRequestService(store RequestStore, pol policy.Policy, notifier notify.Notifier, initialStatus models.RequestStatus) *RequestService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if !initialStatus.IsInitial() {
		initialStatus = models.StatusSubmitted
	}
	return &RequestService{
		store:         store,
		policy:        pol,
		notifier:      notifier,
		initialStatus: initialStatus,
		validate:      newValidator(),
	}
}

// Create validates a draft and persists it with its creation activity in one transaction
func (s *RequestService) Create(ctx context.Context, p models.Principal, draft models.ServiceRequestDraft) (*models.CreateRequestResponse, error) {
	if d := s.policy.Decide(p, policy.OpCreate); !d.Allow {
		return nil, d.Err
	}

	normalizeDraft(&draft)
	if err := s.validate.Struct(draft); err != nil {
		return nil, validationError(err)
	}

	territory := models.UnknownTerritory
	territories, err := s.store.CustomerTerritories(ctx, p.CustomerNumber)
	if err != nil {
		return nil, classify(err, "failed to look up customer territory")
	}
	if len(territories) > 0 {
		territory = territories[0]
	}

	var repairability *string
	if draft.SerialNumber != "" || draft.ItemNumber != "" {
		repairability, err = s.store.ServiceableRepairability(ctx, draft.SerialNumber, draft.ItemNumber)
		if err != nil {
			return nil, classify(err, "failed to derive repairability status")
		}
	}

	req := &models.ServiceRequest{
		RequestType:          draft.RequestType,
		SerialNumber:         draft.SerialNumber,
		ItemNumber:           draft.ItemNumber,
		LotNumber:            draft.LotNumber,
		ItemDescription:      draft.ItemDescription,
		ProductFamily:        draft.ProductFamily,
		CustomerNumber:       p.CustomerNumber,
		CustomerName:         firstNonEmpty(draft.CustomerName, p.CustomerName),
		SiteAddress:          draft.SiteAddress,
		Territory:            territory,
		CountryCode:          draft.CountryCode,
		ContactEmail:         draft.ContactEmail,
		ContactName:          draft.ContactName,
		ContactPhone:         draft.ContactPhone,
		MainReason:           draft.MainReason,
		SubReason:            draft.SubReason,
		IssueDescription:     draft.IssueDescription,
		RepairabilityStatus:  repairability,
		RequestedServiceDate: draft.RequestedServiceDate,
		UrgencyLevel:         draft.UrgencyLevel,
		LoanerRequired:       draft.LoanerRequired,
		LoanerDetails:        draft.LoanerDetails,
		QuoteRequired:        draft.QuoteRequired,
		Status:               s.initialStatus,
		SubmittedByEmail:     p.Email,
		SubmittedByName:      p.Name,
		LanguageCode:         draft.LanguageCode,
		CustomerNotes:        draft.CustomerNotes,
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		code, err := tx.NextRequestCode(ctx, req.CountryCode)
		if err != nil {
			return err
		}
		req.RequestCode = code
		if _, err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, models.ActivityLogEntry{
			RequestID:    req.ID,
			ActivityType: models.ActivityCreated,
			Description:  "Service request created",
			PerformedBy:  p.Email,
		})
	})
	if err != nil {
		return nil, classify(err, "failed to create service request")
	}

	logging.LogKV("info", "request_created", map[string]interface{}{
		"request_id":   req.ID,
		"request_code": req.RequestCode,
		"territory":    req.Territory,
		"principal":    p.Email,
	})
	if err := s.notifier.RequestCreated(ctx, req); err != nil {
		logNotifyFailure("request_created", req, err)
	}

	return &models.CreateRequestResponse{
		Success:     true,
		RequestID:   req.ID,
		RequestCode: req.RequestCode,
		Message:     fmt.Sprintf("Service request %s has been successfully submitted", req.RequestCode),
		NextSteps:   createdNextSteps,
	}, nil
}

func normalizeDraft(d *models.ServiceRequestDraft) {
	d.CountryCode = strings.ToUpper(strings.TrimSpace(d.CountryCode))
	d.ContactEmail = strings.TrimSpace(d.ContactEmail)
	d.SerialNumber = strings.TrimSpace(d.SerialNumber)
	d.ItemNumber = strings.TrimSpace(d.ItemNumber)
	d.LotNumber = strings.TrimSpace(d.LotNumber)
	if d.UrgencyLevel == "" {
		d.UrgencyLevel = models.UrgencyNormal
	}
	if d.LanguageCode == "" {
		d.LanguageCode = "en"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// List returns the requests visible to p that match f, newest first
func (s *RequestService) List(ctx context.Context, p models.Principal, f models.RequestListFilter) ([]models.ServiceRequest, error) {
	d := s.policy.Decide(p, policy.OpList)
	if !d.Allow {
		return nil, d.Err
	}

	q := repository.RequestQuery{
		CustomerNumber: d.Filter.CustomerNumber,
		Territories:    d.Filter.Territories,
		ScopeTerritory: d.Filter.ScopeTerritory,
		ItemNumber:     strings.TrimSpace(f.ItemNumber),
		SerialNumber:   strings.TrimSpace(f.SerialNumber),
	}
	if f.Status != "" {
		status := models.RequestStatus(f.Status)
		if !status.IsValid() {
			return nil, apperr.BadRequest("invalid status %q", f.Status).WithDetail("allowed", models.StatusStrings())
		}
		q.Status = status
	}
	if f.FromDate != "" {
		from, err := time.Parse(dateLayout, f.FromDate)
		if err != nil {
			return nil, apperr.BadRequest("from_date must be in YYYY-MM-DD format")
		}
		q.From = &from
	}
	if f.ToDate != "" {
		to, err := time.Parse(dateLayout, f.ToDate)
		if err != nil {
			return nil, apperr.BadRequest("to_date must be in YYYY-MM-DD format")
		}
		to = to.AddDate(0, 0, 1)
		q.To = &to
	}

	if d.Empty {
		return []models.ServiceRequest{}, nil
	}
	out, err := s.store.ListRequests(ctx, q)
	if err != nil {
		return nil, classify(err, "failed to list service requests")
	}
	for i := range out {
		redactFor(p, &out[i])
	}
	return out, nil
}

// Get returns one request with its attachments. Existence is checked before scope.
func (s *RequestService) Get(ctx context.Context, p models.Principal, id int64) (*models.ServiceRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to get service request")
	}
	if err := s.policy.Authorize(p, policy.OpGet, req.CustomerNumber, req.Territory); err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to list attachments")
	}
	req.Attachments = attachments
	redactFor(p, req)
	return req, nil
}

// redactFor blanks staff-only fields for customers
func redactFor(p models.Principal, req *models.ServiceRequest) {
	if p.Role == models.RoleCustomer {
		req.InternalNotes = ""
	}
}

// UpdateStatus transitions a request and logs the change in one transaction
func (s *RequestService) UpdateStatus(ctx context.Context, p models.Principal, id int64, body models.UpdateStatusRequest) (*models.UpdateStatusResponse, error) {
	newStatus := models.RequestStatus(strings.TrimSpace(body.Status))
	if !newStatus.IsValid() {
		return nil, apperr.BadRequest("invalid status %q", body.Status).WithDetail("allowed", models.StatusStrings())
	}
	if d := s.policy.Decide(p, policy.OpUpdateStatus); !d.Allow {
		return nil, d.Err
	}

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to get service request")
	}
	if err := s.policy.Authorize(p, policy.OpUpdateStatus, req.CustomerNumber, req.Territory); err != nil {
		return nil, err
	}

	oldStatus := req.Status
	if oldStatus.IsTerminal() && newStatus != oldStatus {
		return nil, apperr.BadRequest("request %s is %s and can no longer change status", req.RequestCode, oldStatus).
			WithDetail("current_status", string(oldStatus))
	}
	description := fmt.Sprintf("Status changed from %s to %s", oldStatus, newStatus)
	if note := strings.TrimSpace(body.Note); note != "" {
		description += ": " + note
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		n, err := tx.UpdateStatus(ctx, id, newStatus)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("request %d not found", id)
		}
		return tx.InsertActivity(ctx, models.ActivityLogEntry{
			RequestID:    id,
			ActivityType: models.ActivityStatusChanged,
			Description:  description,
			PerformedBy:  p.Email,
		})
	})
	if err != nil {
		return nil, classify(err, "failed to update status")
	}

	logging.LogKV("info", "status_changed", map[string]interface{}{
		"request_id": id,
		"from":       string(oldStatus),
		"to":         string(newStatus),
		"principal":  p.Email,
	})
	req.Status = newStatus
	if err := s.notifier.StatusChanged(ctx, req, oldStatus, newStatus); err != nil {
		logNotifyFailure("status_changed", req, err)
	}

	return &models.UpdateStatusResponse{Message: "Status updated successfully", NewStatus: newStatus}, nil
}

// Activity returns the activity log of a request the principal may read
func (s *RequestService) Activity(ctx context.Context, p models.Principal, id int64) ([]models.ActivityLogEntry, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to get service request")
	}
	if err := s.policy.Authorize(p, policy.OpGet, req.CustomerNumber, req.Territory); err != nil {
		return nil, err
	}
	entries, err := s.store.ListActivity(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to list activity")
	}
	return entries, nil
}
