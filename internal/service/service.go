// Package service holds the request lifecycle, lookup, attachment and login
// operations. Every operation takes the resolved Principal explicitly and
// consults the access policy before touching a row.
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/repository"
)

// Transactor runs fn inside one store transaction
type Transactor interface {
	InTx(ctx context.Context, fn func(repository.Tx) error) error
}

// RequestStore is the store surface used by the request lifecycle
type RequestStore interface {
	Transactor
	GetRequest(ctx context.Context, id int64) (*models.ServiceRequest, error)
	ListRequests(ctx context.Context, q repository.RequestQuery) ([]models.ServiceRequest, error)
	ListActivity(ctx context.Context, requestID int64) ([]models.ActivityLogEntry, error)
	ListAttachments(ctx context.Context, requestID int64) ([]models.Attachment, error)
	CustomerTerritories(ctx context.Context, customerNumber string) ([]string, error)
	ServiceableRepairability(ctx context.Context, serial, itemNumber string) (*string, error)
}

// AttachmentStore is the store surface used by uploads and downloads
type AttachmentStore interface {
	Transactor
	GetRequest(ctx context.Context, id int64) (*models.ServiceRequest, error)
	GetAttachment(ctx context.Context, requestID int64, blobPath string) (*models.Attachment, error)
}

// CatalogStore is the read-only catalog and reference data
type CatalogStore interface {
	FindItemBySerial(ctx context.Context, serial string) (*models.Item, error)
	FindItemByNumber(ctx context.Context, itemNumber string) (*models.Item, error)
	SearchSerials(ctx context.Context, q string, limit int) ([]models.SerialMatch, error)
	SearchLots(ctx context.Context, q string, limit int) ([]models.LotMatch, error)
	SearchItems(ctx context.Context, q string, limit int) ([]models.ItemMatch, error)
	IssueReasons(ctx context.Context, languageCode string) ([]models.IssueReason, error)
	RepairabilityStatuses(ctx context.Context) ([]models.RepairabilityStatus, error)
	FindCustomerProfile(ctx context.Context, email string) (*models.CustomerProfile, error)
	Countries(ctx context.Context) ([]models.Country, error)
	CountryLanguages(ctx context.Context, countryCode string) ([]models.Language, error)
	LegalDocuments(ctx context.Context, countryCode, languageCode string) ([]models.LegalDocument, error)
}

// UserStore backs the password login flow
type UserStore interface {
	FindCustomerUser(ctx context.Context, email string) (*models.CustomerUser, error)
	TouchLastLogin(ctx context.Context, email string) error
	UserTerritories(ctx context.Context, email string) ([]string, error)
	CustomerTerritories(ctx context.Context, customerNumber string) ([]string, error)
}

var _ RequestStore = (*repository.Repository)(nil)
var _ AttachmentStore = (*repository.Repository)(nil)
var _ CatalogStore = (*repository.Repository)(nil)
var _ UserStore = (*repository.Repository)(nil)

// classify keeps classified errors and turns anything else into Internal
func classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(err, format, args...)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError renders validator failures as one BadRequest naming each field
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.BadRequest("invalid request: %v", err)
	}
	fields := make([]string, 0, len(verrs))
	reasons := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		switch fe.Tag() {
		case "required", "required_if":
			reasons[fe.Field()] = "required"
		case "email":
			reasons[fe.Field()] = "must be a valid email address"
		case "oneof":
			reasons[fe.Field()] = "must be one of: " + fe.Param()
		default:
			reasons[fe.Field()] = fe.Tag()
		}
	}
	e := apperr.BadRequest("invalid or missing field(s): %s", strings.Join(fields, ", "))
	return e.WithDetail("fields", reasons)
}

func logNotifyFailure(event string, req *models.ServiceRequest, err error) {
	logging.LogKV("warn", "notify_failed", map[string]interface{}{
		"event":        event,
		"request_code": req.RequestCode,
		"error":        err.Error(),
	})
}
