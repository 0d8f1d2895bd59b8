package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/service"
)

// RequestService is the request lifecycle surface used by the handlers
type RequestService interface {
	Create(ctx context.Context, p models.Principal, draft models.ServiceRequestDraft) (*models.CreateRequestResponse, error)
	List(ctx context.Context, p models.Principal, f models.RequestListFilter) ([]models.ServiceRequest, error)
	Get(ctx context.Context, p models.Principal, id int64) (*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, p models.Principal, id int64, body models.UpdateStatusRequest) (*models.UpdateStatusResponse, error)
	Activity(ctx context.Context, p models.Principal, id int64) ([]models.ActivityLogEntry, error)
}

// LookupService is the catalog and validation surface used by the handlers
type LookupService interface {
	SearchSerials(ctx context.Context, q string) ([]models.SerialMatch, error)
	SearchLots(ctx context.Context, q string) ([]models.LotMatch, error)
	SearchItems(ctx context.Context, q string) ([]models.ItemMatch, error)
	IssueReasons(ctx context.Context, languageCode string) (map[string][]string, error)
	RepairabilityStatuses(ctx context.Context) ([]models.RepairabilityStatus, error)
	ValidateItem(ctx context.Context, in models.ValidateItemRequest) (*models.ValidateItemResponse, error)
	ValidateCustomer(ctx context.Context, email, countryCode string) (*models.ValidateCustomerResponse, error)
	Countries(ctx context.Context) ([]models.Country, error)
	CountryLanguages(ctx context.Context, countryCode string) ([]models.Language, error)
	LegalDocuments(ctx context.Context, countryCode, languageCode string) ([]models.LegalDocument, error)
}

// AttachmentService stores and signs attachments
type AttachmentService interface {
	Upload(ctx context.Context, p models.Principal, requestID int64, files []service.FileUpload) (*models.UploadResponse, error)
	DownloadURL(ctx context.Context, p models.Principal, requestID int64, fileName string) (*models.DownloadResponse, error)
}

// AuthService signs users in
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

// Pinger reports store connectivity for readiness checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the services and provides HTTP handlers
type Handler struct {
	requests       RequestService
	lookups        LookupService
	attachments    AttachmentService
	auth           AuthService
	db             Pinger
	maxUploadBytes int64
}

// Deps are the collaborators of a Handler
type Deps struct {
	Requests       RequestService
	Lookups        LookupService
	Attachments    AttachmentService
	Auth           AuthService
	DB             Pinger
	MaxUploadBytes int64
}

// NewHandler creates a new handler instance
func NewHandler(d Deps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 128 << 20
	}
	return &Handler{
		requests:       d.Requests,
		lookups:        d.Lookups,
		attachments:    d.Attachments,
		auth:           d.Auth,
		db:             d.DB,
		maxUploadBytes: d.MaxUploadBytes,
	}
}

// Ready checks the database before reporting healthy
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error:   "Database connection failed",
				Message: err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "service-request-api",
		"timestamp": time.Now().UTC(),
	})
}

// Info is the root endpoint
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "service-request-api",
		"version": "1.0.0",
		"status":  "running",
	})
}
