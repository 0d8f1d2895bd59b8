package models

import "time"

// ServiceRequestDraft is the intake payload for a new service request.
// Conditional fields follow the request type: Serial needs serial_number, Item needs
// item_number and General needs item_description plus customer_name.
type ServiceRequestDraft struct {
	RequestType  RequestType `json:"request_type" validate:"required,oneof=Serial Item General"`
	CountryCode  string      `json:"country_code" validate:"required"`
	ContactEmail string      `json:"contact_email" validate:"required,email"`
	ContactName  string      `json:"contact_name" validate:"required"`
	ContactPhone string      `json:"contact_phone" validate:"required"`
	MainReason   string      `json:"main_reason" validate:"required"`

	CustomerNumber string `json:"customer_number,omitempty"`
	CustomerName   string `json:"customer_name,omitempty" validate:"required_if=RequestType General"`
	SiteAddress    string `json:"site_address,omitempty"`

	SerialNumber    string `json:"serial_number,omitempty" validate:"required_if=RequestType Serial"`
	ItemNumber      string `json:"item_number,omitempty" validate:"required_if=RequestType Item"`
	LotNumber       string `json:"lot_number,omitempty"`
	ItemDescription string `json:"item_description,omitempty" validate:"required_if=RequestType General"`
	ProductFamily   string `json:"product_family,omitempty"`

	SubReason        string `json:"sub_reason,omitempty"`
	IssueDescription string `json:"issue_description,omitempty"`

	RequestedServiceDate *time.Time   `json:"requested_service_date,omitempty"`
	UrgencyLevel         UrgencyLevel `json:"urgency_level,omitempty" validate:"omitempty,oneof=Normal Urgent Critical"`

	LoanerRequired bool   `json:"loaner_required"`
	LoanerDetails  string `json:"loaner_details,omitempty"`
	QuoteRequired  bool   `json:"quote_required"`

	LanguageCode  string `json:"language_code,omitempty"`
	CustomerNotes string `json:"customer_notes,omitempty"`
}

// CreateRequestResponse confirms a submitted request
type CreateRequestResponse struct {
	Success     bool   `json:"success"`
	RequestID   int64  `json:"request_id"`
	RequestCode string `json:"request_code"`
	Message     string `json:"message"`
	NextSteps   string `json:"next_steps"`
}

// RequestListFilter holds the optional caller-supplied list filters
type RequestListFilter struct {
	Status       string `form:"status"`
	FromDate     string `form:"from_date"`
	ToDate       string `form:"to_date"`
	ItemNumber   string `form:"item_number"`
	SerialNumber string `form:"serial_number"`
}

// UpdateStatusRequest is the body of a status transition
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// UpdateStatusResponse confirms a status transition
type UpdateStatusResponse struct {
	Message   string        `json:"message"`
	NewStatus RequestStatus `json:"new_status"`
}

// ValidateItemRequest asks whether an item may be serviced in a country
type ValidateItemRequest struct {
	SerialNumber string `json:"serial_number,omitempty"`
	ItemNumber   string `json:"item_number,omitempty"`
	CountryCode  string `json:"country_code" binding:"required"`
}

// ValidateItemResponse is the positive eligibility result with autofill data
type ValidateItemResponse struct {
	Valid   bool   `json:"valid"`
	Item    Item   `json:"item"`
	Message string `json:"message"`
}

// ValidateCustomerResponse is the soft-result customer lookup
type ValidateCustomerResponse struct {
	Found    bool             `json:"found"`
	Customer *CustomerProfile `json:"customer,omitempty"`
	Message  string           `json:"message"`
}

// UploadedFile summarises one stored attachment
type UploadedFile struct {
	FileName string `json:"filename"`
	BlobPath string `json:"blob_path"`
	Size     int64  `json:"size"`
}

// UploadResponse lists the files stored by one upload call
type UploadResponse struct {
	Message string         `json:"message"`
	Files   []UploadedFile `json:"files"`
}

// DownloadResponse carries a short-lived signed read URL
type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// LoginRequest is the email/password login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the signed-in user and a bearer token
type LoginResponse struct {
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	CustomerNumber string   `json:"customer_number,omitempty"`
	CustomerName   string   `json:"customer_name,omitempty"`
	Role           Role     `json:"role"`
	Territories    []string `json:"territories,omitempty"`
	Token          string   `json:"token"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
