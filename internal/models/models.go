package models

import (
	"strings"
	"time"
)

// Role is the caller's access tier
type Role string

const (
	RoleCustomer  Role = "Customer"
	RoleSalesTech Role = "SalesTech"
	RoleAdmin     Role = "Admin"
)

// ParseRole normalises a role claim. Unknown values downgrade to Customer and report false.
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "CUSTOMER":
		return RoleCustomer, true
	case "SALESTECH":
		return RoleSalesTech, true
	case "ADMIN":
		return RoleAdmin, true
	default:
		return RoleCustomer, false
	}
}

// Principal is the resolved identity, role and scope of the caller for one operation
type Principal struct {
	Email          string   `json:"email"`
	Name           string   `json:"name,omitempty"`
	Role           Role     `json:"role"`
	CustomerNumber string   `json:"customer_number,omitempty"`
	CustomerName   string   `json:"customer_name,omitempty"`
	Territories    []string `json:"territories,omitempty"`
	Anonymous      bool     `json:"anonymous,omitempty"`
}

// RequestType classifies how the serviced item is identified
type RequestType string

const (
	RequestTypeSerial  RequestType = "Serial"
	RequestTypeItem    RequestType = "Item"
	RequestTypeGeneral RequestType = "General"
)

// IsValid checks if the request type is valid
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeSerial, RequestTypeItem, RequestTypeGeneral:
		return true
	default:
		return false
	}
}

// RequestStatus is a lifecycle label from the fixed status vocabulary
type RequestStatus string

const (
	StatusSubmitted       RequestStatus = "Submitted"
	StatusOpen            RequestStatus = "Open"
	StatusInProgress      RequestStatus = "In Progress"
	StatusReceived        RequestStatus = "Received"
	StatusRepairCompleted RequestStatus = "Repair Completed"
	StatusShippedBack     RequestStatus = "Shipped Back"
	StatusResolved        RequestStatus = "Resolved"
	StatusClosed          RequestStatus = "Closed"
	StatusCancelled       RequestStatus = "Cancelled"
)

// AllStatuses is the allowed status vocabulary in lifecycle order
var AllStatuses = []RequestStatus{
	StatusSubmitted,
	StatusOpen,
	StatusInProgress,
	StatusReceived,
	StatusRepairCompleted,
	StatusShippedBack,
	StatusResolved,
	StatusClosed,
	StatusCancelled,
}

// IsValid checks if the status is part of the vocabulary
func (s RequestStatus) IsValid() bool {
	for _, allowed := range AllStatuses {
		if s == allowed {
			return true
		}
	}
	return false
}

// IsInitial reports whether s may be used as the creation status
func (s RequestStatus) IsInitial() bool {
	return s == StatusSubmitted || s == StatusOpen
}

// IsTerminal reports whether s ends the lifecycle. Terminal requests keep their status.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// StatusStrings returns the vocabulary as plain strings for error payloads
func StatusStrings() []string {
	out := make([]string, len(AllStatuses))
	for i, s := range AllStatuses {
		out[i] = string(s)
	}
	return out
}

// UrgencyLevel ranks how quickly a request needs attention
type UrgencyLevel string

const (
	UrgencyNormal   UrgencyLevel = "Normal"
	UrgencyUrgent   UrgencyLevel = "Urgent"
	UrgencyCritical UrgencyLevel = "Critical"
)

// IsValid checks if the urgency level is valid
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case UrgencyNormal, UrgencyUrgent, UrgencyCritical:
		return true
	default:
		return false
	}
}

// UnknownTerritory is routed to when a customer has no territory mapping
const UnknownTerritory = "UNKNOWN"

// ServiceRequest is one repair/service case
type ServiceRequest struct {
	ID                   int64         `json:"id" db:"id"`
	RequestCode          string        `json:"request_code" db:"request_code"`
	RequestType          RequestType   `json:"request_type" db:"request_type"`
	SerialNumber         string        `json:"serial_number,omitempty" db:"serial_number"`
	ItemNumber           string        `json:"item_number,omitempty" db:"item_number"`
	LotNumber            string        `json:"lot_number,omitempty" db:"lot_number"`
	ItemDescription      string        `json:"item_description,omitempty" db:"item_description"`
	ProductFamily        string        `json:"product_family,omitempty" db:"product_family"`
	CustomerNumber       string        `json:"customer_number,omitempty" db:"customer_number"`
	CustomerName         string        `json:"customer_name,omitempty" db:"customer_name"`
	SiteAddress          string        `json:"site_address,omitempty" db:"site_address"`
	Territory            string        `json:"territory" db:"territory"`
	CountryCode          string        `json:"country_code" db:"country_code"`
	ContactEmail         string        `json:"contact_email" db:"contact_email"`
	ContactName          string        `json:"contact_name" db:"contact_name"`
	ContactPhone         string        `json:"contact_phone" db:"contact_phone"`
	MainReason           string        `json:"main_reason" db:"main_reason"`
	SubReason            string        `json:"sub_reason,omitempty" db:"sub_reason"`
	IssueDescription     string        `json:"issue_description,omitempty" db:"issue_description"`
	RepairabilityStatus  *string       `json:"repairability_status,omitempty" db:"repairability_status"`
	RequestedServiceDate *time.Time    `json:"requested_service_date,omitempty" db:"requested_service_date"`
	UrgencyLevel         UrgencyLevel  `json:"urgency_level" db:"urgency_level"`
	LoanerRequired       bool          `json:"loaner_required" db:"loaner_required"`
	LoanerDetails        string        `json:"loaner_details,omitempty" db:"loaner_details"`
	QuoteRequired        bool          `json:"quote_required" db:"quote_required"`
	Status               RequestStatus `json:"status" db:"status"`
	SubmittedByEmail     string        `json:"submitted_by_email" db:"submitted_by_email"`
	SubmittedByName      string        `json:"submitted_by_name,omitempty" db:"submitted_by_name"`
	SubmittedDate        time.Time     `json:"submitted_date" db:"submitted_date"`
	LastModifiedDate     *time.Time    `json:"last_modified_date,omitempty" db:"last_modified_date"`
	LanguageCode         string        `json:"language_code" db:"language_code"`
	CustomerNotes        string        `json:"customer_notes,omitempty" db:"customer_notes"`
	InternalNotes        string        `json:"internal_notes,omitempty" db:"internal_notes"`
	Attachments          []Attachment  `json:"attachments,omitempty"` // Populated on detail fetch
}

// Attachment is the stored reference to a blob uploaded for a request
type Attachment struct {
	ID           int64     `json:"id" db:"id"`
	RequestID    int64     `json:"request_id" db:"request_id"`
	FileName     string    `json:"file_name" db:"file_name"`
	BlobPath     string    `json:"blob_path" db:"blob_path"`
	FileSize     int64     `json:"file_size" db:"file_size"`
	ContentType  string    `json:"content_type" db:"content_type"`
	UploadedDate time.Time `json:"uploaded_date" db:"uploaded_date"`
}

// ActivityLogEntry records one lifecycle event of a request
type ActivityLogEntry struct {
	ID           int64     `json:"id" db:"id"`
	RequestID    int64     `json:"request_id" db:"request_id"`
	ActivityType string    `json:"activity_type" db:"activity_type"`
	Description  string    `json:"activity_description" db:"activity_description"`
	PerformedBy  string    `json:"performed_by" db:"performed_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

const (
	ActivityCreated       = "Created"
	ActivityStatusChanged = "StatusChanged"
	ActivityAttachment    = "AttachmentAdded"
)

// Item is a catalog / install base entry (read-only to this service)
type Item struct {
	SerialNumber         string   `json:"serial_number,omitempty"`
	ItemNumber           string   `json:"item_number"`
	LotNumber            string   `json:"lot_number,omitempty"`
	Description          string   `json:"item_description"`
	ProductFamily        string   `json:"product_family,omitempty"`
	ProductLine          string   `json:"product_line,omitempty"`
	IsServiceable        bool     `json:"is_serviceable"`
	RepairabilityStatus  string   `json:"repairability_status,omitempty"`
	InstallBaseStatus    string   `json:"install_base_status,omitempty"`
	EligibilityCountries []string `json:"eligibility_countries"`
}

// EligibleIn reports whether country is listed in the item's eligibility set
func (i Item) EligibleIn(country string) bool {
	for _, c := range i.EligibilityCountries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// ExcludedInstallBaseStatuses are terminal install base states that cannot be serviced
var ExcludedInstallBaseStatuses = []string{"DECOMMISSIONED", "SCRAPPED", "SOLD"}

// HasTerminalInstallBaseStatus reports whether the item is decommissioned, scrapped or sold
func (i Item) HasTerminalInstallBaseStatus() bool {
	for _, s := range ExcludedInstallBaseStatuses {
		if strings.EqualFold(i.InstallBaseStatus, s) {
			return true
		}
	}
	return false
}

// SerialMatch is a serial number lookup hit
type SerialMatch struct {
	SerialNumber    string `json:"serial_number"`
	ItemNumber      string `json:"item_number"`
	ItemDescription string `json:"item_description"`
	LotNumber       string `json:"lot_number,omitempty"`
}

// LotMatch is a lot number lookup hit
type LotMatch struct {
	LotNumber       string `json:"lot_number"`
	ItemNumber      string `json:"item_number"`
	ItemDescription string `json:"item_description"`
	ItemCount       int64  `json:"item_count"`
}

// ItemMatch is an item number / description lookup hit
type ItemMatch struct {
	ItemNumber      string `json:"item_number"`
	ItemDescription string `json:"item_description"`
	InstanceCount   int64  `json:"instance_count"`
}

// IssueReason is one row of the issue taxonomy
type IssueReason struct {
	MainReason   string `json:"main_reason"`
	SubReason    string `json:"sub_reason,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

// RepairabilityStatus describes one repairability vocabulary entry
type RepairabilityStatus struct {
	StatusCode     string `json:"status_code"`
	StatusName     string `json:"status_name"`
	Description    string `json:"description,omitempty"`
	RepairLocation string `json:"repair_location,omitempty"`
}

// Country is an active intake country
type Country struct {
	CountryCode        string   `json:"country_code"`
	CountryName        string   `json:"country_name"`
	DefaultLanguage    string   `json:"default_language"`
	SupportedLanguages []string `json:"supported_languages"`
}

// Language is a supported UI language
type Language struct {
	LanguageCode string `json:"language_code"`
	LanguageName string `json:"language_name"`
}

// LegalDocument is a country/language specific terms or privacy document
type LegalDocument struct {
	DocumentType    string     `json:"document_type"`
	DocumentURL     string     `json:"document_url,omitempty"`
	DocumentContent string     `json:"document_content,omitempty"`
	Version         string     `json:"version"`
	EffectiveDate   *time.Time `json:"effective_date,omitempty"`
}

// CustomerProfile is the autofill payload for a known customer user
type CustomerProfile struct {
	Email              string `json:"email"`
	CustomerNumber     string `json:"customer_number"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	PhoneNumber        string `json:"phone_number,omitempty"`
	CustomerName       string `json:"customer_name"`
	CountryCode        string `json:"country_code"`
	BillToAddress      string `json:"bill_to_address,omitempty"`
	ShipToAddress      string `json:"ship_to_address,omitempty"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
	HasProCareContract bool   `json:"has_pro_care_contract"`
}

// CustomerUser is the login record of a customer portal user
type CustomerUser struct {
	Email          string
	FirstName      string
	LastName       string
	CustomerNumber string
	CustomerName   string
	PasswordHash   string
	IsActive       bool
	Role           string
}

// FullName joins first and last name
func (u CustomerUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
