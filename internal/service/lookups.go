package service

import (
	"context"
	"strings"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const (
	// LookupLimit caps every catalog search result
	LookupLimit = 10
	// MinLookupQueryLength is the shortest accepted search term
	MinLookupQueryLength = 2
)

// LookupService answers read-only catalog, taxonomy and eligibility questions
type LookupService struct {
	store CatalogStore
}

func NewLookupService(store CatalogStore) *LookupService {
	return &LookupService{store: store}
}

func lookupQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if len(q) < MinLookupQueryLength {
		return "", apperr.BadRequest("query must be at least %d characters", MinLookupQueryLength)
	}
	return q, nil
}

func (s *LookupService) SearchSerials(ctx context.Context, q string) ([]models.SerialMatch, error) {
	q, err := lookupQuery(q)
	if err != nil {
		return nil, err
	}
	out, err := s.store.SearchSerials(ctx, q, LookupLimit)
	return out, classify(err, "failed to search serial numbers")
}

func (s *LookupService) SearchLots(ctx context.Context, q string) ([]models.LotMatch, error) {
	q, err := lookupQuery(q)
	if err != nil {
		return nil, err
	}
	out, err := s.store.SearchLots(ctx, q, LookupLimit)
	return out, classify(err, "failed to search lot numbers")
}

func (s *LookupService) SearchItems(ctx context.Context, q string) ([]models.ItemMatch, error) {
	q, err := lookupQuery(q)
	if err != nil {
		return nil, err
	}
	out, err := s.store.SearchItems(ctx, q, LookupLimit)
	return out, classify(err, "failed to search items")
}

// IssueReasons groups sub reasons under their main reason. An empty language
// groups the reasons of every language.
func (s *LookupService) IssueReasons(ctx context.Context, languageCode string) (map[string][]string, error) {
	reasons, err := s.store.IssueReasons(ctx, strings.TrimSpace(languageCode))
	if err != nil {
		return nil, classify(err, "failed to load issue reasons")
	}
	grouped := make(map[string][]string)
	for _, r := range reasons {
		if _, ok := grouped[r.MainReason]; !ok {
			grouped[r.MainReason] = []string{}
		}
		if r.SubReason != "" {
			grouped[r.MainReason] = append(grouped[r.MainReason], r.SubReason)
		}
	}
	return grouped, nil
}

func (s *LookupService) RepairabilityStatuses(ctx context.Context) ([]models.RepairabilityStatus, error) {
	out, err := s.store.RepairabilityStatuses(ctx)
	return out, classify(err, "failed to load repairability statuses")
}

// ValidateItem checks that an item exists, is serviceable, is eligible in the
// country and is not in a terminal install base state. The serial number wins
// when both identifiers are given.
func (s *LookupService) ValidateItem(ctx context.Context, in models.ValidateItemRequest) (*models.ValidateItemResponse, error) {
	serial := strings.TrimSpace(in.SerialNumber)
	itemNumber := strings.TrimSpace(in.ItemNumber)
	country := strings.ToUpper(strings.TrimSpace(in.CountryCode))
	if serial == "" && itemNumber == "" {
		return nil, apperr.BadRequest("either serial_number or item_number is required")
	}
	if country == "" {
		return nil, apperr.BadRequest("country_code is required")
	}

	var (
		item *models.Item
		err  error
	)
	if serial != "" {
		item, err = s.store.FindItemBySerial(ctx, serial)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Serial number not found in system")
		}
	} else {
		item, err = s.store.FindItemByNumber(ctx, itemNumber)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Item number not found in system")
		}
	}
	if err != nil {
		return nil, classify(err, "failed to look up item")
	}

	if !item.IsServiceable {
		return nil, apperr.Forbidden("Item is not serviceable").WithDetail("item", *item)
	}
	if !item.EligibleIn(country) {
		return nil, apperr.Forbidden("Item is not eligible for service in %s", country).
			WithDetail("eligible_countries", item.EligibilityCountries).
			WithDetail("item", *item)
	}
	if item.HasTerminalInstallBaseStatus() {
		return nil, apperr.Forbidden("Item with status '%s' is not eligible for service", item.InstallBaseStatus).
			WithDetail("item", *item)
	}

	return &models.ValidateItemResponse{
		Valid:   true,
		Item:    *item,
		Message: "Item is eligible for service request",
	}, nil
}

// ValidateCustomer looks up autofill data. An unknown customer is a soft result.
func (s *LookupService) ValidateCustomer(ctx context.Context, email, countryCode string) (*models.ValidateCustomerResponse, error) {
	email = strings.TrimSpace(email)
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if email == "" || countryCode == "" {
		return nil, apperr.BadRequest("email and country_code are required")
	}

	profile, err := s.store.FindCustomerProfile(ctx, email)
	if err != nil {
		return nil, classify(err, "failed to look up customer")
	}
	if profile == nil {
		return &models.ValidateCustomerResponse{
			Found:   false,
			Message: "Customer not found in system. Please enter details manually.",
		}, nil
	}
	if !strings.EqualFold(profile.CountryCode, countryCode) {
		return nil, apperr.Forbidden("Customer is registered in %s, not %s", profile.CountryCode, countryCode)
	}
	return &models.ValidateCustomerResponse{
		Found:    true,
		Customer: profile,
		Message:  "Customer found. Form will be auto-filled.",
	}, nil
}

func (s *LookupService) Countries(ctx context.Context) ([]models.Country, error) {
	out, err := s.store.Countries(ctx)
	return out, classify(err, "failed to load countries")
}

func (s *LookupService) CountryLanguages(ctx context.Context, countryCode string) ([]models.Language, error) {
	out, err := s.store.CountryLanguages(ctx, strings.ToUpper(strings.TrimSpace(countryCode)))
	return out, classify(err, "failed to load languages for %s", countryCode)
}

// LegalDocuments returns a country's documents, defaulting the language to English
func (s *LookupService) LegalDocuments(ctx context.Context, countryCode, languageCode string) ([]models.LegalDocument, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if countryCode == "" {
		return nil, apperr.BadRequest("country code is required")
	}
	if languageCode == "" {
		languageCode = "en"
	}
	out, err := s.store.LegalDocuments(ctx, countryCode, languageCode)
	if err != nil {
		return nil, classify(err, "failed to load legal documents")
	}
	if len(out) == 0 {
		return nil, apperr.NotFound("no legal documents for %s/%s", countryCode, languageCode)
	}
	return out, nil
}
