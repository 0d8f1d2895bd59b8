package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const itemColumns = `
	COALESCE(serial_number, ''), item_number, COALESCE(lot_number, ''), item_description,
	COALESCE(product_family, ''), COALESCE(product_line, ''), is_serviceable,
	COALESCE(repairability_status, ''), COALESCE(install_base_status, ''), eligibility_countries`

func scanItem(row db.Row) (*models.Item, error) {
	var it models.Item
	var eligibility string
	err := row.Scan(
		&it.SerialNumber, &it.ItemNumber, &it.LotNumber, &it.Description,
		&it.ProductFamily, &it.ProductLine, &it.IsServiceable,
		&it.RepairabilityStatus, &it.InstallBaseStatus, &eligibility,
	)
	if err != nil {
		return nil, err
	}
	it.EligibilityCountries, err = decodeStringList(eligibility)
	if err != nil {
		return nil, fmt.Errorf("item %s eligibility_countries: %w", it.ItemNumber, err)
	}
	return &it, nil
}

// decodeStringList reads a JSON array column; empty text is an empty list
func decodeStringList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindItemBySerial returns the install base entry for an exact serial number
func (r *Repository) FindItemBySerial(ctx context.Context, serial string) (*models.Item, error) {
	it, err := scanItem(r.run.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE serial_number = $1 LIMIT 1`, serial))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("serial number %s not found", serial)
		}
		return nil, fmt.Errorf("failed to get item by serial: %w", err)
	}
	return it, nil
}

// FindItemByNumber returns the first catalog entry for an exact item number
func (r *Repository) FindItemByNumber(ctx context.Context, itemNumber string) (*models.Item, error) {
	it, err := scanItem(r.run.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE item_number = $1 ORDER BY id LIMIT 1`, itemNumber))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("item number %s not found", itemNumber)
		}
		return nil, fmt.Errorf("failed to get item by number: %w", err)
	}
	return it, nil
}

// ServiceableRepairability returns the repairability status of a serviceable item
// matching serial or item number, or nil when none matches.
func (r *Repository) ServiceableRepairability(ctx context.Context, serial, itemNumber string) (*string, error) {
	var status *string
	err := r.run.QueryRow(ctx, `
		SELECT repairability_status
		FROM items
		WHERE (serial_number = $1 OR item_number = $2) AND is_serviceable = TRUE
		ORDER BY (serial_number = $1) DESC, id
		LIMIT 1`, serial, itemNumber).Scan(&status)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to derive repairability: %w", err)
	}
	return status, nil
}

// SearchSerials finds serial numbers containing q
func (r *Repository) SearchSerials(ctx context.Context, q string, limit int) ([]models.SerialMatch, error) {
	rows, err := r.run.Query(ctx, `
		SELECT serial_number, item_number, item_description, COALESCE(lot_number, '')
		FROM items
		WHERE serial_number ILIKE $1 ESCAPE '\'
		ORDER BY serial_number
		LIMIT $2`, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search serials: %w", err)
	}
	defer rows.Close()

	out := []models.SerialMatch{}
	for rows.Next() {
		var m models.SerialMatch
		if err := rows.Scan(&m.SerialNumber, &m.ItemNumber, &m.ItemDescription, &m.LotNumber); err != nil {
			return nil, fmt.Errorf("failed to scan serial: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchLots finds lot numbers containing q, with the number of items per lot
func (r *Repository) SearchLots(ctx context.Context, q string, limit int) ([]models.LotMatch, error) {
	rows, err := r.run.Query(ctx, `
		SELECT lot_number, item_number, item_description, COUNT(*) AS item_count
		FROM items
		WHERE lot_number ILIKE $1 ESCAPE '\'
		GROUP BY lot_number, item_number, item_description
		ORDER BY lot_number
		LIMIT $2`, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search lots: %w", err)
	}
	defer rows.Close()

	out := []models.LotMatch{}
	for rows.Next() {
		var m models.LotMatch
		if err := rows.Scan(&m.LotNumber, &m.ItemNumber, &m.ItemDescription, &m.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchItems finds item numbers or descriptions containing q
func (r *Repository) SearchItems(ctx context.Context, q string, limit int) ([]models.ItemMatch, error) {
	rows, err := r.run.Query(ctx, `
		SELECT item_number, item_description, COUNT(*) AS instance_count
		FROM items
		WHERE item_number ILIKE $1 ESCAPE '\' OR item_description ILIKE $1 ESCAPE '\'
		GROUP BY item_number, item_description
		ORDER BY item_number
		LIMIT $2`, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()

	out := []models.ItemMatch{}
	for rows.Next() {
		var m models.ItemMatch
		if err := rows.Scan(&m.ItemNumber, &m.ItemDescription, &m.InstanceCount); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IssueReasons returns the active reasons for a language in display order.
// An empty language returns every language's reasons.
func (r *Repository) IssueReasons(ctx context.Context, languageCode string) ([]models.IssueReason, error) {
	query := `
		SELECT main_reason, COALESCE(sub_reason, ''), display_order
		FROM issue_reasons
		WHERE is_active = TRUE AND language_code = $1
		ORDER BY display_order, main_reason, sub_reason`
	args := []interface{}{languageCode}
	if languageCode == "" {
		query = `
		SELECT main_reason, COALESCE(sub_reason, ''), display_order
		FROM issue_reasons
		WHERE is_active = TRUE
		ORDER BY main_reason, sub_reason`
		args = nil
	}

	rows, err := r.run.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue reasons: %w", err)
	}
	defer rows.Close()

	out := []models.IssueReason{}
	for rows.Next() {
		var ir models.IssueReason
		if err := rows.Scan(&ir.MainReason, &ir.SubReason, &ir.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan issue reason: %w", err)
		}
		out = append(out, ir)
	}
	return out, rows.Err()
}

// RepairabilityStatuses lists the active repairability vocabulary
func (r *Repository) RepairabilityStatuses(ctx context.Context) ([]models.RepairabilityStatus, error) {
	rows, err := r.run.Query(ctx, `
		SELECT status_code, status_name, COALESCE(description, ''), COALESCE(repair_location, '')
		FROM repairability_statuses
		WHERE is_active = TRUE
		ORDER BY status_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query repairability statuses: %w", err)
	}
	defer rows.Close()

	out := []models.RepairabilityStatus{}
	for rows.Next() {
		var s models.RepairabilityStatus
		if err := rows.Scan(&s.StatusCode, &s.StatusName, &s.Description, &s.RepairLocation); err != nil {
			return nil, fmt.Errorf("failed to scan repairability status: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Countries lists active intake countries
func (r *Repository) Countries(ctx context.Context) ([]models.Country, error) {
	rows, err := r.run.Query(ctx, `
		SELECT country_code, country_name, default_language, supported_languages
		FROM countries
		WHERE is_active = TRUE
		ORDER BY country_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	out := []models.Country{}
	for rows.Next() {
		var c models.Country
		var langs string
		if err := rows.Scan(&c.CountryCode, &c.CountryName, &c.DefaultLanguage, &langs); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		if c.SupportedLanguages, err = decodeStringList(langs); err != nil {
			return nil, fmt.Errorf("country %s supported_languages: %w", c.CountryCode, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountryLanguages lists the active languages a country supports
func (r *Repository) CountryLanguages(ctx context.Context, countryCode string) ([]models.Language, error) {
	var raw string
	err := r.run.QueryRow(ctx, `SELECT supported_languages FROM countries WHERE country_code = $1 AND is_active = TRUE`, countryCode).Scan(&raw)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("country %s not found", countryCode)
		}
		return nil, fmt.Errorf("failed to get country: %w", err)
	}
	codes, err := decodeStringList(raw)
	if err != nil {
		return nil, fmt.Errorf("country %s supported_languages: %w", countryCode, err)
	}
	if len(codes) == 0 {
		return []models.Language{}, nil
	}

	args := make([]interface{}, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	rows, err := r.run.Query(ctx, fmt.Sprintf(`
		SELECT language_code, language_name
		FROM languages
		WHERE language_code IN (%s) AND is_active = TRUE
		ORDER BY language_name`, placeholders(1, len(codes))), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query languages: %w", err)
	}
	defer rows.Close()

	out := []models.Language{}
	for rows.Next() {
		var l models.Language
		if err := rows.Scan(&l.LanguageCode, &l.LanguageName); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LegalDocuments returns the active terms/privacy documents for a country and language
func (r *Repository) LegalDocuments(ctx context.Context, countryCode, languageCode string) ([]models.LegalDocument, error) {
	rows, err := r.run.Query(ctx, `
		SELECT document_type, COALESCE(document_url, ''), COALESCE(document_content, ''), version, effective_date
		FROM legal_documents
		WHERE country_code = $1 AND language_code = $2 AND is_active = TRUE
		ORDER BY document_type`, countryCode, languageCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query legal documents: %w", err)
	}
	defer rows.Close()

	out := []models.LegalDocument{}
	for rows.Next() {
		var d models.LegalDocument
		if err := rows.Scan(&d.DocumentType, &d.DocumentURL, &d.DocumentContent, &d.Version, &d.EffectiveDate); err != nil {
			return nil, fmt.Errorf("failed to scan legal document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
