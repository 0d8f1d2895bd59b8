package db

import (
	"context"
	"fmt"

	"github.com/GoblinVrc/service-request-backend/internal/logging"
)

// schemaStatements create the logical schema idempotently, in dependency order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_number VARCHAR(50) PRIMARY KEY,
		customer_name VARCHAR(255) NOT NULL,
		country_code VARCHAR(2) NOT NULL,
		bill_to_address TEXT,
		ship_to_address TEXT,
		phone_number VARCHAR(50),
		has_pro_care_contract BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS customer_territories (
		customer_number VARCHAR(50) NOT NULL REFERENCES customers(customer_number),
		territory VARCHAR(50) NOT NULL,
		PRIMARY KEY (customer_number, territory)
	)`,
	`CREATE TABLE IF NOT EXISTS customer_users (
		email VARCHAR(255) PRIMARY KEY,
		customer_number VARCHAR(50) NOT NULL REFERENCES customers(customer_number),
		first_name VARCHAR(100),
		last_name VARCHAR(100),
		phone_number VARCHAR(50),
		password_hash VARCHAR(255),
		role VARCHAR(20) NOT NULL DEFAULT 'Customer',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_date TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS user_territories (
		email VARCHAR(255) NOT NULL,
		territory VARCHAR(50) NOT NULL,
		PRIMARY KEY (email, territory)
	)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		email VARCHAR(255) PRIMARY KEY,
		display_name VARCHAR(255),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		serial_number VARCHAR(100),
		item_number VARCHAR(100) NOT NULL,
		lot_number VARCHAR(100),
		item_description TEXT NOT NULL DEFAULT '',
		product_family VARCHAR(100),
		product_line VARCHAR(100),
		is_serviceable BOOLEAN NOT NULL DEFAULT TRUE,
		repairability_status VARCHAR(50),
		install_base_status VARCHAR(50),
		eligibility_countries TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_serial ON items(serial_number)`,
	`CREATE INDEX IF NOT EXISTS idx_items_item_number ON items(item_number)`,
	`CREATE TABLE IF NOT EXISTS issue_reasons (
		id BIGSERIAL PRIMARY KEY,
		main_reason VARCHAR(255) NOT NULL,
		sub_reason VARCHAR(255),
		language_code VARCHAR(10) NOT NULL DEFAULT 'en',
		display_order INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS repairability_statuses (
		status_code VARCHAR(50) PRIMARY KEY,
		status_name VARCHAR(255) NOT NULL,
		description TEXT,
		repair_location VARCHAR(100),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS countries (
		country_code VARCHAR(2) PRIMARY KEY,
		country_name VARCHAR(100) NOT NULL,
		default_language VARCHAR(10) NOT NULL DEFAULT 'en',
		supported_languages TEXT NOT NULL DEFAULT '["en"]',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS languages (
		language_code VARCHAR(10) PRIMARY KEY,
		language_name VARCHAR(100) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS legal_documents (
		id BIGSERIAL PRIMARY KEY,
		country_code VARCHAR(2) NOT NULL,
		language_code VARCHAR(10) NOT NULL,
		document_type VARCHAR(50) NOT NULL,
		document_url TEXT,
		document_content TEXT,
		version VARCHAR(20) NOT NULL,
		effective_date TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS service_requests (
		id BIGSERIAL PRIMARY KEY,
		request_code VARCHAR(50) NOT NULL UNIQUE,
		request_type VARCHAR(20) NOT NULL,
		serial_number VARCHAR(100),
		item_number VARCHAR(100),
		lot_number VARCHAR(100),
		item_description TEXT,
		product_family VARCHAR(100),
		customer_number VARCHAR(50),
		customer_name VARCHAR(255),
		site_address TEXT,
		territory VARCHAR(50) NOT NULL DEFAULT 'UNKNOWN',
		country_code VARCHAR(2) NOT NULL,
		contact_email VARCHAR(255) NOT NULL,
		contact_name VARCHAR(255) NOT NULL,
		contact_phone VARCHAR(50) NOT NULL,
		main_reason VARCHAR(255) NOT NULL,
		sub_reason VARCHAR(255),
		issue_description TEXT,
		repairability_status VARCHAR(50),
		requested_service_date TIMESTAMPTZ,
		urgency_level VARCHAR(20) NOT NULL DEFAULT 'Normal',
		loaner_required BOOLEAN NOT NULL DEFAULT FALSE,
		loaner_details TEXT,
		quote_required BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(50) NOT NULL,
		submitted_by_email VARCHAR(255) NOT NULL,
		submitted_by_name VARCHAR(255),
		submitted_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_modified_date TIMESTAMPTZ,
		language_code VARCHAR(10) NOT NULL DEFAULT 'en',
		customer_notes TEXT,
		internal_notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_customer ON service_requests(customer_number)`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_territory ON service_requests(territory)`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_submitted ON service_requests(submitted_date DESC)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGSERIAL PRIMARY KEY,
		request_id BIGINT NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
		file_name VARCHAR(255) NOT NULL,
		blob_path VARCHAR(500) NOT NULL UNIQUE,
		file_size BIGINT NOT NULL,
		content_type VARCHAR(100),
		uploaded_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_request ON attachments(request_id)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id BIGSERIAL PRIMARY KEY,
		request_id BIGINT NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
		activity_type VARCHAR(50) NOT NULL,
		activity_description TEXT,
		performed_by VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_log_request ON activity_log(request_id)`,
	`CREATE SEQUENCE IF NOT EXISTS service_request_code_seq`,
	// SR-<COUNTRY>-<YYYYMMDD>-<6 digit sequence>; the sequence makes codes unique across concurrent creates.
	`CREATE OR REPLACE FUNCTION generate_request_code(country TEXT) RETURNS TEXT AS $$
		SELECT 'SR-' || UPPER(country) || '-' || TO_CHAR(NOW(), 'YYYYMMDD') || '-' ||
			LPAD(NEXTVAL('service_request_code_seq')::TEXT, 6, '0');
	$$ LANGUAGE SQL VOLATILE`,
}

// InitSchema creates any missing tables, indexes, the code sequence and its generator function.
func InitSchema(ctx context.Context, r Runner) error {
	for i, stmt := range schemaStatements {
		if _, err := r.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	logging.LogKV("info", "db_schema_ready", map[string]interface{}{"statements": len(schemaStatements)})
	return nil
}
