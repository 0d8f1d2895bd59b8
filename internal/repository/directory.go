package repository

import (
	"context"
	"fmt"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// CustomerTerritories returns the territories a customer is mapped to, in stable order
func (r *Repository) CustomerTerritories(ctx context.Context, customerNumber string) ([]string, error) {
	rows, err := r.run.Query(ctx, `
		SELECT territory FROM customer_territories
		WHERE customer_number = $1
		ORDER BY territory`, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer territories: %w", err)
	}
	return scanStrings(rows)
}

// UserTerritories returns the territories assigned to a staff user
func (r *Repository) UserTerritories(ctx context.Context, email string) ([]string, error) {
	rows, err := r.run.Query(ctx, `
		SELECT territory FROM user_territories
		WHERE LOWER(email) = LOWER($1)
		ORDER BY territory`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query user territories: %w", err)
	}
	return scanStrings(rows)
}

// FindCustomerUser loads a customer portal user with their customer's name
func (r *Repository) FindCustomerUser(ctx context.Context, email string) (*models.CustomerUser, error) {
	var u models.CustomerUser
	err := r.run.QueryRow(ctx, `
		SELECT cu.email, COALESCE(cu.first_name, ''), COALESCE(cu.last_name, ''), cu.customer_number,
			COALESCE(c.customer_name, ''), COALESCE(cu.password_hash, ''), cu.is_active, cu.role
		FROM customer_users cu
		LEFT JOIN customers c ON cu.customer_number = c.customer_number
		WHERE LOWER(cu.email) = LOWER($1)`, email).Scan(
		&u.Email, &u.FirstName, &u.LastName, &u.CustomerNumber,
		&u.CustomerName, &u.PasswordHash, &u.IsActive, &u.Role,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("user %s not found", email)
		}
		return nil, fmt.Errorf("failed to get customer user: %w", err)
	}
	return &u, nil
}

// FindCustomerProfile returns the autofill profile of an active customer user, or nil
func (r *Repository) FindCustomerProfile(ctx context.Context, email string) (*models.CustomerProfile, error) {
	var p models.CustomerProfile
	err := r.run.QueryRow(ctx, `
		SELECT cu.email, cu.customer_number, COALESCE(cu.first_name, ''), COALESCE(cu.last_name, ''),
			COALESCE(cu.phone_number, ''), c.customer_name, c.country_code,
			COALESCE(c.bill_to_address, ''), COALESCE(c.ship_to_address, ''), COALESCE(c.phone_number, ''),
			c.has_pro_care_contract
		FROM customer_users cu
		INNER JOIN customers c ON cu.customer_number = c.customer_number
		WHERE LOWER(cu.email) = LOWER($1) AND cu.is_active = TRUE AND c.is_active = TRUE`, email).Scan(
		&p.Email, &p.CustomerNumber, &p.FirstName, &p.LastName,
		&p.PhoneNumber, &p.CustomerName, &p.CountryCode,
		&p.BillToAddress, &p.ShipToAddress, &p.CustomerPhone,
		&p.HasProCareContract,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer profile: %w", err)
	}
	return &p, nil
}

// IsAdmin reports whether email is an active admin user
func (r *Repository) IsAdmin(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.run.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM admin_users WHERE LOWER(email) = LOWER($1) AND is_active = TRUE
		)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return exists, nil
}

// TouchLastLogin stamps the user's last successful login
func (r *Repository) TouchLastLogin(ctx context.Context, email string) error {
	if _, err := r.run.Exec(ctx, `UPDATE customer_users SET last_login_date = NOW() WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
