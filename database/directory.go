package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"braintree-checkout-api/models"
)

// ShippingRates lists the flat rates available for a destination country.
// Rows with country '*' apply everywhere.
func (c *Connection) ShippingRates(ctx context.Context, countryID string) ([]models.ShippingRate, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT code, carrier, carrier_title, method, method_title, price
		FROM shipping_rates
		WHERE is_active = 1 AND (country_id = ? OR country_id = '*')
		ORDER BY price ASC, code ASC
	`, strings.ToUpper(countryID))
	if err != nil {
		return nil, fmt.Errorf("error getting shipping rates: %w", err)
	}
	defer rows.Close()

	var rates []models.ShippingRate
	for rows.Next() {
		var rate models.ShippingRate
		if err := rows.Scan(&rate.Code, &rate.Carrier, &rate.CarrierName, &rate.Method, &rate.MethodTitle, &rate.Price); err != nil {
			return nil, fmt.Errorf("error scanning shipping rate: %w", err)
		}
		rates = append(rates, rate)
	}

	return rates, rows.Err()
}

// FindRegion looks a region up by its code within a country.
func (c *Connection) FindRegion(ctx context.Context, countryID, code string) (*models.Region, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var region models.Region
	err := c.db.QueryRowContext(ctx, `
		SELECT id, country_id, code, name
		FROM directory_regions
		WHERE country_id = ? AND code = ?
	`, strings.ToUpper(countryID), code).Scan(&region.ID, &region.CountryID, &region.Code, &region.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting region: %w", err)
	}
	return &region, nil
}

// RegionRequired reports whether addresses in the country need a region.
func (c *Connection) RegionRequired(ctx context.Context, countryID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var required bool
	err := c.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM directory_region_required WHERE country_id = ?
		)
	`, strings.ToUpper(countryID)).Scan(&required)
	if err != nil {
		return false, fmt.Errorf("error checking region requirement: %w", err)
	}
	return required, nil
}
