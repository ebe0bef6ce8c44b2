package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// GetSupplier returns the supplier with its organization name.
func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		sup      domain.Supplier
		lat, lng sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT s.id, s.organization_id, o.name, s.name, s.country, s.latitude, s.longitude, s.created_at
FROM suppliers s
JOIN organizations o ON s.organization_id = o.id
WHERE s.id = ?`), id).Scan(
		&sup.ID, &sup.OrganizationID, &sup.OrganizationName, &sup.Name, &sup.Country, &lat, &lng, &sup.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSupplierNotFound
	}
	if err != nil {
		return nil, &domain.StorageError{Operation: "get_supplier", Key: id, Err: err}
	}

	if lat.Valid && lng.Valid {
		sup.Location = &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &sup, nil
}

// CreateOrganization inserts an organization and returns its ID.
func (s *Store) CreateOrganization(ctx context.Context, name string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)`), id, name, s.now(),
	); err != nil {
		return "", &domain.StorageError{Operation: "create_organization", Key: name, Err: err}
	}
	return id, nil
}

// CreateSupplier inserts a supplier. An empty ID is generated.
func (s *Store) CreateSupplier(ctx context.Context, sup domain.Supplier) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if sup.ID == "" {
		sup.ID = uuid.NewString()
	}
	var lat, lng sql.NullFloat64
	if sup.Location != nil {
		lat = sql.NullFloat64{Float64: sup.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: sup.Location.Lng, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO suppliers (id, organization_id, name, country, latitude, longitude, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		sup.ID, sup.OrganizationID, sup.Name, sup.Country, lat, lng, s.now(),
	); err != nil {
		return "", &domain.StorageError{Operation: "create_supplier", Key: sup.ID, Err: err}
	}
	return sup.ID, nil
}
