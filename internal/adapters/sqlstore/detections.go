package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// detectionMetadata is the JSON document kept in detections.metadata.
type detectionMetadata struct {
	ImageID            string                    `json:"image_id"`
	BBox               domain.BoundingBox        `json:"bbox"`
	Detail             domain.DetectionMetadata  `json:"detail"`
	GeospatialAnalysis domain.GeospatialAnalysis `json:"geospatial_analysis"`
}

const insertDetection = `
INSERT INTO detections (
    id, image_id, type, confidence, center_lat, center_lng, area,
    class_name, severity, image_url, metadata, processed_at, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// StoreDetections inserts every detection in a single transaction.
func (s *Store) StoreDetections(
	ctx context.Context,
	imageID, imageURL string,
	dets []domain.Detection,
	analysis domain.GeospatialAnalysis,
) ([]string, error) {
	ids := make([]string, 0, len(dets))
	if len(dets) == 0 {
		return ids, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.StorageError{Operation: "store_detections", Key: imageID, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertDetection))
	if err != nil {
		return nil, &domain.StorageError{Operation: "store_detections", Key: imageID, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	now := s.now()
	for _, d := range dets {
		meta, err := json.Marshal(detectionMetadata{
			ImageID:            imageID,
			BBox:               d.BBox,
			Detail:             d.Metadata,
			GeospatialAnalysis: analysis,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding detection metadata: %w", err)
		}

		url := d.ImageURL
		if url == "" {
			url = imageURL
		}

		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			id, imageID, string(d.Type), d.Confidence, d.Center.Lat, d.Center.Lng, d.AreaHectares,
			d.ClassName, string(d.Severity), url, string(meta), now, now,
		); err != nil {
			return nil, &domain.StorageError{Operation: "store_detections", Key: imageID, Err: err}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.StorageError{Operation: "store_detections", Key: imageID, Err: err}
	}
	return ids, nil
}

const selectSupplierDetections = `
SELECT d.id, d.image_id, d.type, d.confidence, d.center_lat, d.center_lng, d.area,
       d.class_name, d.severity, d.image_url, d.metadata, d.processed_at, d.created_at,
       s.name, s.country
FROM detections d
JOIN satellite_data sd ON d.image_url = sd.image_url
JOIN suppliers s ON sd.supplier_id = s.id
WHERE s.id = ?`

// RecentDetections returns the supplier's detections created since the cutoff,
// newest first.
func (s *Store) RecentDetections(ctx context.Context, supplierID string, since time.Time) ([]domain.StoredDetection, error) {
	query := selectSupplierDetections + " AND d.created_at >= ? ORDER BY d.created_at DESC"
	return s.queryDetections(ctx, "recent_detections", query, supplierID, since.UTC())
}

// SupplierDetections returns at most limit detections for the supplier,
// newest first.
func (s *Store) SupplierDetections(ctx context.Context, supplierID string, limit int) ([]domain.StoredDetection, error) {
	query := selectSupplierDetections + " ORDER BY d.created_at DESC LIMIT ?"
	return s.queryDetections(ctx, "supplier_detections", query, supplierID, limit)
}

func (s *Store) queryDetections(ctx context.Context, op, query string, args ...any) ([]domain.StoredDetection, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.StoredDetection{}
	for rows.Next() {
		var (
			d    domain.StoredDetection
			meta []byte
		)
		if err := rows.Scan(
			&d.ID, &d.ImageID, &d.Type, &d.Confidence, &d.Center.Lat, &d.Center.Lng, &d.AreaHectares,
			&d.ClassName, &d.Severity, &d.ImageURL, &meta, &d.ProcessedAt, &d.CreatedAt,
			&d.SupplierName, &d.Country,
		); err != nil {
			return nil, queryErr(op, err)
		}
		if len(meta) > 0 {
			d.Metadata = json.RawMessage(meta)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return out, nil
}

// LinkImage records that an image covers one of the supplier's sites.
// Detections reach suppliers through these links.
func (s *Store) LinkImage(ctx context.Context, supplierID, imageID, imageURL string, acquiredAt *time.Time) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acquired sql.NullTime
	if acquiredAt != nil {
		acquired = sql.NullTime{Time: acquiredAt.UTC(), Valid: true}
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO satellite_data (id, supplier_id, image_id, image_url, acquired_at, created_at)
VALUES (?, ?, ?, ?, ?, ?)`), id, supplierID, imageID, imageURL, acquired, s.now())
	if err != nil {
		return "", &domain.StorageError{Operation: "link_image", Key: imageID, Err: err}
	}
	return id, nil
}
