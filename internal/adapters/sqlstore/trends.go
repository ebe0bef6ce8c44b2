package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// TrendRows aggregates an organization's detections by day and type, newest
// day first. start and end bound created_at inclusively when set.
func (s *Store) TrendRows(ctx context.Context, orgID string, start, end *time.Time) ([]domain.TrendRow, error) {
	day := s.dateExpr("d.created_at")

	var q strings.Builder
	q.WriteString(`
SELECT ` + day + ` AS day, d.type, COUNT(*), AVG(d.confidence), COALESCE(SUM(d.area), 0)
FROM detections d
JOIN satellite_data sd ON d.image_url = sd.image_url
JOIN suppliers s ON sd.supplier_id = s.id
WHERE s.organization_id = ?`)
	args := []any{orgID}

	if start != nil {
		q.WriteString(" AND d.created_at >= ?")
		args = append(args, start.UTC())
	}
	if end != nil {
		q.WriteString(" AND d.created_at <= ?")
		args = append(args, end.UTC())
	}
	q.WriteString(" GROUP BY day, d.type ORDER BY day DESC, d.type")

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(q.String()), args...)
	if err != nil {
		return nil, queryErr("trend_rows", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.TrendRow{}
	for rows.Next() {
		var r domain.TrendRow
		if err := rows.Scan(&r.Date, &r.Type, &r.Count, &r.AvgConfidence, &r.TotalArea); err != nil {
			return nil, queryErr("trend_rows", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("trend_rows", err)
	}
	return out, nil
}
