package bunstore

import (
	"context"
	"fmt"

	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/usage"
)

// CreateUsageRecord persists a usage record.
func (s *Store) CreateUsageRecord(ctx context.Context, rec *usage.Record) error {
	m := toUsageModel(rec)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("scribeq/bun: create usage record: %w", err)
	}
	return nil
}

// ListUsageByTenant returns the tenant's usage records, newest first.
func (s *Store) ListUsageByTenant(ctx context.Context, tenantID id.TenantID, limit, offset int) ([]*usage.Record, error) {
	var models []usageModel
	q := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID.String()).
		OrderExpr("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scribeq/bun: list usage: %w", err)
	}

	records := make([]*usage.Record, 0, len(models))
	for i := range models {
		rec, convErr := fromUsageModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("scribeq/bun: list convert: %w", convErr)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SumUsage totals the tenant's recorded amounts for one resource type.
func (s *Store) SumUsage(ctx context.Context, tenantID id.TenantID, resourceType string) (float64, error) {
	var sum float64
	err := s.db.NewSelect().Model((*usageModel)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("tenant_id = ?", tenantID.String()).
		Where("resource_type = ?", resourceType).
		Scan(ctx, &sum)
	if err != nil {
		return 0, fmt.Errorf("scribeq/bun: sum usage: %w", err)
	}
	return sum, nil
}
