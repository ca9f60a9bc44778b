package postgres

import (
	"context"
	"fmt"

	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type opLogRepo struct{ q database.DBTX }

func (r opLogRepo) Record(ctx context.Context, l *models.OperationLog) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO operation_logs (id, operator_id, operation_type, action, details, related_type, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.OperatorID, l.Type, l.Action, l.Details, l.RelatedType, l.RelatedID, l.CreatedAt)
	return translate(err, "insert operation log")
}

func (r opLogRepo) List(ctx context.Context, f repositories.OperationLogFilter) ([]*models.OperationLog, int, error) {
	var w where
	if f.OperatorID != nil {
		w.add("l.operator_id = ?", *f.OperatorID)
	}
	if f.Type != "" {
		w.add("l.operation_type = ?", f.Type)
	}
	if f.RelatedID != nil {
		w.add("l.related_id = ?", *f.RelatedID)
	}
	if f.Since != nil {
		w.add("l.created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		w.add("l.created_at < ?", *f.Until)
	}
	if f.Search != "" {
		w.add("(l.details ILIKE ? OR o.username ILIKE ?)", likePattern(f.Search))
	}
	const from = ` FROM operation_logs l JOIN operators o ON o.id = l.operator_id`
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT count(*)`+from+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count operation logs: %w", err)
	}
	filter := w.String()
	limit := w.page(f.QueryOpts)
	rows, err := r.q.QueryContext(ctx, `
		SELECT l.id, l.operator_id, o.username, l.operation_type, l.action, l.details,
			l.related_type, l.related_id, l.created_at`+from+filter+`
		ORDER BY l.created_at DESC, l.id`+limit, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query operation logs: %w", err)
	}
	defer rows.Close()
	var out []*models.OperationLog
	for rows.Next() {
		var l models.OperationLog
		if err := rows.Scan(&l.ID, &l.OperatorID, &l.OperatorName, &l.Type, &l.Action, &l.Details,
			&l.RelatedType, &l.RelatedID, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan operation log: %w", err)
		}
		out = append(out, &l)
	}
	return out, total, rows.Err()
}
