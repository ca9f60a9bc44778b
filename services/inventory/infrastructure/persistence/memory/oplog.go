package memory

import (
	"context"
	"strings"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

type opLogRepo struct{ v *view }

func (r opLogRepo) Record(_ context.Context, l *models.OperationLog) error {
	st, unlock := r.v.acquire()
	defer unlock()
	st.opLogs = append(st.opLogs, *l)
	return nil
}

// List returns newest first.
func (r opLogRepo) List(_ context.Context, f repositories.OperationLogFilter) ([]*models.OperationLog, int, error) {
	st, unlock := r.v.acquire()
	defer unlock()
	search := strings.ToLower(f.Search)
	var out []*models.OperationLog
	for i := len(st.opLogs) - 1; i >= 0; i-- {
		l := st.opLogs[i]
		l.OperatorName = st.operators[l.OperatorID].Username
		switch {
		case f.OperatorID != nil && l.OperatorID != *f.OperatorID,
			f.Type != "" && l.Type != f.Type,
			f.RelatedID != nil && l.RelatedID != *f.RelatedID,
			f.Since != nil && l.CreatedAt.Before(*f.Since),
			f.Until != nil && !l.CreatedAt.Before(*f.Until):
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(l.Details), search) &&
			!strings.Contains(strings.ToLower(l.OperatorName), search) {
			continue
		}
		out = append(out, &l)
	}
	return page(out, f.QueryOpts), len(out), nil
}
