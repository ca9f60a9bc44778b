// Package postgres implements repositories.Store on PostgreSQL. Writes
// that must be atomic run through Store.WithTx, which shares one *sql.Tx
// between the repositories and the watermill outbox.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/pkg/events"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// Store implements repositories.Store against PostgreSQL.
type Store struct {
	db   *database.Database
	bus  *events.EventBus
	root *view
}

var _ repositories.Store = (*Store)(nil)

// NewStore returns a Store backed by the given pool. When bus is nil the
// outbox records are dropped.
func NewStore(db *database.Database, bus *events.EventBus) *Store {
	return &Store{db: db, bus: bus, root: &view{q: db.DB()}}
}

// WithTx runs fn inside a database transaction. Rows read through the
// Tx's GetForUpdate methods stay locked until fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var ob repositories.Outbox = discardOutbox{}
		if s.bus != nil {
			rec, err := s.bus.NewTxRecorder(tx)
			if err != nil {
				return fmt.Errorf("outbox: %w", err)
			}
			ob = rec
		}
		return fn(&view{q: tx, outbox: ob})
	})
}

func (s *Store) Categories() repositories.CategoryRepository        { return s.root.Categories() }
func (s *Store) Products() repositories.ProductRepository           { return s.root.Products() }
func (s *Store) Stock() repositories.StockRepository                { return s.root.Stock() }
func (s *Store) Movements() repositories.MovementRepository         { return s.root.Movements() }
func (s *Store) Checks() repositories.CheckRepository               { return s.root.Checks() }
func (s *Store) Sales() repositories.SaleRepository                 { return s.root.Sales() }
func (s *Store) Members() repositories.MemberRepository             { return s.root.Members() }
func (s *Store) Operators() repositories.OperatorRepository         { return s.root.Operators() }
func (s *Store) OperationLogs() repositories.OperationLogRepository { return s.root.OperationLogs() }

type view struct {
	q      database.DBTX
	outbox repositories.Outbox
}

func (v *view) Categories() repositories.CategoryRepository        { return categoryRepo{v.q} }
func (v *view) Products() repositories.ProductRepository           { return productRepo{v.q} }
func (v *view) Stock() repositories.StockRepository                { return stockRepo{v.q} }
func (v *view) Movements() repositories.MovementRepository         { return movementRepo{v.q} }
func (v *view) Checks() repositories.CheckRepository               { return checkRepo{v.q} }
func (v *view) Sales() repositories.SaleRepository                 { return saleRepo{v.q} }
func (v *view) Members() repositories.MemberRepository             { return memberRepo{v.q} }
func (v *view) Operators() repositories.OperatorRepository         { return operatorRepo{v.q} }
func (v *view) OperationLogs() repositories.OperationLogRepository { return opLogRepo{v.q} }
func (v *view) Outbox() repositories.Outbox                        { return v.outbox }

type discardOutbox struct{}

func (discardOutbox) Record(context.Context, string, any) error { return nil }

type scanner interface {
	Scan(dest ...any) error
}

// translate maps constraint violations onto domain errors.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	switch database.ErrorCode(err) {
	case database.CodeUniqueViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyExists)
	case database.CodeForeignKeyViolation:
		return fmt.Errorf("%s: %w: referenced row", op, domain.ErrNotFound)
	case database.CodeCheckViolation:
		return fmt.Errorf("%s: %w: constraint violated", op, domain.ErrValidation)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(err error, kind string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(kind, id)
	}
	return fmt.Errorf("query %s: %w", kind, err)
}

// mustAffect returns a not-found error when an UPDATE or DELETE touched no rows.
func mustAffect(res sql.Result, kind string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", kind, err)
	}
	if n == 0 {
		return domain.NotFound(kind, id)
	}
	return nil
}

// likePattern escapes LIKE wildcards in user input.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// where accumulates positional predicates.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders for opts.
func (w *where) page(opts repositories.QueryOpts) string {
	var b strings.Builder
	if opts.Limit > 0 {
		w.args = append(w.args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(w.args))
	}
	if opts.Offset > 0 {
		w.args = append(w.args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(w.args))
	}
	return b.String()
}

// nullable converts a scanned sql.Null into a pointer.
func nullable[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}
