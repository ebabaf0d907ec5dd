package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store is the durable audit sink. It exposes no update or delete.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter, limit, offset int) ([]Entry, int, error)
	ListAll(ctx context.Context, f Filter) ([]Entry, error)
	// ExistingIDs returns the subset of ids already stored
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates the Postgres-backed audit store
func NewRepository(db *sqlx.DB) Store {
	return &repository{db: db}
}

const selectColumns = `id, action, target_id, target_type, details, admin_id, admin_role, created_at`

func (r *repository) Insert(ctx context.Context, e Entry) error {
	// A retried write of an entry that already landed is a no-op.
	query := `
		INSERT INTO admin_audit_log (id, action, target_id, target_type, details, admin_id, admin_role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Action,
		e.TargetID,
		e.TargetType,
		e.Details,
		e.AdminID,
		e.AdminRole,
		e.Timestamp,
	)
	return err
}

func (r *repository) List(ctx context.Context, f Filter, limit, offset int) ([]Entry, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_audit_log`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + selectColumns + ` FROM admin_audit_log` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) +
		` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *repository) ListAll(ctx context.Context, f Filter) ([]Entry, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + selectColumns + ` FROM admin_audit_log` + where + ` ORDER BY created_at DESC, id DESC`

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, `SELECT id FROM admin_audit_log WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}
	return found, nil
}

// buildWhere mirrors Filter.Matches
func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+` $`+strconv.Itoa(len(args)))
	}

	if f.Action != "" {
		add(`action =`, f.Action)
	}
	if f.AdminID != "" {
		add(`admin_id =`, f.AdminID)
	}
	if f.TargetType != "" {
		add(`target_type =`, f.TargetType)
	}
	if f.From != nil {
		add(`created_at >=`, *f.From)
	}
	if f.To != nil {
		add(`created_at <=`, *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}
