package operations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines the platform mutations the console can perform
type Repository interface {
	SuspendUser(ctx context.Context, userID, adminID uuid.UUID, reason string) error
	ReinstateUser(ctx context.Context, userID, adminID uuid.UUID) error
	RemoveListing(ctx context.Context, listingID, adminID uuid.UUID, reason string) error
	FreezeAccount(ctx context.Context, userID, adminID uuid.UUID, reason string) error
	FileComplianceReport(ctx context.Context, subjectID, adminID uuid.UUID, category, note string) (uuid.UUID, error)
	// ReleaseEscrow pays out a held escrow. check runs against the locked row before any write.
	ReleaseEscrow(ctx context.Context, escrowID, adminID uuid.UUID, check func(*Escrow) error) (*Escrow, error)
	RefundPayment(ctx context.Context, paymentID, adminID uuid.UUID, amount int64) (*Payment, error)
	GetUserRecord(ctx context.Context, userID uuid.UUID) (map[string]any, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates platform operations repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SuspendUser(ctx context.Context, userID, adminID uuid.UUID, reason string) error {
	query := `
		UPDATE users
		SET is_banned = true, banned_at = NOW(), banned_reason = $2, banned_by = $3, updated_at = NOW()
		WHERE id = $1 AND is_banned = false
	`
	res, err := r.db.ExecContext(ctx, query, userID, reason, adminID)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID)
}

func (r *repository) ReinstateUser(ctx context.Context, userID, adminID uuid.UUID) error {
	query := `
		UPDATE users
		SET is_banned = false, banned_at = NULL, banned_reason = NULL, banned_by = NULL, updated_at = NOW()
		WHERE id = $1 AND is_banned = true
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID)
}

func (r *repository) RemoveListing(ctx context.Context, listingID, adminID uuid.UUID, reason string) error {
	query := `
		UPDATE listings
		SET status = 'removed', removed_at = NOW(), removed_by = $2, removal_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status <> 'removed'
	`
	res, err := r.db.ExecContext(ctx, query, listingID, adminID, reason)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, `SELECT EXISTS(SELECT 1 FROM listings WHERE id = $1)`, listingID)
}

func (r *repository) FreezeAccount(ctx context.Context, userID, adminID uuid.UUID, reason string) error {
	query := `
		UPDATE user_wallets
		SET is_frozen = true, frozen_at = NOW(), frozen_by = $2, frozen_reason = $3, updated_at = NOW()
		WHERE user_id = $1 AND is_frozen = false
	`
	res, err := r.db.ExecContext(ctx, query, userID, adminID, reason)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, `SELECT EXISTS(SELECT 1 FROM user_wallets WHERE user_id = $1)`, userID)
}

func (r *repository) FileComplianceReport(ctx context.Context, subjectID, adminID uuid.UUID, category, note string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO compliance_reports (id, subject_id, category, note, filed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, id, subjectID, category, note, adminID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *repository) ReleaseEscrow(ctx context.Context, escrowID, adminID uuid.UUID, check func(*Escrow) error) (*Escrow, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT id, payee_id, amount, status FROM escrows WHERE id = $1 FOR UPDATE`, escrowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if escrow.Status == EscrowReleased {
		return nil, ErrAlreadyInState
	}
	if escrow.Status != EscrowHeld {
		return nil, ErrInvalidState
	}
	if check != nil {
		if err := check(&escrow); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE escrows SET status = $2, released_at = NOW(), released_by = $3 WHERE id = $1`,
		escrowID, EscrowReleased, adminID,
	); err != nil {
		return nil, err
	}
	if err := creditWallet(ctx, tx, escrow.PayeeID, escrow.Amount, "escrow_release", "escrow:"+escrowID.String()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	escrow.Status = EscrowReleased
	return &escrow, nil
}

func (r *repository) RefundPayment(ctx context.Context, paymentID, adminID uuid.UUID, amount int64) (*Payment, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p Payment
	err = tx.GetContext(ctx, &p,
		`SELECT id, user_id, amount, refunded_amount, status FROM payments WHERE id = $1 FOR UPDATE`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status == PaymentRefunded {
		return nil, ErrAlreadyInState
	}
	if p.Status != PaymentPaid && p.Status != PaymentPartiallyRefunded {
		return nil, ErrInvalidState
	}
	if amount > p.Amount-p.RefundedAmount {
		return nil, ErrRefundExceedsPayment
	}

	p.RefundedAmount += amount
	p.Status = PaymentPartiallyRefunded
	if p.RefundedAmount == p.Amount {
		p.Status = PaymentRefunded
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET refunded_amount = $2, status = $3, refunded_at = NOW(), refunded_by = $4 WHERE id = $1`,
		paymentID, p.RefundedAmount, p.Status, adminID,
	); err != nil {
		return nil, err
	}
	ref := fmt.Sprintf("refund:%s:%d", paymentID, p.RefundedAmount)
	if err := creditWallet(ctx, tx, p.UserID, amount, "refund", ref); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetUserRecord(ctx context.Context, userID uuid.UUID) (map[string]any, error) {
	query := `
		SELECT u.id, u.email, u.role, u.is_banned, u.created_at,
			p.first_name, p.last_name, p.phone, p.bank_account, p.bvn, p.nin
		FROM users u
		LEFT JOIN user_kyc p ON p.user_id = u.id
		WHERE u.id = $1
	`
	record := make(map[string]any)
	if err := r.db.QueryRowxContext(ctx, query, userID).MapScan(record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	for k, v := range record {
		if b, ok := v.([]byte); ok {
			record[k] = string(b)
		}
	}
	return record, nil
}

func (r *repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// checkAffected turns a no-op update into ErrNotFound or ErrAlreadyInState
func (r *repository) checkAffected(ctx context.Context, res sql.Result, existsQuery string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.GetContext(ctx, &exists, existsQuery, id); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyInState
}

// creditWallet adds amount to the user's wallet and records the ledger line in the same transaction
func creditWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64, txType, reference string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_wallets (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_wallets SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1`,
		userID, amount,
	); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (user_id, amount, type, reference_id)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, txType, reference)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}
