package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/billnotify/internal/domain"
)

// BillRepository reads bills from the ledger tables.
type BillRepository struct {
	db *sqlx.DB
}

// NewBillRepository creates a new BillRepository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

// ListUnpaidDueOn returns the user's unpaid bills due on the given calendar day.
// day must be a UTC midnight as produced by domain.Day.
func (r *BillRepository) ListUnpaidDueOn(ctx context.Context, userID int64, day time.Time) ([]domain.Bill, error) {
	var bills []domain.Bill
	err := r.db.SelectContext(ctx, &bills, r.db.Rebind(
		`SELECT id, user_id, name, amount, due_date, is_paid
		 FROM bills
		 WHERE user_id = ?
		   AND is_paid = ?
		   AND due_date >= ?
		   AND due_date < ?
		 ORDER BY due_date, id`),
		userID, false, day, domain.AddDays(day, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("list unpaid bills for user %d due %s: %w", userID, domain.DayKey(day), err)
	}
	return bills, nil
}
