package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is a payable owned by the bill ledger. This service only reads it.
type Bill struct {
	ID      int64           `json:"id" db:"id"`
	UserID  int64           `json:"user_id" db:"user_id"`
	Name    string          `json:"name" db:"name"`
	Amount  decimal.Decimal `json:"amount" db:"amount"`
	DueDate time.Time       `json:"due_date" db:"due_date"`
	Paid    bool            `json:"is_paid" db:"is_paid"`
}

// Frequency is how often a recurring bill template repeats.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyOneTime   Frequency = "one-time"
	FrequencyOther     Frequency = "other"
)

// ParseFrequency maps a raw value to a Frequency. Unknown values map to FrequencyOther.
func ParseFrequency(s string) Frequency {
	switch f := Frequency(s); f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually,
		FrequencyWeekly, FrequencyOneTime:
		return f
	default:
		return FrequencyOther
	}
}

// periodMonths is the number of months a due date moves forward once it has passed.
func (f Frequency) periodMonths() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencyAnnually:
		return 12
	default:
		return 1
	}
}
