package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// amountEpsilon is the tolerance used when comparing stored amounts.
// Amounts are kept as float64, so exact equality is not reliable after a
// serialize/parse round trip.
const amountEpsilon = 1e-6

var (
	ErrEmptyCategory  = errors.New("category is required")
	ErrInvalidAmount  = errors.New("amount must be a number")
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// Record is one expense entry. ID is assigned by the relational backend and
// stays zero for flat-file records. A zero Timestamp means the moment of
// creation is unknown (legacy rows written without a timestamp column).
type Record struct {
	ID          int64
	Category    string
	Amount      float64
	Description string
	Timestamp   time.Time
}

// Validate enforces the write-time constraints shared by both backends.
// It must run before any I/O so that a rejected record never touches storage.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return ErrInvalidAmount
	}
	if r.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// ParseAmount converts user-supplied text into a non-negative amount.
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// It is the single parse gate for every string amount in the system:
// CLI input, CSV import and JSON import all go through here.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	return d.InexactFloat64(), nil
}

// AmountsEqual reports whether two stored amounts denote the same value
// within the tolerance used by the flat-file delete path.
func AmountsEqual(a, b float64) bool {
	return math.Abs(a-b) < amountEpsilon
}
