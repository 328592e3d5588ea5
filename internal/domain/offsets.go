package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Offsets lists how many days before a due date a reminder fires.
// Stored as a comma-separated string, exposed as a JSON array.
type Offsets []int

// DefaultOffsets is used when a user has not configured any offsets.
func DefaultOffsets() Offsets {
	return Offsets{0, 3, 7}
}

// NormalizeOffsets drops negatives and duplicates and sorts ascending.
func NormalizeOffsets(in []int) Offsets {
	out := make(Offsets, 0, len(in))
	for _, v := range in {
		if v >= 0 {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParseOffsets decodes the storage form. Blank, non-numeric and negative
// tokens are ignored.
func ParseOffsets(s string) Offsets {
	var vals []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		vals = append(vals, n)
	}
	return NormalizeOffsets(vals)
}

// String encodes the offsets in their storage form, e.g. "1,5,10".
func (o Offsets) String() string {
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Value implements driver.Valuer.
func (o Offsets) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return NormalizeOffsets(o).String(), nil
}

// Scan implements sql.Scanner.
func (o *Offsets) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = nil
	case string:
		*o = ParseOffsets(v)
	case []byte:
		*o = ParseOffsets(string(v))
	default:
		return fmt.Errorf("scan offsets: unsupported type %T", src)
	}
	return nil
}

// MarshalJSON always emits an array, never null.
func (o Offsets) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(o))
}
