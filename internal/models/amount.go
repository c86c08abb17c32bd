package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an optional decimal read from a JSON number or numeric string.
// null and blank strings decode as absent.
type Amount struct {
	decimal.NullDecimal
}

// NewAmount returns a present amount
func NewAmount(d decimal.Decimal) Amount {
	return Amount{decimal.NewNullDecimal(d)}
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return a.NullDecimal.UnmarshalJSON(b)
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		a.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// Or returns the amount, or def when absent
func (a Amount) Or(def decimal.Decimal) decimal.Decimal {
	if !a.Valid {
		return def
	}
	return a.Decimal
}
