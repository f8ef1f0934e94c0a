package postgres

// convert.go translates pipeline values into pgtype values and back.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// rebind rewrites '?' placeholders as $1, $2, ... leaving quoted literals alone.
func rebind(statement string) string {
	var b strings.Builder
	b.Grow(len(statement) + 8)

	n := 0
	inQuote := false
	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// pgValue converts a binding produced by the pipeline to its pgtype form.
// time.Time bindings are calendar dates.
func pgValue(v any) (any, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return toPgNumeric(v)
	case time.Time:
		return pgtype.Date{Time: v, Valid: true}, nil
	case *string:
		if v == nil {
			return pgtype.Text{}, nil
		}
		return pgtype.Text{String: *v, Valid: true}, nil
	default:
		return v, nil
	}
}

// toPgNumeric converts d exactly, through its decimal string form.
func toPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	return numericFromString(d.String())
}

// toPgNullNumeric maps an unset NullDecimal to SQL NULL.
func toPgNullNumeric(d decimal.NullDecimal) (pgtype.Numeric, error) {
	if !d.Valid {
		return pgtype.Numeric{}, nil
	}
	return toPgNumeric(d.Decimal)
}

func numericFromString(s string) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("convert %q to numeric: %w", s, err)
	}
	return n, nil
}

func decimalFromText(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func nullDecimalFromText(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
