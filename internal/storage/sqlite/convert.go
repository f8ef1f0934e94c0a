package sqlite

import (
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// bindValue converts a pipeline binding to the TEXT form the schema stores.
// time.Time bindings are calendar dates.
func bindValue(v any) any {
	switch v := v.(type) {
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format(dateLayout)
	case *string:
		if v == nil {
			return nil
		}
		return *v
	default:
		return v
	}
}

func nullDecimalValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
