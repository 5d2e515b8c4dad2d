package dialect

import (
	"fmt"
	"time"

	"github.com/pieczasz-labs/qb/model"
	"github.com/pieczasz-labs/qb/plan"
)

// FormatDefault renders a column's default value per §4.4: string defaults
// quoted (with the dialect's own string-quoting rule), booleans as the
// dialect's boolean literal, dates/datetimes as ISO-8601 strings, numeric
// values unquoted, and the CURRENT_TIMESTAMP pseudo-token as
// currentTimestampSQL verbatim (never quoted).
func FormatDefault(col plan.ColumnPlan, quoteString func(string) string, boolLiteral func(bool) string, currentTimestampSQL string) string {
	if !col.HasDefault {
		return ""
	}
	if s, ok := col.DefaultValue.(string); ok && s == model.CurrentTimestamp {
		return currentTimestampSQL
	}
	switch v := col.DefaultValue.(type) {
	case nil:
		return "NULL"
	case bool:
		return boolLiteral(v)
	case string:
		return quoteString(v)
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", v)
	case time.Time:
		if col.Type == plan.KindDate {
			return quoteString(v.Format("2006-01-02"))
		}
		return quoteString(v.Format(time.RFC3339))
	default:
		return quoteString(fmt.Sprintf("%v", v))
	}
}
