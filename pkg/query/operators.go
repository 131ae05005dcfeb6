package query

import (
	"fmt"
	"time"
)

// Predicate value helpers for the catalog's operator syntax.

// Greater renders ">v".
func Greater(v interface{}) string { return fmt.Sprintf(">%v", v) }

// Less renders "<v".
func Less(v interface{}) string { return fmt.Sprintf("<%v", v) }

// NotEqual renders "<>v".
func NotEqual(v interface{}) string { return fmt.Sprintf("<>%v", v) }

// Between renders the inclusive range "a--b".
func Between(a, b interface{}) string { return fmt.Sprintf("%v--%v", a, b) }

// Like renders "~~v".
func Like(v interface{}) string { return fmt.Sprintf("~~%v", v) }

// StartsWith renders "^v".
func StartsWith(v interface{}) string { return fmt.Sprintf("^%v", v) }

// Null matches empty values.
const Null = "null-val"

// Now renders a day offset from the current time, e.g. Now(-3) is "now-3".
func Now(days float64) string {
	switch {
	case days == 0:
		return "now"
	case days > 0:
		return fmt.Sprintf("now+%g", days)
	default:
		return fmt.Sprintf("now%g", days)
	}
}

// Date formats t the way date predicates expect.
func Date(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DateTime formats t with second precision.
func DateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}
