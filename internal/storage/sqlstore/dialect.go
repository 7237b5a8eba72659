package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the SQL databases Store runs on.
type Dialect struct {
	// Name is used in error messages and logs ("sqlite", "postgres").
	Name string

	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// rebind rewrites ? placeholders for dialects with numbered parameters.
// Queries in this package never contain literal question marks.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) uniqueViolation(err error) bool {
	return d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}
