package emit

import (
	"strconv"
	"strings"
)

// BuildDeleteQuery returns the backend search removing every event of ids.
func BuildDeleteQuery(quantifier string, ids []int64) string {
	var b strings.Builder
	if q := strings.TrimSpace(quantifier); q != "" {
		b.WriteString(q)
		b.WriteByte(' ')
	}
	b.WriteByte('(')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString("id=")
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteString(") | delete")
	return b.String()
}
