package database

import (
	"strconv"
	"strings"
)

// Walk calls fn with consecutive pieces of query, marking each as SQL code or
// as something the server reads verbatim: a quoted literal, a quoted
// identifier or a comment. The pieces concatenate back to query.
//
// MySQL literals honour backslash escapes and # starts a comment there.
func (d Dialect) Walk(query string, fn func(part string, code bool)) {
	mysql := d.driver == DriverMySQL
	start := 0

	for i := 0; i < len(query); {
		end := skipVerbatim(query, i, mysql)
		if end == i {
			i++
			continue
		}
		if i > start {
			fn(query[start:i], true)
		}
		fn(query[i:end], false)
		start, i = end, end
	}

	if start < len(query) {
		fn(query[start:], true)
	}
}

// skipVerbatim returns the end of the literal or comment that starts at i,
// or i when none does. Unterminated ones run to the end of query.
func skipVerbatim(query string, i int, mysql bool) int {
	switch ch := query[i]; {
	case ch == '\'' || ch == '"' || ch == '`':
		backslash := mysql && ch != '`'
		for j := i + 1; j < len(query); j++ {
			switch {
			case backslash && query[j] == '\\':
				j++
			case query[j] == ch:
				return j + 1
			}
		}
		return len(query)

	case strings.HasPrefix(query[i:], "--"), mysql && ch == '#':
		// the newline stays code
		if n := strings.IndexByte(query[i:], '\n'); n >= 0 {
			return i + n
		}
		return len(query)

	case strings.HasPrefix(query[i:], "/*"):
		if n := strings.Index(query[i+2:], "*/"); n >= 0 {
			return i + 2 + n + 2
		}
		return len(query)
	}

	return i
}

// rebindDollar numbers the ? placeholders found in code as $1, $2, ...
func (d Dialect) rebindDollar(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 10)

	d.Walk(query, func(part string, code bool) {
		if !code {
			b.WriteString(part)
			return
		}
		for {
			i := strings.IndexByte(part, '?')
			if i < 0 {
				b.WriteString(part)
				return
			}
			n++
			b.WriteString(part[:i])
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			part = part[i+1:]
		}
	})

	return b.String()
}
