package executor

import (
	"strconv"
	"strings"

	"github.com/hatlonely/ormx/rdb/pool"
)

// Rebind 把 ? 占位符改写为驱动原生风格，引号内的 ? 保持不变
func Rebind(style pool.Placeholder, query string) string {
	if style == pool.Question || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			sb.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(query) {
				i++
				sb.WriteByte(query[i])
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			sb.WriteByte(c)
		case c == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
