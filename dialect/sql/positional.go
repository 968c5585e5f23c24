package sql

import (
	"fmt"
	"strconv"
	"strings"
)

// Positional rewrites the :name markers of a rendered statement into the
// $n placeholders understood by the PostgreSQL wire protocol and returns the
// matching argument list. Markers inside quoted literals or identifiers and
// :: casts are left untouched. A name used twice maps to the same placeholder.
func Positional(text string, params map[string]any) (string, []any, error) {
	if len(params) == 0 && !strings.Contains(text, ":") {
		return text, nil, nil
	}
	var (
		b     strings.Builder
		args  []any
		index = make(map[string]int, len(params))
	)
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end := closingQuote(text, i)
			b.WriteString(text[i:end])
			i = end - 1
		case c == ':' && i+1 < len(text) && text[i+1] == ':':
			b.WriteString("::")
			i++
		case c == ':' && i+1 < len(text) && isNameStart(text[i+1]):
			j := i + 1
			for j < len(text) && isNamePart(text[j]) {
				j++
			}
			name := text[i+1 : j]
			v, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("dialect/sql: missing value for parameter %q", name)
			}
			n, seen := index[name]
			if !seen {
				args = append(args, v)
				n = len(args)
				index[name] = n
			}
			b.WriteString("$" + strconv.Itoa(n))
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), args, nil
}

// closingQuote returns the index after the quoted section starting at i.
// Doubled quote characters are part of the section.
func closingQuote(text string, i int) int {
	q := text[i]
	for j := i + 1; j < len(text); j++ {
		if text[j] != q {
			continue
		}
		if j+1 < len(text) && text[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(text)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
