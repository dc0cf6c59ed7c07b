package database

import "strings"

// sqliteTxControl returns the 1-based position and keyword of the first
// top-level statement in script that begins, commits or rolls back a
// transaction. ROLLBACK TO and SAVEPOINT are not reported. It returns 0, ""
// when there is none.
func sqliteTxControl(script string) (int, string) {
	var (
		stmt      []string
		n         int
		inBody    bool // inside a CREATE TRIGGER ... BEGIN ... END body
		caseDepth int
	)

	for _, tok := range append(sqliteTokens(script), ";") {
		if tok == ";" {
			if inBody {
				continue
			}

			if len(stmt) > 0 {
				n++

				if what := txControl(stmt); what != "" {
					return n, what
				}
			}

			stmt = stmt[:0]

			continue
		}

		stmt = append(stmt, tok)

		switch {
		case !inBody && tok == "BEGIN" && isCreateTrigger(stmt):
			inBody = true
		case inBody && tok == "CASE":
			caseDepth++
		case inBody && tok == "END":
			if caseDepth > 0 {
				caseDepth--
			} else {
				inBody = false
			}
		}
	}

	return 0, ""
}

func txControl(stmt []string) string {
	switch stmt[0] {
	case "BEGIN", "COMMIT", "END":
		return stmt[0]
	case "ROLLBACK":
		rest := stmt[1:]
		if len(rest) > 0 && rest[0] == "TRANSACTION" {
			rest = rest[1:]
		}

		if len(rest) > 0 && rest[0] == "TO" {
			return ""
		}

		return stmt[0]
	default:
		return ""
	}
}

func isCreateTrigger(stmt []string) bool {
	if len(stmt) < 2 || stmt[0] != "CREATE" {
		return false
	}

	if stmt[1] == "TEMP" || stmt[1] == "TEMPORARY" {
		return len(stmt) > 2 && stmt[2] == "TRIGGER"
	}

	return stmt[1] == "TRIGGER"
}

// sqliteTokens splits src into upper-cased words and ";" tokens. Comments
// are dropped; string literals and quoted identifiers become "?".
func sqliteTokens(src string) []string {
	var toks []string

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case strings.HasPrefix(src[i:], "--"):
			i = skipPast(src, i+2, "\n")
		case strings.HasPrefix(src[i:], "/*"):
			i = skipPast(src, i+2, "*/")
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(src, i+1, c)
			toks = append(toks, "?")
		case c == '[':
			i = skipPast(src, i+1, "]")
			toks = append(toks, "?")
		case c == ';':
			toks = append(toks, ";")
			i++
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}

			toks = append(toks, strings.ToUpper(src[i:j]))
			i = j
		default:
			i++
		}
	}

	return toks
}

// skipPast returns the index just after the next occurrence of end at or
// after i, or len(src).
func skipPast(src string, i int, end string) int {
	j := strings.Index(src[i:], end)
	if j < 0 {
		return len(src)
	}

	return i + j + len(end)
}

// skipQuoted returns the index just after the closing quote q, treating a
// doubled quote as an escaped one.
func skipQuoted(src string, i int, q byte) int {
	for i < len(src) {
		if src[i] != q {
			i++
			continue
		}

		if i+1 < len(src) && src[i+1] == q {
			i += 2
			continue
		}

		return i + 1
	}

	return len(src)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
