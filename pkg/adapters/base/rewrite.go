package base

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MapOutsideLiterals применяет fn к частям запроса вне строковых литералов '...'
// Удвоенная кавычка внутри литерала считается частью литерала
func MapOutsideLiterals(sql string, fn func(string) string) string {
	var sb strings.Builder
	sb.Grow(len(sql))

	start := 0
	inLiteral := false
	for i := 0; i < len(sql); i++ {
		if sql[i] != '\'' {
			continue
		}
		if !inLiteral {
			sb.WriteString(fn(sql[start:i]))
			start = i
			inLiteral = true
			continue
		}
		if i+1 < len(sql) && sql[i+1] == '\'' {
			i++
			continue
		}
		sb.WriteString(sql[start : i+1])
		start = i + 1
		inLiteral = false
	}

	if inLiteral {
		// незакрытый литерал оставляем как есть
		sb.WriteString(sql[start:])
	} else {
		sb.WriteString(fn(sql[start:]))
	}
	return sb.String()
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CollapseWhitespace обрезает пробелы по краям и схлопывает пробельные
// последовательности вне литералов в один пробел
func CollapseWhitespace(sql string) string {
	return strings.TrimSpace(MapOutsideLiterals(sql, func(s string) string {
		return whitespaceRun.ReplaceAllString(s, " ")
	}))
}

// ReplaceOutsideLiterals заменяет все вхождения old на repl вне литералов
func ReplaceOutsideLiterals(sql, old, repl string) string {
	return MapOutsideLiterals(sql, func(s string) string {
		return strings.ReplaceAll(s, old, repl)
	})
}

// ReplacePattern применяет регулярное выражение вне литералов
func ReplacePattern(sql string, re *regexp.Regexp, repl string) string {
	return MapOutsideLiterals(sql, func(s string) string {
		return re.ReplaceAllString(s, repl)
	})
}

// ContainsOutsideLiterals ищет подстроку без учета регистра вне литералов
func ContainsOutsideLiterals(sql, substr string) bool {
	found := false
	upper := strings.ToUpper(substr)
	MapOutsideLiterals(sql, func(s string) string {
		if !found && strings.Contains(strings.ToUpper(s), upper) {
			found = true
		}
		return s
	})
	return found
}

// Word возвращает регулярное выражение для целого слова без учета регистра
// Пробелы в word соответствуют любой пробельной последовательности
func Word(word string) *regexp.Regexp {
	parts := strings.Fields(word)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)
}

// Общие шаблоны типов
var (
	VarcharMax    = regexp.MustCompile(`(?i)\bVARCHAR\s*\(\s*MAX\s*\)`)
	AutoIncrement = Word("AUTOINCREMENT")

	indexIfNotExists = regexp.MustCompile(`(?i)^(CREATE\s+(?:\w+\s+)?INDEX\s+)IF\s+NOT\s+EXISTS\s+`)
	tableIfNotExists = regexp.MustCompile(`(?i)^(CREATE\s+TABLE\s+)IF\s+NOT\s+EXISTS\s+`)
	tableIfExists    = regexp.MustCompile(`(?i)^DROP\s+TABLE\s+IF\s+EXISTS\s+(\S+)\s*$`)
	trailingLimit    = regexp.MustCompile(`(?i)\s+LIMIT\s+(\d+)(?:\s+OFFSET\s+(\d+))?\s*$`)
)

// HasIndexIfNotExists сообщает, что запрос - CREATE [TYPE] INDEX IF NOT EXISTS
func HasIndexIfNotExists(sql string) bool {
	return indexIfNotExists.MatchString(strings.TrimSpace(sql))
}

// StripIndexIfNotExists убирает IF NOT EXISTS из CREATE INDEX
func StripIndexIfNotExists(sql string) (string, bool) {
	if !indexIfNotExists.MatchString(sql) {
		return sql, false
	}
	return indexIfNotExists.ReplaceAllString(sql, "${1}"), true
}

// HasTableIfNotExists сообщает, что запрос - CREATE TABLE IF NOT EXISTS
func HasTableIfNotExists(sql string) bool {
	return tableIfNotExists.MatchString(strings.TrimSpace(sql))
}

// StripTableIfNotExists убирает IF NOT EXISTS из CREATE TABLE и возвращает имя таблицы
func StripTableIfNotExists(sql string) (stripped, table string, ok bool) {
	loc := tableIfNotExists.FindStringSubmatchIndex(sql)
	if loc == nil {
		return sql, "", false
	}
	stripped = tableIfNotExists.ReplaceAllString(sql, "${1}")
	rest := strings.TrimSpace(sql[loc[1]:])
	if i := strings.IndexAny(rest, " ("); i >= 0 {
		table = rest[:i]
	} else {
		table = rest
	}
	return stripped, table, true
}

// DropTableIfExists возвращает имя таблицы для DROP TABLE IF EXISTS
func DropTableIfExists(sql string) (string, bool) {
	m := tableIfExists.FindStringSubmatch(sql)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LimitToFetch заменяет завершающий LIMIT n [OFFSET m] на
// OFFSET m ROWS FETCH NEXT n ROWS ONLY
// orderByFallback добавляется, если в запросе нет ORDER BY (MS SQL требует его для OFFSET)
func LimitToFetch(sql, orderByFallback string) string {
	m := trailingLimit.FindStringSubmatchIndex(sql)
	if m == nil || !ContainsOutsideLiterals(sql[m[0]:], "LIMIT") {
		return sql
	}

	limit := sql[m[2]:m[3]]
	offset := "0"
	if m[4] >= 0 {
		offset = sql[m[4]:m[5]]
	}

	head := sql[:m[0]]
	if orderByFallback != "" && !ContainsOutsideLiterals(head, "ORDER BY") {
		head += " ORDER BY " + orderByFallback
	}
	return fmt.Sprintf("%s OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", head, offset, limit)
}

// RebindDollar заменяет '?' на $1, $2, ... вне литералов (PostgreSQL)
func RebindDollar(sql string) string {
	n := 0
	return MapOutsideLiterals(sql, func(s string) string {
		if !strings.Contains(s, "?") {
			return s
		}
		var sb strings.Builder
		for i := 0; i < len(s); i++ {
			if s[i] == '?' {
				n++
				sb.WriteString("$")
				sb.WriteString(strconv.Itoa(n))
				continue
			}
			sb.WriteByte(s[i])
		}
		return sb.String()
	})
}

// MatchParen возвращает индекс скобки, закрывающей sql[open], или -1
// Скобки внутри литералов не учитываются
func MatchParen(sql string, open int) int {
	if open < 0 || open >= len(sql) || sql[open] != '(' {
		return -1
	}
	depth := 0
	inLiteral := false
	for i := open; i < len(sql); i++ {
		switch c := sql[i]; {
		case c == '\'':
			inLiteral = !inLiteral
		case inLiteral:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SplitList разбивает список колонок по запятым верхнего уровня
func SplitList(list string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(list[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// Unquote убирает кавычки вокруг идентификатора: "x", `x`, [x]
func Unquote(ident string) string {
	ident = strings.TrimSpace(ident)
	if len(ident) >= 2 {
		first, last := ident[0], ident[len(ident)-1]
		if (first == '"' && last == '"') || (first == '`' && last == '`') || (first == '[' && last == ']') {
			return ident[1 : len(ident)-1]
		}
	}
	return ident
}
