package stmt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIllegalArgument - нарушение предусловия при сборке запроса
// (разная длина списков, пустые обязательные параметры)
var ErrIllegalArgument = errors.New("illegal argument")

// MaxIdentifierLength - длина идентификатора, после которой часть СУБД
// обрезает или отвергает имя (Oracle < 12.2, старые MySQL индексы)
const MaxIdentifierLength = 30

// Statement - собранный SQL запрос с параметрами
type Statement struct {
	SQL  string
	Args []any

	// Warnings - некритичные замечания сборщика (например длинное имя индекса)
	Warnings []string
}

// String возвращает SQL текст
func (s Statement) String() string {
	return s.SQL
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalArgument, fmt.Sprintf(format, args...))
}

// CreateTable строит CREATE TABLE IF NOT EXISTS
// Списки колонок и типов должны быть одинаковой длины и не пустыми
func CreateTable(name string, columnNames, columnTypes []string) (Statement, error) {
	if name == "" {
		return Statement{}, illegal("table name is required")
	}
	if len(columnNames) == 0 {
		return Statement{}, illegal("table %s: at least one column is required", name)
	}
	if len(columnNames) != len(columnTypes) {
		return Statement{}, illegal("table %s: %d column names but %d column types",
			name, len(columnNames), len(columnTypes))
	}

	defs := make([]string, len(columnNames))
	for i := range columnNames {
		defs[i] = columnNames[i] + " " + columnTypes[i]
	}

	return Statement{
		SQL: "CREATE TABLE IF NOT EXISTS " + name + " ( " + strings.Join(defs, ", ") + " )",
	}, nil
}

// CreateIndex строит CREATE INDEX IF NOT EXISTS <table>_<suffix>
// indexType - UNIQUE, FULLTEXT и т.п. (пустая строка = обычный индекс)
// suffix по умолчанию получается из списка колонок
func CreateIndex(table, columns, indexType, suffix string) Statement {
	if suffix == "" {
		suffix = SanitizeSuffix(columns)
	}
	indexName := table + "_" + suffix

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if indexType != "" {
		sb.WriteString(strings.ToUpper(indexType))
		sb.WriteString(" ")
	}
	sb.WriteString("INDEX IF NOT EXISTS ")
	sb.WriteString(indexName)
	sb.WriteString(" ON ")
	sb.WriteString(table)
	sb.WriteString(" ( ")
	sb.WriteString(columns)
	sb.WriteString(" )")

	st := Statement{SQL: sb.String()}
	if len(indexName) > MaxIdentifierLength {
		st.Warnings = append(st.Warnings, fmt.Sprintf(
			"index name %q exceeds %d characters and may be truncated or rejected by some databases",
			indexName, MaxIdentifierLength))
	}
	return st
}

// SanitizeSuffix убирает из списка колонок все, кроме букв, цифр и '_'
func SanitizeSuffix(columns string) string {
	var sb strings.Builder
	for _, r := range columns {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Select строит SELECT
// whereClause передается как есть (с '?' плейсхолдерами), ответственность за
// экранирование лежит на вызывающем коде
// limit = 0 - без ограничения; OFFSET добавляется только при limit > 0
func Select(table, selectCols, whereClause string, whereArgs []any, orderBy string, limit, offset int) Statement {
	if selectCols == "" {
		selectCols = "*"
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectCols)
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	if whereClause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(whereClause)
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
		if offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", offset)
		}
	}

	return Statement{SQL: sb.String(), Args: cloneArgs(whereArgs)}
}

// Count строит SELECT COUNT(*)
func Count(table, whereClause string, whereArgs []any) Statement {
	return Select(table, "COUNT(*)", whereClause, whereArgs, "", 0, 0)
}

// Delete строит DELETE FROM, без whereClause удаляет все строки
func Delete(table, whereClause string, whereArgs []any) Statement {
	st := Statement{SQL: "DELETE FROM " + table, Args: cloneArgs(whereArgs)}
	if whereClause != "" {
		st.SQL += " WHERE " + whereClause
	}
	if len(table) > MaxIdentifierLength {
		st.Warnings = append(st.Warnings, fmt.Sprintf(
			"table name %q exceeds %d characters", table, MaxIdentifierLength))
	}
	return st
}

// DropTable строит DROP TABLE IF EXISTS
func DropTable(table string) Statement {
	return Statement{SQL: "DROP TABLE IF EXISTS " + table}
}

func cloneArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	copy(out, args)
	return out
}
