package stmt

import (
	"strings"
)

// UpsertSpec - описание UPSERT с разбиением колонок на группы
//
//	UniqueCols  - колонки, идентифицирующие строку
//	InsertCols  - перезаписываются всегда
//	DefaultCols - пишутся только если строки еще нет
//	MiscCols    - не пишутся никогда, существующее значение сохраняется
type UpsertSpec struct {
	Table string

	UniqueCols []string
	UniqueVals []any

	InsertCols []string
	InsertVals []any

	DefaultCols []string
	DefaultVals []any

	MiscCols []string
}

// Validate проверяет предусловия UPSERT
func (u UpsertSpec) Validate() error {
	if u.Table == "" {
		return illegal("upsert: table name is required")
	}
	if len(u.UniqueCols) == 0 {
		return illegal("upsert %s: at least one unique column is required", u.Table)
	}
	if len(u.UniqueCols) != len(u.UniqueVals) {
		return illegal("upsert %s: %d unique columns but %d unique values",
			u.Table, len(u.UniqueCols), len(u.UniqueVals))
	}
	if len(u.InsertCols) != len(u.InsertVals) {
		return illegal("upsert %s: %d insert columns but %d insert values",
			u.Table, len(u.InsertCols), len(u.InsertVals))
	}
	if len(u.DefaultCols) != len(u.DefaultVals) {
		return illegal("upsert %s: %d default columns but %d default values",
			u.Table, len(u.DefaultCols), len(u.DefaultVals))
	}
	return nil
}

// Columns возвращает все колонки в порядке unique, insert, default, misc
func (u UpsertSpec) Columns() []string {
	cols := make([]string, 0, len(u.UniqueCols)+len(u.InsertCols)+len(u.DefaultCols)+len(u.MiscCols))
	cols = append(cols, u.UniqueCols...)
	cols = append(cols, u.InsertCols...)
	cols = append(cols, u.DefaultCols...)
	cols = append(cols, u.MiscCols...)
	return cols
}

// UniqueWhere возвращает "u1 = ? AND u2 = ?" для уникальных колонок
func (u UpsertSpec) UniqueWhere(prefix string) string {
	parts := make([]string, len(u.UniqueCols))
	for i, col := range u.UniqueCols {
		parts[i] = prefix + col + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// Upsert строит универсальный UPSERT через INSERT OR REPLACE
//
// Default колонки: COALESCE((SELECT col FROM t WHERE unique...), ?)
// Misc колонки:    (SELECT col FROM t WHERE unique...)
//
// Значения unique колонок повторяются для каждого подзапроса
func Upsert(u UpsertSpec) (Statement, error) {
	if err := u.Validate(); err != nil {
		return Statement{}, err
	}

	cols := u.Columns()
	values := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(u.UniqueVals)*(len(u.DefaultCols)+len(u.MiscCols)))

	for i := range u.UniqueCols {
		values = append(values, "?")
		args = append(args, u.UniqueVals[i])
	}
	for i := range u.InsertCols {
		values = append(values, "?")
		args = append(args, u.InsertVals[i])
	}

	where := u.UniqueWhere("")
	for i, col := range u.DefaultCols {
		values = append(values, "COALESCE((SELECT "+col+" FROM "+u.Table+" WHERE "+where+"), ?)")
		args = append(args, u.UniqueVals...)
		args = append(args, u.DefaultVals[i])
	}
	for _, col := range u.MiscCols {
		values = append(values, "(SELECT "+col+" FROM "+u.Table+" WHERE "+where+")")
		args = append(args, u.UniqueVals...)
	}

	sql := "INSERT OR REPLACE INTO " + u.Table +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"

	return Statement{SQL: sql, Args: args}, nil
}
