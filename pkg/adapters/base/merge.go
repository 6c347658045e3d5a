package base

import (
	"strings"

	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// MergeOptions - различия синтаксиса MERGE между СУБД
type MergeOptions struct {
	// AliasKeyword - " AS " для MS SQL, " " для Oracle (Oracle не принимает AS у таблиц)
	AliasKeyword string

	// SourceFrom - " FROM dual" для Oracle
	SourceFrom string

	// Terminator - ";" для MS SQL (MERGE обязан завершаться точкой с запятой)
	Terminator string
}

// Merge строит UPSERT через MERGE
//
//	MERGE INTO t AS target
//	USING (SELECT ? AS u, ? AS i, ? AS d) AS source
//	ON (target.u = source.u)
//	WHEN MATCHED THEN UPDATE SET target.i = source.i
//	WHEN NOT MATCHED THEN INSERT (u, i, d) VALUES (source.u, source.i, source.d)
//
// Обновляются только insert колонки; default колонки пишутся только при вставке,
// misc колонки не упоминаются и сохраняют значение
func Merge(u stmt.UpsertSpec, opts MergeOptions) (stmt.Statement, error) {
	if err := u.Validate(); err != nil {
		return stmt.Statement{}, err
	}

	alias := opts.AliasKeyword
	if alias == "" {
		alias = " "
	}

	var (
		sourceColumns []string
		conditions    []string
		updateSets    []string
		insertColumns []string
		insertValues  []string
		args          []any
	)

	add := func(col string, val any) {
		sourceColumns = append(sourceColumns, "? AS "+col)
		insertColumns = append(insertColumns, col)
		insertValues = append(insertValues, "source."+col)
		args = append(args, val)
	}

	for i, col := range u.UniqueCols {
		add(col, u.UniqueVals[i])
		conditions = append(conditions, "target."+col+" = source."+col)
	}
	for i, col := range u.InsertCols {
		add(col, u.InsertVals[i])
		updateSets = append(updateSets, "target."+col+" = source."+col)
	}
	for i, col := range u.DefaultCols {
		add(col, u.DefaultVals[i])
	}

	var sb strings.Builder
	sb.WriteString("MERGE INTO ")
	sb.WriteString(u.Table)
	sb.WriteString(alias)
	sb.WriteString("target USING (SELECT ")
	sb.WriteString(strings.Join(sourceColumns, ", "))
	sb.WriteString(opts.SourceFrom)
	sb.WriteString(")")
	sb.WriteString(alias)
	sb.WriteString("source ON (")
	sb.WriteString(strings.Join(conditions, " AND "))
	sb.WriteString(")")
	if len(updateSets) > 0 {
		sb.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		sb.WriteString(strings.Join(updateSets, ", "))
	}
	sb.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	sb.WriteString(strings.Join(insertColumns, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(insertValues, ", "))
	sb.WriteString(")")
	sb.WriteString(opts.Terminator)

	return stmt.Statement{SQL: sb.String(), Args: args}, nil
}
