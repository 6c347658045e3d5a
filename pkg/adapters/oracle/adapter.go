package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	_ "github.com/alexbrainman/odbc"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/base"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// DialectType идентификатор Oracle диалекта
const DialectType = "oracle"

var _ adapters.Dialect = (*Dialect)(nil)

var (
	primaryKeyAutoIncrement = base.Word("PRIMARY KEY AUTOINCREMENT")
	bigint                  = base.Word("BIGINT")
	tinyint                 = base.Word("TINYINT")
	varchar                 = base.Word("VARCHAR")
)

// Коды ошибок, подавляемые для IF NOT EXISTS
var benignCodes = []string{
	"ORA-00955", // name is already used by an existing object
	"ORA-01408", // such column list already indexed
}

// Dialect реализует adapters.Dialect для Oracle через ODBC (github.com/alexbrainman/odbc)
// Требуется Oracle 12c+ (IDENTITY колонки, OFFSET/FETCH)
type Dialect struct{}

// New создает Oracle диалект
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return DialectType }
func (d *Dialect) DriverName() string { return "odbc" }

// DSN собирает ODBC строку подключения
// URL - имя источника данных ("ORCL") или готовая строка ("DSN=ORCL;...")
func (d *Dialect) DSN(cfg adapters.Config) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("oracle: ODBC data source is required")
	}

	parts := []string{}
	if strings.Contains(cfg.URL, "=") {
		parts = append(parts, strings.TrimSuffix(cfg.URL, ";"))
	} else {
		parts = append(parts, "DSN="+cfg.URL)
	}
	if cfg.User != "" {
		parts = append(parts, "UID="+cfg.User)
	}
	if cfg.Password != "" {
		parts = append(parts, "PWD="+cfg.Password)
	}

	keys := make([]string, 0, len(cfg.Extra))
	for k := range cfg.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+cfg.Extra[k])
	}
	return strings.Join(parts, ";"), nil
}

// Rewrite приводит SQL к Oracle:
//
//	PRIMARY KEY AUTOINCREMENT → GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY
//	BIGINT → NUMBER(19), TINYINT → NUMBER(3)
//	VARCHAR(MAX) → CLOB, VARCHAR → VARCHAR2
//	CREATE TABLE/INDEX IF NOT EXISTS → без IF NOT EXISTS (ORA-00955 подавляется)
//	DROP TABLE IF EXISTS → PL/SQL блок, игнорирующий ORA-00942
//	LIMIT n OFFSET m → OFFSET m ROWS FETCH NEXT n ROWS ONLY
func (d *Dialect) Rewrite(_ context.Context, _ adapters.Querier, sql string) ([]string, error) {
	sql = base.CollapseWhitespace(sql)

	if table, ok := base.DropTableIfExists(sql); ok {
		return []string{
			"BEGIN EXECUTE IMMEDIATE 'DROP TABLE " + strings.ReplaceAll(table, "'", "''") + "'; " +
				"EXCEPTION WHEN OTHERS THEN IF SQLCODE != -942 THEN RAISE; END IF; END;",
		}, nil
	}

	sql = base.ReplacePattern(sql, primaryKeyAutoIncrement, "GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY")
	sql = base.ReplacePattern(sql, base.AutoIncrement, "GENERATED BY DEFAULT AS IDENTITY")
	sql = base.ReplacePattern(sql, bigint, "NUMBER(19)")
	sql = base.ReplacePattern(sql, tinyint, "NUMBER(3)")
	sql = base.ReplacePattern(sql, base.VarcharMax, "CLOB")
	sql = base.ReplacePattern(sql, varchar, "VARCHAR2")

	if stripped, _, ok := base.StripTableIfNotExists(sql); ok {
		sql = stripped
	}
	if stripped, ok := base.StripIndexIfNotExists(sql); ok {
		sql = stripped
	}

	sql = base.LimitToFetch(sql, "")
	return []string{sql}, nil
}

// Upsert строит MERGE ... USING (SELECT ... FROM dual)
func (d *Dialect) Upsert(spec stmt.UpsertSpec) (stmt.Statement, error) {
	return base.Merge(spec, base.MergeOptions{AliasKeyword: " ", SourceFrom: " FROM dual"})
}

// SanitizeError подавляет ORA-00955/ORA-01408 для CREATE ... IF NOT EXISTS
// ODBC драйвер не дает типизированной ошибки, код ищется в тексте
func (d *Dialect) SanitizeError(originalSQL, _ string, err error) bool {
	if err == nil {
		return false
	}
	if !base.HasIndexIfNotExists(originalSQL) && !base.HasTableIfNotExists(originalSQL) {
		return false
	}
	msg := err.Error()
	for _, code := range benignCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
