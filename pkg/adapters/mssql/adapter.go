package mssql

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	mssqldb "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/base"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// DialectType идентификатор MS SQL диалекта
const DialectType = "mssql"

// errDuplicateIndex - индекс с таким именем уже есть в таблице
const errDuplicateIndex = 1913

var _ adapters.Dialect = (*Dialect)(nil)

var blob = base.Word("BLOB")

// Dialect реализует adapters.Dialect для MS SQL Server.
// Драйвер "mssql" принимает плейсхолдеры '?', "sqlserver" требует @p1
type Dialect struct{}

// New создает MS SQL диалект
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return DialectType }
func (d *Dialect) DriverName() string { return "mssql" }

// DSN собирает sqlserver:// URL; готовый sqlserver:// URL возвращается как есть
func (d *Dialect) DSN(cfg adapters.Config) (string, error) {
	if strings.HasPrefix(cfg.URL, "sqlserver://") {
		return cfg.URL, nil
	}
	if cfg.URL == "" {
		return "", fmt.Errorf("mssql: server address is required")
	}

	u := &url.URL{Scheme: "sqlserver", Host: cfg.URL}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	for k, v := range cfg.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Rewrite переводит SQL в T-SQL:
//
//	CREATE TABLE IF NOT EXISTS t → IF NOT EXISTS (SELECT * FROM sysobjects ...) CREATE TABLE t
//	AUTOINCREMENT                → IDENTITY(1,1)
//	BLOB                         → VARBINARY(MAX)
//	INDEX IF NOT EXISTS          → INDEX (ошибка дубликата гасится)
//	LIMIT n OFFSET m             → ORDER BY ... OFFSET m ROWS FETCH NEXT n ROWS ONLY
func (d *Dialect) Rewrite(_ context.Context, _ adapters.Querier, sql string) ([]string, error) {
	sql = base.CollapseWhitespace(sql)
	sql = base.ReplacePattern(sql, base.AutoIncrement, "IDENTITY(1,1)")
	sql = base.ReplacePattern(sql, blob, "VARBINARY(MAX)")

	if stripped, table, ok := base.StripTableIfNotExists(sql); ok {
		name := strings.ReplaceAll(base.Unquote(table), "'", "''")
		sql = "IF NOT EXISTS (SELECT * FROM sysobjects WHERE name = '" + name + "' AND xtype = 'U') " + stripped
	}
	if stripped, ok := base.StripIndexIfNotExists(sql); ok {
		sql = stripped
	}

	// OFFSET/FETCH требует ORDER BY
	sql = base.LimitToFetch(sql, "(SELECT NULL)")
	return []string{sql}, nil
}

// Upsert строит MERGE; при совпадении обновляются только insert-колонки
func (d *Dialect) Upsert(spec stmt.UpsertSpec) (stmt.Statement, error) {
	return base.Merge(spec, base.MergeOptions{AliasKeyword: " AS ", Terminator: ";"})
}

// SanitizeError гасит ошибку 1913 (индекс уже есть) для CREATE INDEX IF NOT EXISTS
func (d *Dialect) SanitizeError(originalSQL, _ string, err error) bool {
	if err == nil || !base.HasIndexIfNotExists(originalSQL) {
		return false
	}
	var msErr mssqldb.Error
	if errors.As(err, &msErr) {
		return msErr.Number == errDuplicateIndex
	}
	return strings.Contains(err.Error(), "already exists on table")
}
