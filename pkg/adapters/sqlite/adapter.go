package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/base"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// DialectType идентификатор SQLite диалекта
const DialectType = "sqlite"

const driverSqlite = "sqlite"

// Compile-time check
var (
	_ adapters.Dialect  = (*Dialect)(nil)
	_ adapters.Preluder = (*Dialect)(nil)
)

var (
	bigint   = base.Word("BIGINT")
	truncate = base.Word("TRUNCATE TABLE")
)

// Dialect реализует adapters.Dialect для SQLite (modernc.org/sqlite, без cgo)
type Dialect struct{}

// New создает SQLite диалект
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return DialectType }
func (d *Dialect) DriverName() string { return driverSqlite }

// DSN возвращает путь к файлу БД (URL, иначе Database)
// Extra добавляются как параметры строки подключения
func (d *Dialect) DSN(cfg adapters.Config) (string, error) {
	dsn := cfg.URL
	if dsn == "" {
		dsn = cfg.Database
	}
	if dsn == "" {
		return "", fmt.Errorf("sqlite: database file is required (use \":memory:\" for in-memory)")
	}

	if len(cfg.Extra) > 0 {
		params := url.Values{}
		for k, v := range cfg.Extra {
			params.Add(k, v)
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + params.Encode()
	}
	return dsn, nil
}

// Prelude возвращает PRAGMA настройки соединения
func (d *Dialect) Prelude() []string {
	return []string{
		// WAL: запись не блокирует чтение; для :memory: игнорируется
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
}

// Rewrite приводит SQL к SQLite:
//
//	BIGINT         → INTEGER (INTEGER PRIMARY KEY AUTOINCREMENT допустим только для INTEGER)
//	VARCHAR(MAX)   → VARCHAR
//	TRUNCATE TABLE → DELETE FROM
func (d *Dialect) Rewrite(_ context.Context, _ adapters.Querier, sql string) ([]string, error) {
	sql = base.CollapseWhitespace(sql)
	sql = base.ReplacePattern(sql, bigint, "INTEGER")
	sql = base.ReplacePattern(sql, base.VarcharMax, "VARCHAR")
	sql = base.ReplacePattern(sql, truncate, "DELETE FROM")
	return []string{sql}, nil
}

// Upsert использует универсальный INSERT OR REPLACE
func (d *Dialect) Upsert(spec stmt.UpsertSpec) (stmt.Statement, error) {
	return stmt.Upsert(spec)
}

// SanitizeError - SQLite поддерживает IF NOT EXISTS, подавлять нечего
func (d *Dialect) SanitizeError(_, _ string, _ error) bool {
	return false
}
