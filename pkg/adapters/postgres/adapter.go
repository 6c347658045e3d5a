package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/base"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// DialectType идентификатор PostgreSQL диалекта
const DialectType = "postgres"

// SQLSTATE duplicate_table (в том числе индекс с таким именем)
const codeDuplicateTable = "42P07"

var _ adapters.Dialect = (*Dialect)(nil)

var (
	bigintPrimaryKey = base.Word("BIGINT PRIMARY KEY AUTOINCREMENT")
	blob             = base.Word("BLOB")
	tinyint          = base.Word("TINYINT")
)

// Dialect реализует adapters.Dialect для PostgreSQL через pgx (database/sql драйвер "pgx")
type Dialect struct{}

// New создает PostgreSQL диалект
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return DialectType }
func (d *Dialect) DriverName() string { return "pgx" }

// DSN собирает postgres:// URL; готовый URL (postgres://, postgresql://) используется как есть
// Строка проверяется pgx.ParseConfig
func (d *Dialect) DSN(cfg adapters.Config) (string, error) {
	dsn := cfg.URL
	if !strings.HasPrefix(dsn, "postgres") {
		if dsn == "" {
			return "", fmt.Errorf("postgres: server address is required")
		}
		u := &url.URL{Scheme: "postgres", Host: dsn, Path: "/" + cfg.Database}
		if cfg.User != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		q := url.Values{}
		for k, v := range cfg.Extra {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres: invalid connection string: %w", err)
	}
	return dsn, nil
}

// Rewrite приводит SQL к PostgreSQL:
//
//	BIGINT PRIMARY KEY AUTOINCREMENT → BIGSERIAL PRIMARY KEY
//	BLOB → BYTEA, TINYINT → SMALLINT, VARCHAR(MAX) → TEXT
//	? → $1, $2, ...
func (d *Dialect) Rewrite(_ context.Context, _ adapters.Querier, sql string) ([]string, error) {
	sql = base.CollapseWhitespace(sql)
	sql = base.ReplacePattern(sql, bigintPrimaryKey, "BIGSERIAL PRIMARY KEY")
	sql = base.ReplacePattern(sql, blob, "BYTEA")
	sql = base.ReplacePattern(sql, tinyint, "SMALLINT")
	sql = base.ReplacePattern(sql, base.VarcharMax, "TEXT")
	return []string{base.RebindDollar(sql)}, nil
}

// Upsert строит INSERT ... ON CONFLICT (unique) DO UPDATE SET insert = EXCLUDED.insert
// Без insert колонок - DO NOTHING
func (d *Dialect) Upsert(u stmt.UpsertSpec) (stmt.Statement, error) {
	if err := u.Validate(); err != nil {
		return stmt.Statement{}, err
	}

	cols := make([]string, 0, len(u.UniqueCols)+len(u.InsertCols)+len(u.DefaultCols))
	cols = append(cols, u.UniqueCols...)
	cols = append(cols, u.InsertCols...)
	cols = append(cols, u.DefaultCols...)

	args := make([]any, 0, len(cols))
	args = append(args, u.UniqueVals...)
	args = append(args, u.InsertVals...)
	args = append(args, u.DefaultVals...)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + u.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")")
	sb.WriteString(" ON CONFLICT (" + strings.Join(u.UniqueCols, ", ") + ")")
	if len(u.InsertCols) == 0 {
		sb.WriteString(" DO NOTHING")
	} else {
		sets := make([]string, len(u.InsertCols))
		for i, col := range u.InsertCols {
			sets[i] = col + " = EXCLUDED." + col
		}
		sb.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	}

	return stmt.Statement{SQL: sb.String(), Args: args}, nil
}

// SanitizeError подавляет 42P07 для CREATE ... IF NOT EXISTS
// (параллельное создание одного объекта двумя соединениями)
func (d *Dialect) SanitizeError(originalSQL, _ string, err error) bool {
	if err == nil {
		return false
	}
	if !base.HasIndexIfNotExists(originalSQL) && !base.HasTableIfNotExists(originalSQL) {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeDuplicateTable
}
