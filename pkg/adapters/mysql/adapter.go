package mysql

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/base"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// DialectType идентификатор MySQL диалекта
const DialectType = "mysql"

// errDuplicateKeyName - ER_DUP_KEYNAME, индекс с таким именем уже есть
const errDuplicateKeyName = 1061

// IndexPrefixLength - длина префикса для BLOB/TEXT колонок в индексе
const IndexPrefixLength = 333

// columnsQuery - типы колонок таблицы текущей базы
const columnsQuery = "SELECT column_name, column_type FROM information_schema.columns " +
	"WHERE table_schema = DATABASE() AND table_name = ?"

var _ adapters.Dialect = (*Dialect)(nil)

var (
	insertOrReplace = base.Word("INSERT OR REPLACE INTO")
	createView      = regexp.MustCompile(`(?i)^CREATE\s+VIEW\s+(\S+)\s+AS\s+`)
	fromParen       = regexp.MustCompile(`(?i)\bFROM\s*\(`)
	indexOn         = regexp.MustCompile(`(?i)^CREATE\s+(?:\w+\s+)?INDEX\s+\S+\s+ON\s+([^\s(]+)\s*\(`)
)

// Dialect реализует adapters.Dialect для MySQL
type Dialect struct{}

// New создает MySQL диалект
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string       { return DialectType }
func (d *Dialect) DriverName() string { return "mysql" }

// DSN собирает строку подключения через mysql.Config
// URL с '/' считается готовым DSN (user:pass@tcp(host:3306)/db)
func (d *Dialect) DSN(cfg adapters.Config) (string, error) {
	if strings.Contains(cfg.URL, "/") {
		return cfg.URL, nil
	}
	if cfg.URL == "" {
		return "", fmt.Errorf("mysql: server address is required")
	}

	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = cfg.URL
	c.DBName = cfg.Database
	c.User = cfg.User
	c.Passwd = cfg.Password
	if len(cfg.Extra) > 0 {
		c.Params = make(map[string]string, len(cfg.Extra))
		for k, v := range cfg.Extra {
			c.Params[k] = v
		}
	}
	return c.FormatDSN(), nil
}

// Rewrite приводит SQL к MySQL:
//
//	"              → ` (вне литералов)
//	AUTOINCREMENT  → AUTO_INCREMENT
//	VARCHAR(MAX)   → TEXT
//	INSERT OR REPLACE → REPLACE
//	CREATE VIEW v AS SELECT ... FROM (SELECT ...) → вложенный запрос выносится в v_inner_view
//	INDEX IF NOT EXISTS → INDEX, BLOB/TEXT колонки индекса получают (333)
func (d *Dialect) Rewrite(ctx context.Context, q adapters.Querier, sql string) ([]string, error) {
	sql = base.CollapseWhitespace(sql)
	sql = base.ReplaceOutsideLiterals(sql, `"`, "`")
	sql = base.ReplacePattern(sql, base.AutoIncrement, "AUTO_INCREMENT")
	sql = base.ReplacePattern(sql, base.VarcharMax, "TEXT")
	sql = base.ReplacePattern(sql, insertOrReplace, "REPLACE INTO")

	if stmts, ok := splitView(sql); ok {
		return stmts, nil
	}

	if stripped, ok := base.StripIndexIfNotExists(sql); ok {
		return d.rewriteIndex(ctx, q, stripped)
	}
	return []string{sql}, nil
}

// rewriteIndex добавляет длину префикса BLOB/TEXT колонкам индекса
// Типы колонок берутся из information_schema.columns
func (d *Dialect) rewriteIndex(ctx context.Context, q adapters.Querier, sql string) ([]string, error) {
	m := indexOn.FindStringSubmatchIndex(sql)
	if m == nil || q == nil {
		return []string{sql}, nil
	}
	table := base.Unquote(sql[m[2]:m[3]])
	open := m[1] - 1
	closeIdx := base.MatchParen(sql, open)
	if closeIdx < 0 {
		return []string{sql}, nil
	}

	res, err := q.QueryRaw(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to read columns of %s: %w", table, err)
	}

	types := make(map[string]string, res.RowCount())
	nameCol, typeCol := res.ColumnIndex("column_name"), res.ColumnIndex("column_type")
	for i := range res.Rows {
		name := strings.ToLower(toString(res.Get(i, nameCol)))
		types[name] = strings.ToUpper(toString(res.Get(i, typeCol)))
	}

	columns := base.SplitList(sql[open+1 : closeIdx])
	for i, col := range columns {
		if strings.Contains(col, "(") {
			continue // длина уже задана
		}
		typ := types[strings.ToLower(base.Unquote(col))]
		if strings.Contains(typ, "BLOB") || strings.Contains(typ, "TEXT") {
			columns[i] = fmt.Sprintf("%s(%d)", col, IndexPrefixLength)
		}
	}

	rewritten := sql[:open+1] + " " + strings.Join(columns, ", ") + " " + sql[closeIdx:]
	return []string{rewritten}, nil
}

// splitView выносит подзапрос FROM (...) в отдельный VIEW: MySQL < 5.7.7
// не поддерживает подзапросы во FROM у VIEW
func splitView(sql string) ([]string, bool) {
	vm := createView.FindStringSubmatch(sql)
	if vm == nil {
		return nil, false
	}
	body := sql[len(vm[0]):]

	fm := fromParen.FindStringIndex(body)
	if fm == nil {
		return nil, false
	}
	open := fm[1] - 1
	closeIdx := base.MatchParen(body, open)
	if closeIdx < 0 {
		return nil, false
	}

	viewName := base.Unquote(vm[1])
	innerName := viewName
	if i := strings.IndexByte(innerName, '_'); i > 0 {
		innerName = innerName[:i]
	}
	innerName += "_inner_view"

	inner := strings.TrimSpace(body[open+1 : closeIdx])
	outer := sql[:len(vm[0])] + body[:open] + innerName + body[closeIdx+1:]

	return []string{
		"DROP VIEW IF EXISTS " + innerName,
		"CREATE VIEW " + innerName + " AS " + inner,
		outer,
	}, true
}

// Upsert строит INSERT ... ON DUPLICATE KEY UPDATE
// Обновляются только insert колонки; misc колонки не упоминаются и сохраняются
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

	updates := make([]string, 0, len(u.InsertCols))
	for _, col := range u.InsertCols {
		updates = append(updates, col+" = VALUES("+col+")")
	}
	if len(updates) == 0 {
		// нечего обновлять: no-op, чтобы дубликат не был ошибкой
		updates = append(updates, u.UniqueCols[0]+" = "+u.UniqueCols[0])
	}

	sql := "INSERT INTO " + u.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders +
		") ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")

	return stmt.Statement{SQL: sql, Args: args}, nil
}

// SanitizeError подавляет "Duplicate key name" для CREATE INDEX IF NOT EXISTS
func (d *Dialect) SanitizeError(originalSQL, _ string, err error) bool {
	if err == nil || !base.HasIndexIfNotExists(originalSQL) {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errDuplicateKeyName
	}
	return strings.Contains(err.Error(), "Duplicate key name")
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
