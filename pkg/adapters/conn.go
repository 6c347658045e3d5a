package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/retry"
)

// ErrConnClosed возвращается при обращении к закрытому соединению
var ErrConnClosed = errors.New("connection is closed")

const (
	tierRaw        = "raw"
	tierNormalized = "normalized"
)

// execer - общее подмножество *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn - единственное соединение с БД и выполнение запросов в двух режимах:
//
//	raw        - QueryRaw, ExecRaw, NoFetchQueryRaw: SQL передается драйверу как есть
//	normalized - Query, Exec, NoFetchQuery: SQL проходит Dialect.Rewrite,
//	             ошибки проходят Dialect.SanitizeError
//
// Conn не предназначен для одновременного использования из нескольких горутин.
// Пока открыт Cursor, соединение занято: следующий запрос будет ждать его Close.
type Conn struct {
	dialect Dialect
	cfg     Config

	db *sql.DB
	ex execer
	tx *sql.Tx

	// parent != nil - представление Conn внутри транзакции (Tx)
	parent *Conn

	logger  zerolog.Logger
	metrics *Metrics
	retry   retry.Config
	prelude []string

	disposed bool
}

// Open открывает соединение: sql.Open, ограничение пула одним соединением, Ping
// Ping повторяется согласно WithRetry. Конфигурация сохраняется для Recreate
func Open(ctx context.Context, d Dialect, cfg Config, opts ...Option) (*Conn, error) {
	c := newConn(d, opts...)
	c.cfg = cfg

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewConn оборачивает уже открытый *sql.DB (например go-sqlmock в тестах)
// Prelude не выполняется; Recreate переоткрывает соединение, только если
// Config известен (см. WithConfig)
func NewConn(d Dialect, db *sql.DB, opts ...Option) *Conn {
	c := newConn(d, opts...)
	db.SetMaxOpenConns(1)
	c.db = db
	c.ex = db
	return c
}

// WithConfig сохраняет конфигурацию для Recreate у Conn, созданного через NewConn
func WithConfig(cfg Config) Option {
	return func(c *Conn) {
		c.cfg = cfg
	}
}

func newConn(d Dialect, opts ...Option) *Conn {
	c := &Conn{
		dialect: d,
		logger:  zerolog.Nop(),
		retry:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) connect(ctx context.Context) error {
	dsn, err := c.dialect.DSN(c.cfg)
	if err != nil {
		return newError("open", KindPrecondition, "", nil, err)
	}

	retryCfg := c.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Warn().
				Err(err).
				Str("dialect", c.dialect.Name()).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("connection failed, retrying")
		}
	}
	retryer, err := retry.NewRetryer(retryCfg)
	if err != nil {
		return newError("open", KindPrecondition, "", nil, err)
	}

	var db *sql.DB
	err = retryer.Do(ctx, func(ctx context.Context) error {
		opened, err := sql.Open(c.dialect.DriverName(), dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		opened.SetMaxOpenConns(1)
		opened.SetMaxIdleConns(1)

		if err := opened.PingContext(ctx); err != nil {
			opened.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		db = opened
		return nil
	})
	if err != nil {
		return newError("open", KindExecution, "", nil, err)
	}

	c.db = db
	c.ex = db
	c.disposed = false

	if p, ok := c.dialect.(Preluder); ok {
		for _, q := range p.Prelude() {
			if _, err := c.ExecRaw(ctx, q); err != nil {
				c.logger.Warn().Err(err).Str("sql", q).Msg("session setting failed")
			}
		}
	}

	for _, q := range c.prelude {
		if _, err := c.ExecRaw(ctx, q); err != nil {
			db.Close()
			c.db, c.ex = nil, nil
			return err
		}
	}

	c.logger.Debug().Str("dialect", c.dialect.Name()).Str("database", c.cfg.Database).Msg("connected")
	return nil
}

// Dialect возвращает диалект соединения
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// Config возвращает конфигурацию, с которой открыто соединение
func (c *Conn) Config() Config {
	return c.cfg
}

// DB возвращает *sql.DB для прямого доступа
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Logger возвращает логгер соединения
func (c *Conn) Logger() zerolog.Logger {
	return c.logger
}

// InTx сообщает, что Conn - представление внутри транзакции
func (c *Conn) InTx() bool {
	return c.tx != nil
}

// IsDisposed сообщает, что соединение закрыто
func (c *Conn) IsDisposed() bool {
	if c.parent != nil {
		return c.parent.disposed
	}
	return c.disposed || c.db == nil
}

// Close закрывает соединение; повторный вызов безопасен
// Для Conn внутри Tx ничего не делает: транзакцией управляет Tx
func (c *Conn) Close() error {
	if c.parent != nil || c.disposed {
		return nil
	}
	c.disposed = true
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db, c.ex = nil, nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Recreate переоткрывает соединение из сохраненного Config
// Без force соединение переоткрывается, только если оно закрыто или не отвечает на Ping
func (c *Conn) Recreate(ctx context.Context, force bool) error {
	if c.parent != nil {
		return newError("recreate", KindPrecondition, "", nil, errors.New("cannot recreate inside a transaction"))
	}

	if !force && !c.IsDisposed() {
		err := c.db.PingContext(ctx)
		if err == nil {
			return nil
		}
		c.logger.Warn().Err(err).Str("dialect", c.dialect.Name()).Msg("ping failed, reconnecting")
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close stale connection")
		}
		c.db, c.ex = nil, nil
	}
	c.disposed = true

	if err := c.connect(ctx); err != nil {
		return err
	}
	c.metrics.reconnected(c.dialect.Name())
	return nil
}

// Tx выполняет fn внутри транзакции
// fn получает Conn, привязанный к транзакции; ошибка или паника в fn откатывает ее
// Вложенный вызов выполняет fn в уже открытой транзакции
func (c *Conn) Tx(ctx context.Context, fn func(tx *Conn) error) (err error) {
	if c.tx != nil {
		return fn(c)
	}
	if c.IsDisposed() {
		return newError("begin", KindPrecondition, "", nil, ErrConnClosed)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return newError("begin", KindExecution, "", nil, err)
	}

	child := *c
	child.tx = tx
	child.ex = tx
	child.parent = c

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&child); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return newError("commit", KindExecution, "", nil, err)
	}
	return nil
}

// ========== Raw ==========

// QueryRaw выполняет запрос без перезаписи и читает все строки
func (c *Conn) QueryRaw(ctx context.Context, query string, args ...any) (*Result, error) {
	cur, err := c.NoFetchQueryRaw(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	res, err := cur.FetchAll()
	if err != nil {
		return nil, newError("query", KindExecution, query, args, err)
	}
	return res, nil
}

// NoFetchQueryRaw выполняет запрос без перезаписи и возвращает курсор
// Курсор нужно закрыть
func (c *Conn) NoFetchQueryRaw(ctx context.Context, query string, args ...any) (*Cursor, error) {
	bound, err := c.prepare("query", query, args)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, tierRaw, query, []string{query}, args, bound)
}

// ExecRaw выполняет запрос без перезаписи и возвращает число затронутых строк
func (c *Conn) ExecRaw(ctx context.Context, query string, args ...any) (int64, error) {
	bound, err := c.prepare("exec", query, args)
	if err != nil {
		return 0, err
	}
	n, err := c.exec(ctx, tierRaw, query, bound)
	if err != nil {
		return 0, newError("exec", KindExecution, query, args, err)
	}
	return n, nil
}

// ========== Normalized ==========

// Query переписывает запрос под диалект, выполняет его и читает все строки
// Ошибка, признанная безопасной SanitizeError, дает пустой результат
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	cur, err := c.NoFetchQuery(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	res, err := cur.FetchAll()
	if err != nil {
		return nil, newError("query", KindExecution, query, args, err)
	}
	return res, nil
}

// NoFetchQuery переписывает запрос под диалект и возвращает курсор
func (c *Conn) NoFetchQuery(ctx context.Context, query string, args ...any) (*Cursor, error) {
	bound, err := c.prepare("query", query, args)
	if err != nil {
		return nil, err
	}
	stmts, err := c.normalize(ctx, "query", query)
	if err != nil {
		return nil, err
	}
	if err := c.runPreparatory(ctx, "query", query, stmts); err != nil {
		return nil, err
	}
	return c.open(ctx, tierNormalized, query, stmts, args, bound)
}

// Exec переписывает запрос под диалект и выполняет его
// Ошибка, признанная безопасной SanitizeError, подавляется
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	bound, err := c.prepare("exec", query, args)
	if err != nil {
		return 0, err
	}
	stmts, err := c.normalize(ctx, "exec", query)
	if err != nil {
		return 0, err
	}
	if err := c.runPreparatory(ctx, "exec", query, stmts); err != nil {
		return 0, err
	}

	last := stmts[len(stmts)-1]
	n, err := c.exec(ctx, tierNormalized, last, bound)
	if err != nil {
		if c.dialect.SanitizeError(query, last, err) {
			c.logger.Debug().Err(err).Str("sql", last).Msg("benign error ignored")
			return 0, nil
		}
		return 0, &StoreError{Op: "exec", Kind: KindExecution, SQL: query, Rewritten: stmts, Args: args, Err: err}
	}
	return n, nil
}

// ========== Statement runners ==========

// Run выполняет собранный statement в режиме normalized
func (c *Conn) Run(ctx context.Context, st stmt.Statement) (int64, error) {
	c.logWarnings(st)
	return c.Exec(ctx, st.SQL, st.Args...)
}

// Fetch выполняет собранный SELECT в режиме normalized
func (c *Conn) Fetch(ctx context.Context, st stmt.Statement) (*Result, error) {
	c.logWarnings(st)
	return c.Query(ctx, st.SQL, st.Args...)
}

// CreateTable создает таблицу, если ее нет
func (c *Conn) CreateTable(ctx context.Context, name string, columnNames, columnTypes []string) error {
	st, err := stmt.CreateTable(name, columnNames, columnTypes)
	if err != nil {
		return newError("create table", KindPrecondition, "", nil, err)
	}
	_, err = c.Run(ctx, st)
	return err
}

// CreateIndex создает индекс, если его нет
func (c *Conn) CreateIndex(ctx context.Context, table, columns, indexType, suffix string) error {
	_, err := c.Run(ctx, stmt.CreateIndex(table, columns, indexType, suffix))
	return err
}

// Select выполняет SELECT, собранный stmt.Select
func (c *Conn) Select(ctx context.Context, table, selectCols, where string, whereArgs []any,
	orderBy string, limit, offset int) (*Result, error) {
	return c.Fetch(ctx, stmt.Select(table, selectCols, where, whereArgs, orderBy, limit, offset))
}

// Count возвращает COUNT(*) с условием
func (c *Conn) Count(ctx context.Context, table, where string, whereArgs []any) (int64, error) {
	res, err := c.Fetch(ctx, stmt.Count(table, where, whereArgs))
	if err != nil {
		return 0, err
	}
	if res.RowCount() == 0 {
		return 0, nil
	}
	n, err := toInt64(res.Get(0, 0))
	if err != nil {
		return 0, newError("count", KindExecution, "", nil, err)
	}
	return n, nil
}

// Upsert выполняет UPSERT в синтаксисе диалекта
func (c *Conn) Upsert(ctx context.Context, spec stmt.UpsertSpec) error {
	st, err := c.dialect.Upsert(spec)
	if err != nil {
		return newError("upsert", KindPrecondition, "", nil, err)
	}
	_, err = c.Run(ctx, st)
	return err
}

// Delete удаляет строки и возвращает их число
func (c *Conn) Delete(ctx context.Context, table, where string, whereArgs []any) (int64, error) {
	return c.Run(ctx, stmt.Delete(table, where, whereArgs))
}

// DropTable удаляет таблицу, если она есть
func (c *Conn) DropTable(ctx context.Context, table string) error {
	_, err := c.Run(ctx, stmt.DropTable(table))
	return err
}

// ========== internals ==========

func (c *Conn) prepare(op, query string, args []any) ([]any, error) {
	if c.IsDisposed() || c.ex == nil {
		return nil, newError(op, KindPrecondition, query, args, ErrConnClosed)
	}
	bound, err := bindArgs(args)
	if err != nil {
		return nil, newError(op, KindPrecondition, query, args, err)
	}
	return bound, nil
}

func (c *Conn) normalize(ctx context.Context, op, query string) ([]string, error) {
	stmts, err := c.dialect.Rewrite(ctx, c, query)
	if err != nil {
		return nil, &StoreError{Op: op, Kind: KindRewrite, SQL: query, Err: err}
	}
	if len(stmts) == 0 {
		return nil, &StoreError{Op: op, Kind: KindRewrite, SQL: query, Err: errors.New("rewrite produced no statements")}
	}
	return stmts, nil
}

// runPreparatory выполняет все запросы, кроме последнего (разбиение VIEW)
func (c *Conn) runPreparatory(ctx context.Context, op, query string, stmts []string) error {
	for _, prep := range stmts[:len(stmts)-1] {
		if _, err := c.exec(ctx, tierNormalized, prep, nil); err != nil {
			if c.dialect.SanitizeError(query, prep, err) {
				continue
			}
			return &StoreError{Op: op, Kind: KindRewrite, SQL: query, Rewritten: stmts, Err: err}
		}
	}
	return nil
}

func (c *Conn) exec(ctx context.Context, tier, query string, bound []any) (int64, error) {
	start := time.Now()
	c.logger.Debug().Str("dialect", c.dialect.Name()).Str("tier", tier).Str("sql", query).Msg("exec")

	res, err := c.ex.ExecContext(ctx, query, bound...)
	if err != nil {
		c.metrics.observe(c.dialect.Name(), tier, "error", time.Since(start))
		return 0, err
	}
	c.metrics.observe(c.dialect.Name(), tier, "ok", time.Since(start))

	n, err := res.RowsAffected()
	if err != nil {
		// не все драйверы сообщают число строк для DDL
		return 0, nil
	}
	return n, nil
}

func (c *Conn) open(ctx context.Context, tier, original string, stmts []string, args, bound []any) (*Cursor, error) {
	query := stmts[len(stmts)-1]
	start := time.Now()
	c.logger.Debug().Str("dialect", c.dialect.Name()).Str("tier", tier).Str("sql", query).Msg("query")

	rows, err := c.ex.QueryContext(ctx, query, bound...)
	if err != nil {
		c.metrics.observe(c.dialect.Name(), tier, "error", time.Since(start))
		if tier == tierNormalized && c.dialect.SanitizeError(original, query, err) {
			c.logger.Debug().Err(err).Str("sql", query).Msg("benign error ignored")
			return &Cursor{}, nil
		}
		se := &StoreError{Op: "query", Kind: KindExecution, SQL: original, Args: args, Err: err}
		if tier == tierNormalized {
			se.Rewritten = stmts
		}
		return nil, se
	}

	cur, err := newCursor(rows, func() {
		c.metrics.observe(c.dialect.Name(), tier, "ok", time.Since(start))
	})
	if err != nil {
		return nil, newError("query", KindExecution, original, args, err)
	}
	return cur, nil
}

func (c *Conn) logWarnings(st stmt.Statement) {
	for _, w := range st.Warnings {
		c.logger.Warn().Str("dialect", c.dialect.Name()).Str("sql", st.SQL).Msg(w)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(x), &n)
		return n, err
	case string:
		var n int64
		_, err := fmt.Sscan(x, &n)
		return n, err
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
