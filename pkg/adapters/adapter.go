package adapters

import (
	"context"

	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

// Config - универсальная конфигурация подключения к БД
// Сохраняется в Conn и используется повторно в Recreate
type Config struct {
	// Type - тип СУБД: "sqlite", "mysql", "mssql", "oracle", "postgres"
	Type string

	// URL - адрес сервера или готовая строка подключения
	// Примеры:
	//   SQLite:     "file:app.db" или ":memory:"
	//   MySQL:      "localhost:3306"
	//   MS SQL:     "localhost:1433"
	//   Oracle:     "DSN=ORCL" (ODBC)
	//   PostgreSQL: "localhost:5432"
	URL string

	// Database - имя базы данных (SQLite игнорирует)
	Database string

	// User, Password - учетные данные (SQLite игнорирует)
	User     string
	Password string

	// Extra - дополнительные параметры драйвера (добавляются в DSN как есть)
	Extra map[string]string
}

// Querier - выполнение запроса без перезаписи SQL
// Передается в Dialect.Rewrite для интроспекции схемы (MySQL information_schema)
type Querier interface {
	QueryRaw(ctx context.Context, sql string, args ...any) (*Result, error)
}

// Dialect - особенности конкретной СУБД
// Реализуется в pkg/adapters/{sqlite,mysql,mssql,oracle,postgres}
type Dialect interface {
	// Name возвращает тип СУБД ("sqlite", "mysql", ...)
	Name() string

	// DriverName возвращает имя database/sql драйвера
	DriverName() string

	// DSN собирает строку подключения из конфигурации
	DSN(cfg Config) (string, error)

	// Rewrite приводит SQL к диалекту СУБД
	// Последний элемент результата - запрос вызывающего кода,
	// предыдущие выполняются до него (например при разбиении VIEW)
	Rewrite(ctx context.Context, q Querier, sql string) ([]string, error)

	// Upsert строит UPSERT в синтаксисе СУБД
	Upsert(spec stmt.UpsertSpec) (stmt.Statement, error)

	// SanitizeError возвращает true, если ошибку можно проигнорировать
	// (повторное создание индекса, который уже существует)
	SanitizeError(originalSQL, normalizedSQL string, err error) bool
}

// Preluder - диалект с настройками сессии, выполняемыми сразу после подключения
// Ошибки этих запросов логируются и не прерывают подключение
type Preluder interface {
	Prelude() []string
}
