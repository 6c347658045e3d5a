package adapters

import (
	"github.com/rs/zerolog"

	"github.com/ruslano69/eavsql/pkg/retry"
)

// Option настраивает Conn
type Option func(*Conn)

// WithLogger задает логгер (по умолчанию zerolog.Nop)
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithMetrics задает метрики выполнения запросов
func WithMetrics(m *Metrics) Option {
	return func(c *Conn) {
		c.metrics = m
	}
}

// WithRetry задает повторы при установке соединения
// Запросы не повторяются никогда
func WithRetry(cfg retry.Config) Option {
	return func(c *Conn) {
		c.retry = cfg
	}
}

// WithPrelude задает запросы, выполняемые сразу после подключения
// (например PRAGMA для SQLite)
func WithPrelude(statements ...string) Option {
	return func(c *Conn) {
		c.prelude = append(c.prelude, statements...)
	}
}
