package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config - конфигурация Circuit Breaker
type Config struct {
	// Name - имя для логов и метрик
	Name string `yaml:"name,omitempty"`

	// MaxFailures - число ошибок подряд для открытия
	MaxFailures uint32 `yaml:"max_failures"`

	// OpenTimeout - время в Open перед переходом в Half-Open
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// SuccessThreshold - успешных вызовов в Half-Open для закрытия
	SuccessThreshold uint32 `yaml:"success_threshold"`

	// MaxConcurrentCalls - лимит одновременных вызовов, 0 - без ограничений
	MaxConcurrentCalls uint32 `yaml:"max_concurrent_calls,omitempty"`

	// OnStateChange вызывается после смены состояния (вне блокировки)
	OnStateChange func(name string, from, to State) `yaml:"-"`

	// IsFailure решает, считать ли ошибку сбоем
	// nil - любая ошибка, кроме отмены контекста
	IsFailure func(err error) bool `yaml:"-"`

	// Clock - источник времени (для тестов)
	Clock func() time.Time `yaml:"-"`
}

// Counts - счетчики текущего поколения
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Validate проверяет конфигурацию и заполняет значения по умолчанию
func (c *Config) Validate() error {
	if c.MaxFailures == 0 {
		return fmt.Errorf("max_failures must be greater than 0")
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("open_timeout must be greater than 0")
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
	if c.Name == "" {
		c.Name = "circuit-breaker"
	}
	if c.IsFailure == nil {
		c.IsFailure = defaultIsFailure
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}

// DefaultConfig - 5 ошибок подряд, 30 секунд в Open, 2 успеха для закрытия
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		SuccessThreshold: 2,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
