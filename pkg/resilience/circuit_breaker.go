package resilience

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen - circuit breaker открыт
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyCalls - превышен лимит одновременных вызовов
	ErrTooManyCalls = errors.New("too many concurrent calls")
)

// ExecuteFunc - защищаемый вызов
type ExecuteFunc func(ctx context.Context) error

// CircuitBreaker отключает обращения к недоступному сервису (Redis, брокер)
// и периодически пробует восстановить их
type CircuitBreaker struct {
	config Config
	state  *stateManager
}

// New создает Circuit Breaker в состоянии Closed
func New(config Config) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	return &CircuitBreaker{config: config, state: newStateManager(config)}, nil
}

// Execute выполняет fn, если circuit не открыт
// Паника в fn учитывается как сбой и пробрасывается дальше
func (cb *CircuitBreaker) Execute(ctx context.Context, fn ExecuteFunc) (err error) {
	generation, tr, err := cb.state.beforeRequest()
	cb.notify(tr)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.notify(cb.state.afterRequest(generation, false))
			panic(r)
		}
	}()

	err = fn(ctx)
	cb.notify(cb.state.afterRequest(generation, !cb.config.IsFailure(err)))
	return err
}

// IsRejected - ошибка означает, что вызов не выполнялся
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyCalls)
}

// State возвращает текущее состояние
func (cb *CircuitBreaker) State() State {
	state, tr := cb.state.current()
	cb.notify(tr)
	return state
}

// Counts возвращает счетчики текущего поколения
func (cb *CircuitBreaker) Counts() Counts {
	_, counts, tr := cb.state.snapshot()
	cb.notify(tr)
	return counts
}

// Reset закрывает circuit
func (cb *CircuitBreaker) Reset() {
	cb.notify(cb.state.reset())
}

// Name возвращает имя
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

func (cb *CircuitBreaker) String() string {
	state, counts, tr := cb.state.snapshot()
	cb.notify(tr)
	return fmt.Sprintf("CircuitBreaker(%s state=%s failures=%d/%d)",
		cb.config.Name, state, counts.ConsecutiveFailures, cb.config.MaxFailures)
}

func (cb *CircuitBreaker) notify(tr *transition) {
	if tr != nil && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, tr.from, tr.to)
	}
}
