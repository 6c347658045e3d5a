package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State - состояние Circuit Breaker
type State int

const (
	// StateClosed - запросы проходят
	StateClosed State = iota

	// StateHalfOpen - пробные запросы после OpenTimeout
	StateHalfOpen

	// StateOpen - запросы отклоняются
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// transition - смена состояния, о которой сообщается после снятия блокировки
type transition struct {
	from, to State
}

// stateManager хранит состояние и счетчики
// generation меняется при каждой смене состояния: результаты вызовов,
// начатых в прошлом поколении, не учитываются
type stateManager struct {
	mu           sync.Mutex
	config       Config
	state        State
	generation   uint64
	counts       Counts
	expiry       time.Time
	runningCalls uint32
}

func newStateManager(config Config) *stateManager {
	return &stateManager{config: config, state: StateClosed}
}

func (sm *stateManager) current() (State, *transition) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	tr := sm.expire()
	return sm.state, tr
}

// beforeRequest резервирует вызов; ошибка - вызов отклонен
func (sm *stateManager) beforeRequest() (uint64, *transition, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	tr := sm.expire()
	if sm.state == StateOpen {
		return sm.generation, tr, ErrCircuitOpen
	}
	if sm.config.MaxConcurrentCalls > 0 && sm.runningCalls >= sm.config.MaxConcurrentCalls {
		return sm.generation, tr, ErrTooManyCalls
	}
	sm.runningCalls++
	return sm.generation, tr, nil
}

// afterRequest учитывает результат вызова
func (sm *stateManager) afterRequest(generation uint64, success bool) *transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.runningCalls > 0 {
		sm.runningCalls--
	}
	if generation != sm.generation {
		return nil
	}

	sm.counts.Requests++
	if success {
		sm.counts.TotalSuccesses++
		sm.counts.ConsecutiveSuccesses++
		sm.counts.ConsecutiveFailures = 0
		if sm.state == StateHalfOpen && sm.counts.ConsecutiveSuccesses >= sm.config.SuccessThreshold {
			return sm.setState(StateClosed)
		}
		return nil
	}

	sm.counts.TotalFailures++
	sm.counts.ConsecutiveFailures++
	sm.counts.ConsecutiveSuccesses = 0
	switch {
	case sm.state == StateHalfOpen:
		return sm.setState(StateOpen)
	case sm.state == StateClosed && sm.counts.ConsecutiveFailures >= sm.config.MaxFailures:
		return sm.setState(StateOpen)
	}
	return nil
}

// expire переводит Open в Half-Open по истечении OpenTimeout; mu взят
func (sm *stateManager) expire() *transition {
	if sm.state == StateOpen && !sm.config.Clock().Before(sm.expiry) {
		return sm.setState(StateHalfOpen)
	}
	return nil
}

// setState меняет состояние и начинает новое поколение; mu взят
func (sm *stateManager) setState(to State) *transition {
	if sm.state == to {
		return nil
	}
	tr := &transition{from: sm.state, to: to}
	sm.state = to
	sm.generation++
	sm.counts = Counts{}
	if to == StateOpen {
		sm.expiry = sm.config.Clock().Add(sm.config.OpenTimeout)
	}
	return tr
}

func (sm *stateManager) snapshot() (State, Counts, *transition) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	tr := sm.expire()
	return sm.state, sm.counts, tr
}

func (sm *stateManager) reset() *transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	tr := sm.setState(StateClosed)
	sm.counts = Counts{}
	return tr
}
