package adapters

import (
	"fmt"
	"strings"
)

// ErrorKind - категория ошибки слоя доступа к данным
type ErrorKind int

const (
	// KindPrecondition - ошибка сборки запроса или привязки аргументов
	KindPrecondition ErrorKind = iota + 1

	// KindRewrite - ошибка интроспекции или перезаписи SQL под диалект
	KindRewrite

	// KindExecution - ошибка драйвера, не признанная безопасной
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindRewrite:
		return "rewrite"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// StoreError - ошибка выполнения с контекстом запроса
type StoreError struct {
	Op   string
	Kind ErrorKind

	// SQL - исходный текст запроса
	SQL string

	// Rewritten - текст после Dialect.Rewrite (если перезапись была)
	Rewritten []string

	Args []any
	Err  error
}

func (e *StoreError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s error", e.Op, e.Kind)
	if e.SQL != "" {
		fmt.Fprintf(&sb, " [%s]", e.SQL)
	}
	if len(e.Rewritten) > 0 && (len(e.Rewritten) > 1 || e.Rewritten[0] != e.SQL) {
		fmt.Fprintf(&sb, " (rewritten: %s)", strings.Join(e.Rewritten, "; "))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newError(op string, kind ErrorKind, sql string, args []any, err error) *StoreError {
	return &StoreError{Op: op, Kind: kind, SQL: sql, Args: args, Err: err}
}
