package adapters

import (
	"database/sql"
	"strings"
)

// Result - полностью прочитанный результат запроса
type Result struct {
	Columns []string
	Rows    [][]any
}

// RowCount возвращает количество строк
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex ищет колонку без учета регистра (Oracle возвращает имена в верхнем регистре)
// Возвращает -1, если колонки нет
func (r *Result) ColumnIndex(name string) int {
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

// Get возвращает значение по номеру строки и колонки
func (r *Result) Get(row, col int) any {
	if row < 0 || row >= len(r.Rows) || col < 0 || col >= len(r.Rows[row]) {
		return nil
	}
	return r.Rows[row][col]
}

// Value возвращает значение по номеру строки и имени колонки
func (r *Result) Value(row int, column string) any {
	return r.Get(row, r.ColumnIndex(column))
}

// Cursor - ленивый результат запроса (NoFetchQuery)
// Держит единственное соединение Conn до вызова Close
// Курсор без rows пуст (результат подавленной ошибки)
type Cursor struct {
	rows    *sql.Rows
	columns []string
	current []any
	err     error
	closed  bool
	onClose func()
}

func newCursor(rows *sql.Rows, onClose func()) (*Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &Cursor{rows: rows, columns: cols, onClose: onClose}, nil
}

// Columns возвращает имена колонок
func (c *Cursor) Columns() []string {
	return c.columns
}

// Next переходит к следующей строке
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil || c.rows == nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}

	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = err
		return false
	}
	c.current = values
	return true
}

// Row возвращает текущую строку
func (c *Cursor) Row() []any {
	return c.current
}

// Value возвращает значение текущей строки по имени колонки
func (c *Cursor) Value(column string) any {
	for i, col := range c.columns {
		if strings.EqualFold(col, column) && i < len(c.current) {
			return c.current[i]
		}
	}
	return nil
}

// Err возвращает ошибку, возникшую при чтении
func (c *Cursor) Err() error {
	return c.err
}

// Close освобождает соединение; повторный вызов безопасен
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	if c.onClose != nil {
		c.onClose()
	}
	return err
}

// FetchAll читает оставшиеся строки и закрывает курсор
func (c *Cursor) FetchAll() (*Result, error) {
	defer c.Close()

	res := &Result{Columns: c.columns}
	for c.Next() {
		res.Rows = append(res.Rows, c.current)
	}
	if c.err != nil {
		return nil, c.err
	}
	return res, nil
}
