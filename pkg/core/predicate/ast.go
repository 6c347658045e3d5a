package predicate

import "strconv"

// Expression - узел дерева условия
type Expression interface {
	expression()
	String() string
}

// Operand - правая часть сравнения: литерал или '?' плейсхолдер
type Operand struct {
	// Placeholder - значение берется из аргументов по индексу Index (с нуля)
	Placeholder bool
	Index       int

	// Literal - текст литерала, Number - литерал числовой
	Literal string
	Number  bool
}

func (o Operand) String() string {
	if o.Placeholder {
		return "?" + strconv.Itoa(o.Index)
	}
	if o.Number {
		return o.Literal
	}
	return "'" + o.Literal + "'"
}

// OrderByClause представляет элемент ORDER BY
type OrderByClause struct {
	Field     string
	Direction string // "ASC" или "DESC"
}

func (o *OrderByClause) String() string {
	return o.Field + " " + o.Direction
}

// BinaryExpression представляет AND / OR
type BinaryExpression struct {
	Left     Expression
	Operator string // "AND", "OR"
	Right    Expression
}

func (b *BinaryExpression) expression() {}
func (b *BinaryExpression) String() string {
	return "(" + b.Left.String() + " " + b.Operator + " " + b.Right.String() + ")"
}

// ComparisonExpression представляет сравнение
type ComparisonExpression struct {
	Field    string
	Operator string // "eq", "ne", "lt", "lte", "gt", "gte", "like", "not_like"
	Value    Operand
}

func (c *ComparisonExpression) expression() {}
func (c *ComparisonExpression) String() string {
	return c.Field + " " + c.Operator + " " + c.Value.String()
}

// InExpression представляет IN / NOT IN
type InExpression struct {
	Field  string
	Values []Operand
	Not    bool
}

func (i *InExpression) expression() {}
func (i *InExpression) String() string {
	op := " IN ("
	if i.Not {
		op = " NOT IN ("
	}
	s := i.Field + op
	for n, v := range i.Values {
		if n > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + ")"
}

// BetweenExpression представляет BETWEEN / NOT BETWEEN
type BetweenExpression struct {
	Field string
	Low   Operand
	High  Operand
	Not   bool
}

func (b *BetweenExpression) expression() {}
func (b *BetweenExpression) String() string {
	op := " BETWEEN "
	if b.Not {
		op = " NOT BETWEEN "
	}
	return b.Field + op + b.Low.String() + " AND " + b.High.String()
}

// IsNullExpression представляет IS NULL / IS NOT NULL
type IsNullExpression struct {
	Field string
	Not   bool
}

func (i *IsNullExpression) expression() {}
func (i *IsNullExpression) String() string {
	if i.Not {
		return i.Field + " IS NOT NULL"
	}
	return i.Field + " IS NULL"
}

// NotExpression представляет NOT
type NotExpression struct {
	Expression Expression
}

func (n *NotExpression) expression() {}
func (n *NotExpression) String() string {
	return "NOT " + n.Expression.String()
}

// ParenExpression представляет выражение в скобках
type ParenExpression struct {
	Expression Expression
}

func (p *ParenExpression) expression() {}
func (p *ParenExpression) String() string {
	return "(" + p.Expression.String() + ")"
}

// Fields возвращает имена ключей, встречающихся в выражении, без повторов
func Fields(expr Expression) []string {
	var out []string
	seen := map[string]bool{}
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	var walk func(Expression)
	walk = func(e Expression) {
		switch n := e.(type) {
		case *BinaryExpression:
			walk(n.Left)
			walk(n.Right)
		case *NotExpression:
			walk(n.Expression)
		case *ParenExpression:
			walk(n.Expression)
		case *ComparisonExpression:
			add(n.Field)
		case *InExpression:
			add(n.Field)
		case *BetweenExpression:
			add(n.Field)
		case *IsNullExpression:
			add(n.Field)
		}
	}
	if expr != nil {
		walk(expr)
	}
	return out
}
