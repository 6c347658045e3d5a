package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruslano69/eavsql/pkg/core/predicate"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/core/value"
)

// OIDField - имя поля условия, обозначающее сам oID объекта
const OIDField = "_oid"

// Query возвращает объекты, удовлетворяющие условию, вместе с их oID
//
//	where   - "name = ? AND (age > 18 OR role IN ('admin', 'owner'))"
//	orderBy - "age DESC, name"
//
// Условие и сортировка применяются к значениям атрибутов (idx = 0).
// offset/limit применяются после условия; limit = 0 - без ограничения
func (s *Store) Query(ctx context.Context, where string, args []any, orderBy string, offset, limit int) ([]Record, error) {
	ids, err := s.QueryKeys(ctx, where, args, orderBy, offset, limit)
	if err != nil {
		return nil, err
	}
	objects, err := s.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(ids))
	for i, id := range ids {
		records[i] = Record{OID: id, Attrs: objects[i]}
	}
	return records, nil
}

// QueryKeys возвращает oID объектов, удовлетворяющих условию
func (s *Store) QueryKeys(ctx context.Context, where string, args []any, orderBy string, offset, limit int) ([]string, error) {
	if offset < 0 || limit < 0 {
		return nil, illegal("query", "offset %d and limit %d must not be negative", offset, limit)
	}
	q, err := s.translate(where, args, orderBy)
	if err != nil {
		return nil, err
	}

	// без limit билдер не пишет OFFSET, пропускаем на клиенте
	sqlOffset := offset
	if limit == 0 {
		sqlOffset = 0
	}
	res, err := s.conn.Fetch(ctx, stmt.Select(q.from, "b.oID", q.where, q.args, q.orderBy, limit, sqlOffset))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.collection, err)
	}

	ids := stringColumn(res)
	if limit == 0 && offset > 0 {
		if offset >= len(ids) {
			return []string{}, nil
		}
		ids = ids[offset:]
	}
	return ids, nil
}

// Count возвращает число объектов, удовлетворяющих условию
func (s *Store) Count(ctx context.Context, where string, args []any) (int64, error) {
	q, err := s.translate(where, args, "")
	if err != nil {
		return 0, err
	}
	n, err := s.conn.Count(ctx, q.from, q.where, q.args)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.collection, err)
	}
	return n, nil
}

// translated - условие, переведенное в SQL над MB (псевдоним b)
type translated struct {
	from    string
	where   string
	orderBy string
	args    []any
}

func (s *Store) translate(where string, args []any, orderBy string) (*translated, error) {
	expr, placeholders, err := predicate.ParseWhere(where)
	if err != nil {
		return nil, illegal("query", "where %q: %v", where, err)
	}
	if placeholders != len(args) {
		return nil, illegal("query", "where %q: %d placeholders but %d arguments", where, placeholders, len(args))
	}
	order, err := predicate.ParseOrderBy(orderBy)
	if err != nil {
		return nil, illegal("query", "order by %q: %v", orderBy, err)
	}

	q := &translated{from: s.baseTable + " b"}

	// сортировка: LEFT JOIN на значение атрибута; аргументы JOIN идут первыми
	var orderParts []string
	byOID := false
	for i, o := range order {
		if o.Field == OIDField {
			if !byOID {
				orderParts = append(orderParts, "b.oID "+o.Direction)
				byOID = true
			}
			continue
		}
		alias := "o" + strconv.Itoa(i)
		q.from += " LEFT JOIN " + s.dataTable + " " + alias + " ON " + alias + ".oID = b.oID AND " +
			alias + ".kID = ? AND " + alias + ".idx = 0"
		q.args = append(q.args, o.Field)
		orderParts = append(orderParts, alias+".nVl "+o.Direction, alias+".sVl "+o.Direction)
	}
	// MS SQL не принимает повторную колонку в ORDER BY
	if !byOID {
		orderParts = append(orderParts, "b.oID")
	}
	q.orderBy = strings.Join(orderParts, ", ")

	if expr != nil {
		t := &translator{dataTable: s.dataTable, args: args}
		cond, err := t.expr(expr)
		if err != nil {
			return nil, illegal("query", "where %q: %v", where, err)
		}
		q.where = cond
		q.args = append(q.args, t.out...)
	}
	return q, nil
}

// translator переводит дерево условия в подзапросы к MD
type translator struct {
	dataTable string
	args      []any
	out       []any
}

func (t *translator) expr(e predicate.Expression) (string, error) {
	switch n := e.(type) {
	case *predicate.BinaryExpression:
		l, err := t.expr(n.Left)
		if err != nil {
			return "", err
		}
		r, err := t.expr(n.Right)
		if err != nil {
			return "", err
		}
		return "(" + l + " " + n.Operator + " " + r + ")", nil
	case *predicate.ParenExpression:
		inner, err := t.expr(n.Expression)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *predicate.NotExpression:
		inner, err := t.expr(n.Expression)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case *predicate.ComparisonExpression:
		return t.comparison(n)
	case *predicate.InExpression:
		return t.in(n)
	case *predicate.BetweenExpression:
		return t.between(n)
	case *predicate.IsNullExpression:
		return t.isNull(n)
	default:
		return "", fmt.Errorf("unsupported expression %T", e)
	}
}

// operand возвращает значение литерала или аргумента
func (t *translator) operand(o predicate.Operand) (value.Value, error) {
	if o.Placeholder {
		if o.Index >= len(t.args) {
			return value.Value{}, fmt.Errorf("missing argument %d", o.Index+1)
		}
		return value.Of(t.args[o.Index])
	}
	if o.Number {
		if n, err := strconv.ParseInt(o.Literal, 10, 64); err == nil {
			return value.Int(n), nil
		}
		f, err := strconv.ParseFloat(o.Literal, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid number %q", o.Literal)
		}
		return value.Float(f), nil
	}
	return value.String(o.Literal), nil
}

// subquery - "b.oID IN (SELECT oID FROM MD WHERE kID = ? AND idx = 0 AND cond)"
func (t *translator) subquery(field, cond string, condArgs []any, not bool) string {
	t.out = append(t.out, field)
	t.out = append(t.out, condArgs...)
	op := " IN "
	if not {
		op = " NOT IN "
	}
	return "b.oID" + op + "(SELECT oID FROM " + t.dataTable + " WHERE kID = ? AND idx = 0 AND " + cond + ")"
}

// hasKey - у объекта есть непустое значение атрибута
func (t *translator) hasKey(field string) string {
	return t.subquery(field, "typ <> 0", nil, false)
}

var sqlOperators = map[string]string{
	"eq": "=", "ne": "<>", "lt": "<", "lte": "<=", "gt": ">", "gte": ">=", "like": "LIKE", "not_like": "LIKE",
}

// valueCondition - условие на колонки значения для оператора op
func valueCondition(op string, v value.Value) (string, []any, error) {
	sqlOp := sqlOperators[op]

	switch v.Kind() {
	case value.KindInt, value.KindFloat:
		if op == "like" {
			return "", nil, fmt.Errorf("LIKE requires a string pattern")
		}
		return "typ IN (3, 4) AND nVl " + sqlOp + " ?", []any{v.Interface()}, nil

	case value.KindShortString, value.KindText:
		s, _ := v.Str()
		if op == "like" {
			return "((typ = 1 AND sVl LIKE ?) OR (typ = 2 AND tVl LIKE ?))", []any{s, s}, nil
		}
		if v.Kind() == value.KindText {
			// длинный текст сравнивается только на равенство, по хэшу в sVl
			if op != "eq" {
				return "", nil, fmt.Errorf("operator %s is not supported for text longer than %d bytes",
					sqlOp, value.ShortStringMax)
			}
			return "typ = 2 AND sVl = ?", []any{value.Hash(s)}, nil
		}
		return "typ = 1 AND sVl " + sqlOp + " ?", []any{s}, nil

	case value.KindBytes:
		if op != "eq" {
			return "", nil, fmt.Errorf("operator %s is not supported for binary values", sqlOp)
		}
		raw, _ := v.Raw()
		return "typ = 5 AND rVl = ?", []any{raw}, nil

	default:
		return "", nil, fmt.Errorf("unsupported value %s", v.Kind())
	}
}

func (t *translator) comparison(c *predicate.ComparisonExpression) (string, error) {
	v, err := t.operand(c.Value)
	if err != nil {
		return "", err
	}

	if c.Field == OIDField {
		s, ok := v.Str()
		if !ok {
			return "", fmt.Errorf("%s must be compared with a string", OIDField)
		}
		sqlOp := sqlOperators[c.Operator]
		if c.Operator == "not_like" {
			sqlOp = "NOT LIKE"
		}
		t.out = append(t.out, s)
		return "b.oID " + sqlOp + " ?", nil
	}

	if v.IsNull() {
		switch c.Operator {
		case "eq":
			return t.isNull(&predicate.IsNullExpression{Field: c.Field})
		case "ne":
			return t.isNull(&predicate.IsNullExpression{Field: c.Field, Not: true})
		default:
			return "", fmt.Errorf("%s: NULL can only be compared with = or <>", c.Field)
		}
	}

	switch c.Operator {
	case "ne":
		// есть значение, и оно не равно v
		cond, condArgs, err := valueCondition("eq", v)
		if err != nil {
			return "", err
		}
		has := t.hasKey(c.Field)
		return "(" + has + " AND " + t.subquery(c.Field, cond, condArgs, true) + ")", nil
	case "not_like":
		cond, condArgs, err := valueCondition("like", v)
		if err != nil {
			return "", err
		}
		has := t.hasKey(c.Field)
		return "(" + has + " AND " + t.subquery(c.Field, cond, condArgs, true) + ")", nil
	default:
		cond, condArgs, err := valueCondition(c.Operator, v)
		if err != nil {
			return "", err
		}
		return t.subquery(c.Field, cond, condArgs, false), nil
	}
}

func (t *translator) in(n *predicate.InExpression) (string, error) {
	if n.Field == OIDField {
		placeholders := make([]string, len(n.Values))
		for i, o := range n.Values {
			v, err := t.operand(o)
			if err != nil {
				return "", err
			}
			s, ok := v.Str()
			if !ok {
				return "", fmt.Errorf("%s must be compared with strings", OIDField)
			}
			placeholders[i] = "?"
			t.out = append(t.out, s)
		}
		op := " IN ("
		if n.Not {
			op = " NOT IN ("
		}
		return "b.oID" + op + strings.Join(placeholders, ", ") + ")", nil
	}

	conds := make([]string, 0, len(n.Values))
	var condArgs []any
	for _, o := range n.Values {
		v, err := t.operand(o)
		if err != nil {
			return "", err
		}
		cond, a, err := valueCondition("eq", v)
		if err != nil {
			return "", err
		}
		conds = append(conds, "("+cond+")")
		condArgs = append(condArgs, a...)
	}
	cond := "(" + strings.Join(conds, " OR ") + ")"

	if n.Not {
		has := t.hasKey(n.Field)
		return "(" + has + " AND " + t.subquery(n.Field, cond, condArgs, true) + ")", nil
	}
	return t.subquery(n.Field, cond, condArgs, false), nil
}

func (t *translator) between(n *predicate.BetweenExpression) (string, error) {
	low, err := t.operand(n.Low)
	if err != nil {
		return "", err
	}
	high, err := t.operand(n.High)
	if err != nil {
		return "", err
	}

	if n.Field == OIDField {
		ls, lok := low.Str()
		hs, hok := high.Str()
		if !lok || !hok {
			return "", fmt.Errorf("%s must be compared with strings", OIDField)
		}
		t.out = append(t.out, ls, hs)
		if n.Not {
			return "b.oID NOT BETWEEN ? AND ?", nil
		}
		return "b.oID BETWEEN ? AND ?", nil
	}

	var cond string
	switch {
	case low.IsNumber() && high.IsNumber():
		cond = "typ IN (3, 4) AND nVl BETWEEN ? AND ?"
	case low.Kind() == value.KindShortString && high.Kind() == value.KindShortString:
		cond = "typ = 1 AND sVl BETWEEN ? AND ?"
	default:
		return "", fmt.Errorf("%s: BETWEEN bounds must both be numbers or short strings", n.Field)
	}
	condArgs := []any{low.Interface(), high.Interface()}

	if n.Not {
		has := t.hasKey(n.Field)
		return "(" + has + " AND " + t.subquery(n.Field, cond, condArgs, true) + ")", nil
	}
	return t.subquery(n.Field, cond, condArgs, false), nil
}

func (t *translator) isNull(n *predicate.IsNullExpression) (string, error) {
	if n.Field == OIDField {
		if n.Not {
			return "b.oID IS NOT NULL", nil
		}
		return "b.oID IS NULL", nil
	}
	// IS NULL - значения нет совсем или оно Null
	return t.subquery(n.Field, "typ <> 0", nil, !n.Not), nil
}
