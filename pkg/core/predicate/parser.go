package predicate

import (
	"fmt"
	"strings"
)

// Parser разбирает условие вида "a = ? AND (b > 10 OR c IS NULL)"
type Parser struct {
	lexer        *Lexer
	curToken     Token
	peekToken    Token
	placeholders int
}

// NewParser создает новый парсер
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}

	// Читаем два токена для инициализации curToken и peekToken
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("parse error at pos %d: %s", p.curToken.Pos, fmt.Sprintf(format, args...))
}

// ParseWhere разбирает условие целиком
// Возвращает nil выражение для пустой строки и число '?' плейсхолдеров
func ParseWhere(input string) (Expression, int, error) {
	if strings.TrimSpace(input) == "" {
		return nil, 0, nil
	}

	p := NewParser(input)
	expr, err := p.parseExpression(0)
	if err != nil {
		return nil, 0, err
	}
	if p.curToken.Type != TokenEOF {
		return nil, 0, p.errorf("unexpected %v %q", p.curToken.Type, p.curToken.Literal)
	}
	return expr, p.placeholders, nil
}

// ParseOrderBy разбирает "a DESC, b" (ключевые слова ORDER BY в начале необязательны)
func ParseOrderBy(input string) ([]*OrderByClause, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	p := NewParser(input)
	if p.curToken.Type == TokenOrder {
		p.nextToken()
		if p.curToken.Type != TokenBy {
			return nil, p.errorf("expected BY after ORDER")
		}
		p.nextToken()
	}

	clauses, err := p.parseOrderBy()
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TokenEOF {
		return nil, p.errorf("unexpected %v %q", p.curToken.Type, p.curToken.Literal)
	}
	return clauses, nil
}

// parseExpression парсит выражение с приоритетами
// Приоритет: NOT (3) > AND (2) > OR (1)
func (p *Parser) parseExpression(precedence int) (Expression, error) {
	var left Expression
	var err error

	switch p.curToken.Type {
	case TokenNot:
		p.nextToken()
		expr, err := p.parseExpression(3)
		if err != nil {
			return nil, err
		}
		left = &NotExpression{Expression: expr}
	case TokenLParen:
		p.nextToken()
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != TokenRParen {
			return nil, p.errorf("expected ), got %v", p.curToken.Type)
		}
		p.nextToken()
		left = &ParenExpression{Expression: expr}
	default:
		left, err = p.parseCondition()
		if err != nil {
			return nil, err
		}
	}

	// Инфиксные операторы (AND, OR)
	for {
		var opPrecedence int
		var operator string

		switch p.curToken.Type {
		case TokenAnd:
			opPrecedence, operator = 2, "AND"
		case TokenOr:
			opPrecedence, operator = 1, "OR"
		default:
			return left, nil
		}

		if opPrecedence <= precedence {
			return left, nil
		}
		p.nextToken()

		right, err := p.parseExpression(opPrecedence)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: operator, Right: right}
	}
}

// parseCondition парсит одно условие (field op value)
func (p *Parser) parseCondition() (Expression, error) {
	if p.curToken.Type != TokenIdent {
		return nil, p.errorf("expected field name, got %v", p.curToken.Type)
	}
	field := p.curToken.Literal
	p.nextToken()

	switch p.curToken.Type {
	case TokenIs:
		p.nextToken()
		not := false
		if p.curToken.Type == TokenNot {
			not = true
			p.nextToken()
		}
		if p.curToken.Type != TokenNull {
			return nil, p.errorf("expected NULL after IS")
		}
		p.nextToken()
		return &IsNullExpression{Field: field, Not: not}, nil

	case TokenIn:
		p.nextToken()
		return p.parseIn(field, false)

	case TokenBetween:
		p.nextToken()
		return p.parseBetween(field, false)

	case TokenNot:
		p.nextToken()
		switch p.curToken.Type {
		case TokenIn:
			p.nextToken()
			return p.parseIn(field, true)
		case TokenBetween:
			p.nextToken()
			return p.parseBetween(field, true)
		case TokenLike:
			p.nextToken()
			val, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return &ComparisonExpression{Field: field, Operator: "not_like", Value: val}, nil
		default:
			return nil, p.errorf("expected IN, BETWEEN or LIKE after NOT")
		}
	}

	var operator string
	switch p.curToken.Type {
	case TokenEq:
		operator = "eq"
	case TokenNotEq:
		operator = "ne"
	case TokenLt:
		operator = "lt"
	case TokenLte:
		operator = "lte"
	case TokenGt:
		operator = "gt"
	case TokenGte:
		operator = "gte"
	case TokenLike:
		operator = "like"
	default:
		return nil, p.errorf("expected operator, got %v", p.curToken.Type)
	}
	p.nextToken()

	val, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ComparisonExpression{Field: field, Operator: operator, Value: val}, nil
}

// parseOperand читает литерал или плейсхолдер
func (p *Parser) parseOperand() (Operand, error) {
	var op Operand
	switch p.curToken.Type {
	case TokenPlaceholder:
		op = Operand{Placeholder: true, Index: p.placeholders}
		p.placeholders++
	case TokenString:
		op = Operand{Literal: p.curToken.Literal}
	case TokenNumber:
		op = Operand{Literal: p.curToken.Literal, Number: true}
	default:
		return Operand{}, p.errorf("expected value, got %v", p.curToken.Type)
	}
	p.nextToken()
	return op, nil
}

func (p *Parser) parseIn(field string, not bool) (Expression, error) {
	if p.curToken.Type != TokenLParen {
		return nil, p.errorf("expected ( after IN")
	}
	p.nextToken()

	var values []Operand
	for {
		val, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		values = append(values, val)

		if p.curToken.Type == TokenRParen {
			p.nextToken()
			break
		}
		if p.curToken.Type != TokenComma {
			return nil, p.errorf("expected , or ) in IN list, got %v", p.curToken.Type)
		}
		p.nextToken()
	}

	return &InExpression{Field: field, Values: values, Not: not}, nil
}

func (p *Parser) parseBetween(field string, not bool) (Expression, error) {
	low, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TokenAnd {
		return nil, p.errorf("expected AND in BETWEEN")
	}
	p.nextToken()
	high, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &BetweenExpression{Field: field, Low: low, High: high, Not: not}, nil
}

func (p *Parser) parseOrderBy() ([]*OrderByClause, error) {
	var clauses []*OrderByClause

	for {
		if p.curToken.Type != TokenIdent {
			return nil, p.errorf("expected field name in ORDER BY")
		}
		clause := &OrderByClause{Field: p.curToken.Literal, Direction: "ASC"}
		p.nextToken()

		switch p.curToken.Type {
		case TokenAsc:
			p.nextToken()
		case TokenDesc:
			clause.Direction = "DESC"
			p.nextToken()
		}
		clauses = append(clauses, clause)

		if p.curToken.Type != TokenComma {
			return clauses, nil
		}
		p.nextToken()
	}
}
