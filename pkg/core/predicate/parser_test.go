package predicate

import (
	"testing"
)

func TestLexer_Tokens(t *testing.T) {
	input := "name = ? AND age >= 18 OR note <> 'it''s' AND x IS NOT NULL"
	expected := []TokenType{
		TokenIdent, TokenEq, TokenPlaceholder, TokenAnd,
		TokenIdent, TokenGte, TokenNumber, TokenOr,
		TokenIdent, TokenNotEq, TokenString, TokenAnd,
		TokenIdent, TokenIs, TokenNot, TokenNull, TokenEOF,
	}

	tokens := NewLexer(input).Tokens()
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok.Type != expected[i] {
			t.Errorf("token %d: expected %v, got %v", i, expected[i], tok.Type)
		}
	}
	if tokens[10].Literal != "it's" {
		t.Errorf("expected unescaped string, got %q", tokens[10].Literal)
	}
}

func TestLexer_KeywordsAnyCase(t *testing.T) {
	tokens := NewLexer("a like ? And b Between 1 and 2").Tokens()
	if tokens[1].Type != TokenLike || tokens[3].Type != TokenAnd || tokens[5].Type != TokenBetween {
		t.Errorf("keywords not recognized: %v", tokens)
	}
}

func TestParseWhere_Comparison(t *testing.T) {
	tests := []struct {
		input    string
		operator string
	}{
		{"age = ?", "eq"},
		{"age != ?", "ne"},
		{"age <> ?", "ne"},
		{"age < ?", "lt"},
		{"age <= ?", "lte"},
		{"age > ?", "gt"},
		{"age >= ?", "gte"},
		{"name LIKE ?", "like"},
		{"name NOT LIKE ?", "not_like"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, n, err := ParseWhere(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if n != 1 {
				t.Errorf("expected 1 placeholder, got %d", n)
			}
			cmp, ok := expr.(*ComparisonExpression)
			if !ok {
				t.Fatalf("expected ComparisonExpression, got %T", expr)
			}
			if cmp.Operator != tt.operator {
				t.Errorf("expected operator %s, got %s", tt.operator, cmp.Operator)
			}
			if !cmp.Value.Placeholder || cmp.Value.Index != 0 {
				t.Errorf("expected placeholder 0, got %+v", cmp.Value)
			}
		})
	}
}

func TestParseWhere_Precedence(t *testing.T) {
	expr, n, err := ParseWhere("a = ? OR b = ? AND NOT c = ?")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 placeholders, got %d", n)
	}

	or, ok := expr.(*BinaryExpression)
	if !ok || or.Operator != "OR" {
		t.Fatalf("expected OR at root, got %v", expr)
	}
	and, ok := or.Right.(*BinaryExpression)
	if !ok || and.Operator != "AND" {
		t.Fatalf("expected AND on the right, got %v", or.Right)
	}
	if _, ok := and.Right.(*NotExpression); !ok {
		t.Errorf("expected NOT, got %T", and.Right)
	}

	last := and.Right.(*NotExpression).Expression.(*ComparisonExpression)
	if last.Value.Index != 2 {
		t.Errorf("expected placeholder index 2, got %d", last.Value.Index)
	}
}

func TestParseWhere_InBetweenNull(t *testing.T) {
	expr, n, err := ParseWhere("(status IN ('a', ?, 3) AND score NOT BETWEEN 1 AND ?) OR gone IS NULL")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 placeholders, got %d", n)
	}

	or := expr.(*BinaryExpression)
	paren, ok := or.Left.(*ParenExpression)
	if !ok {
		t.Fatalf("expected paren, got %T", or.Left)
	}
	and := paren.Expression.(*BinaryExpression)

	in := and.Left.(*InExpression)
	if len(in.Values) != 3 || in.Values[0].Literal != "a" || !in.Values[1].Placeholder || !in.Values[2].Number {
		t.Errorf("unexpected IN values: %+v", in.Values)
	}

	between := and.Right.(*BetweenExpression)
	if !between.Not || between.Low.Literal != "1" || !between.High.Placeholder || between.High.Index != 1 {
		t.Errorf("unexpected BETWEEN: %+v", between)
	}

	isNull := or.Right.(*IsNullExpression)
	if isNull.Field != "gone" || isNull.Not {
		t.Errorf("unexpected IS NULL: %+v", isNull)
	}

	fields := Fields(expr)
	if len(fields) != 3 || fields[0] != "status" || fields[1] != "score" || fields[2] != "gone" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestParseWhere_Empty(t *testing.T) {
	expr, n, err := ParseWhere("   ")
	if err != nil || expr != nil || n != 0 {
		t.Errorf("expected empty result, got %v %d %v", expr, n, err)
	}
}

func TestParseWhere_Errors(t *testing.T) {
	inputs := []string{
		"= ?",
		"a ?",
		"a = ",
		"(a = ?",
		"a = ? b = ?",
		"a IN ?",
		"a BETWEEN 1 2",
		"a IS 5",
		"a NOT = 1",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, _, err := ParseWhere(input); err == nil {
				t.Errorf("expected error for %q", input)
			}
		})
	}
}

func TestParseOrderBy(t *testing.T) {
	clauses, err := ParseOrderBy("ORDER BY age DESC, name")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	if clauses[0].Field != "age" || clauses[0].Direction != "DESC" {
		t.Errorf("unexpected first clause: %v", clauses[0])
	}
	if clauses[1].Field != "name" || clauses[1].Direction != "ASC" {
		t.Errorf("unexpected second clause: %v", clauses[1])
	}

	if _, err := ParseOrderBy("age sideways"); err == nil {
		t.Error("expected error for trailing garbage")
	}
}
