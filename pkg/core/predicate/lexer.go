package predicate

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType тип токена
type TokenType int

const (
	// Специальные токены
	TokenEOF TokenType = iota
	TokenIllegal

	// Идентификаторы и литералы
	TokenIdent       // имена ключей
	TokenString      // 'строка'
	TokenNumber      // 123, 123.45
	TokenPlaceholder // ?

	// Ключевые слова
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenBetween
	TokenLike
	TokenIs
	TokenNull
	TokenOrder
	TokenBy
	TokenAsc
	TokenDesc

	// Операторы
	TokenEq     // =
	TokenNotEq  // != или <>
	TokenLt     // <
	TokenLte    // <=
	TokenGt     // >
	TokenGte    // >=
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenIllegal:     "ILLEGAL",
	TokenIdent:       "IDENT",
	TokenString:      "STRING",
	TokenNumber:      "NUMBER",
	TokenPlaceholder: "?",
	TokenAnd:         "AND",
	TokenOr:          "OR",
	TokenNot:         "NOT",
	TokenIn:          "IN",
	TokenBetween:     "BETWEEN",
	TokenLike:        "LIKE",
	TokenIs:          "IS",
	TokenNull:        "NULL",
	TokenOrder:       "ORDER",
	TokenBy:          "BY",
	TokenAsc:         "ASC",
	TokenDesc:        "DESC",
	TokenEq:          "=",
	TokenNotEq:       "!=",
	TokenLt:          "<",
	TokenLte:         "<=",
	TokenGt:          ">",
	TokenGte:         ">=",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenComma:       ",",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"AND":     TokenAnd,
	"OR":      TokenOr,
	"NOT":     TokenNot,
	"IN":      TokenIn,
	"BETWEEN": TokenBetween,
	"LIKE":    TokenLike,
	"IS":      TokenIs,
	"NULL":    TokenNull,
	"ORDER":   TokenOrder,
	"BY":      TokenBy,
	"ASC":     TokenAsc,
	"DESC":    TokenDesc,
}

// Token представляет токен
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // позиция в исходной строке
}

// String возвращает строковое представление токена
func (t Token) String() string {
	return fmt.Sprintf("Token{Type:%v, Literal:%q, Pos:%d}", t.Type, t.Literal, t.Pos)
}

// Lexer лексический анализатор
type Lexer struct {
	input   string
	pos     int  // текущая позиция
	readPos int  // следующая позиция для чтения
	ch      byte // текущий символ
}

// NewLexer создает новый лексер
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken возвращает следующий токен
func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()
	tok.Pos = l.pos

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
	case '?':
		tok.Type = TokenPlaceholder
		tok.Literal = "?"
	case '=':
		tok.Type = TokenEq
		tok.Literal = "="
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = TokenNotEq
			tok.Literal = "!="
		} else {
			tok.Type = TokenIllegal
			tok.Literal = string(l.ch)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type = TokenLte
			tok.Literal = "<="
		case '>':
			l.readChar()
			tok.Type = TokenNotEq
			tok.Literal = "<>"
		default:
			tok.Type = TokenLt
			tok.Literal = "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = TokenGte
			tok.Literal = ">="
		} else {
			tok.Type = TokenGt
			tok.Literal = ">"
		}
	case '-':
		// Минус допустим только как начало числа
		if isDigit(l.peekChar()) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type = TokenIllegal
		tok.Literal = string(l.ch)
	case '(':
		tok.Type = TokenLParen
		tok.Literal = "("
	case ')':
		tok.Type = TokenRParen
		tok.Literal = ")"
	case ',':
		tok.Type = TokenComma
		tok.Literal = ","
	case '\'', '"':
		tok.Type = TokenString
		tok.Literal = l.readString(l.ch)
		return tok // readString уже продвинул позицию
	default:
		if isLetter(l.ch) || l.ch == '_' {
			tok.Literal = l.readIdentifier()
			if kw, ok := keywords[strings.ToUpper(tok.Literal)]; ok {
				tok.Type = kw
			} else {
				tok.Type = TokenIdent
			}
			return tok
		}
		if isDigit(l.ch) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type = TokenIllegal
		tok.Literal = string(l.ch)
	}

	l.readChar()
	return tok
}

// Tokens возвращает все токены до EOF (для отладки и тестов)
func (l *Lexer) Tokens() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// readIdentifier читает имя ключа; точка допустима для вложенных имен (a.b)
func (l *Lexer) readIdentifier() string {
	position := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' {
		l.readChar()
	}
	return l.input[position:l.pos]
}

func (l *Lexer) readNumber() string {
	position := l.pos
	hasDecimal := false

	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	return l.input[position:l.pos]
}

// readString читает строку в кавычках; \' и удвоенная кавычка экранируют
func (l *Lexer) readString(quote byte) string {
	var sb strings.Builder
	l.readChar() // открывающая кавычка

	for l.ch != 0 {
		if l.ch == '\\' && l.peekChar() == quote {
			l.readChar()
		} else if l.ch == quote {
			if l.peekChar() != quote {
				break
			}
			l.readChar()
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}

	if l.ch == quote {
		l.readChar() // закрывающая кавычка
	}
	return sb.String()
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
