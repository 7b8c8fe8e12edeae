package logic

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// #region lexer

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLParen
	tokRParen
	tokNot
	tokAnd
	tokOr
	tokImplies
	tokTrue
	tokFalse
	tokUntil
	tokRelease
	tokAlways
	tokEventually
	tokNext
	tokLe
	tokLt
	tokEq
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"true":       tokTrue,
	"false":      tokFalse,
	"U":          tokUntil,
	"R":          tokRelease,
	"G":          tokAlways,
	"always":     tokAlways,
	"F":          tokEventually,
	"eventually": tokEventually,
	"X":          tokNext,
	"next":       tokNext,
}

// symbols lists multi-rune operators before their prefixes.
var symbols = []struct {
	text string
	kind tokenKind
}{
	{"->", tokImplies},
	{"<=", tokLe},
	{"==", tokEq},
	{"&&", tokAnd},
	{"||", tokOr},
	{"(", tokLParen},
	{")", tokRParen},
	{"¬", tokNot},
	{"!", tokNot},
	{"~", tokNot},
	{"∧", tokAnd},
	{"&", tokAnd},
	{"∨", tokOr},
	{"|", tokOr},
	{"→", tokImplies},
	{"⊤", tokTrue},
	{"⊥", tokFalse},
	{"≤", tokLe},
	{"<", tokLt},
	{"=", tokEq},
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lex(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		if isIdentRune(r) {
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !isIdentRune(r) {
					break
				}
				i += size
			}
			word := text[start:i]
			kind, ok := keywords[word]
			if !ok {
				kind = tokIdent
			}
			tokens = append(tokens, token{kind: kind, text: word, pos: start})
			continue
		}
		matched := false
		for _, sym := range symbols {
			if len(text)-i >= len(sym.text) && text[i:i+len(sym.text)] == sym.text {
				tokens = append(tokens, token{kind: sym.kind, text: sym.text, pos: i})
				i += len(sym.text)
				matched = true
				break
			}
		}
		if !matched {
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(text)}), nil
}

// #endregion lexer

// #region parser

// Parse reads a formula. Identifiers name signals and are resolved through
// bindings; the resulting Var carries the identifier as its name, so
// Parse(p.String(), bindings) reproduces p.
//
// Accepted forms, loosest binding first:
//
//	p -> q, p → q                    implication (right associative)
//	p | q, p ∨ q                     disjunction
//	p & q, p ∧ q                     conjunction
//	p U q, p R q                     until, release
//	¬p, !p, G p, F p, X p            negation, always, eventually, next
//	(p), ⊤, true, ⊥, false, x ≤ y, x <= y, x < y, x = y
func Parse[T Atomic](text string, bindings map[string]Signal[T]) (Prop[T], error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser[T]{tokens: tokens, bindings: bindings}
	prop, err := p.implies()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q after formula", tok.text)
	}
	return prop, nil
}

// MustParse is Parse for formulas known at compile time.
func MustParse[T Atomic](text string, bindings map[string]Signal[T]) Prop[T] {
	p, err := Parse(text, bindings)
	if err != nil {
		panic(err)
	}
	return p
}

type parser[T Atomic] struct {
	tokens   []token
	pos      int
	bindings map[string]Signal[T]
}

func (p *parser[T]) peek() token { return p.tokens[p.pos] }

func (p *parser[T]) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser[T]) errorf(tok token, format string, args ...any) error {
	return &ParseError{Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser[T]) implies() (Prop[T], error) {
	lhs, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokImplies {
		return lhs, nil
	}
	p.next()
	rhs, err := p.implies()
	if err != nil {
		return nil, err
	}
	return Implies(lhs, rhs), nil
}

func (p *parser[T]) or() (Prop[T], error) {
	lhs, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		rhs, err := p.and()
		if err != nil {
			return nil, err
		}
		lhs = Or(lhs, rhs)
	}
	return lhs, nil
}

func (p *parser[T]) and() (Prop[T], error) {
	lhs, err := p.temporal()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		rhs, err := p.temporal()
		if err != nil {
			return nil, err
		}
		lhs = And(lhs, rhs)
	}
	return lhs, nil
}

func (p *parser[T]) temporal() (Prop[T], error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokUntil:
			p.next()
			rhs, err := p.unary()
			if err != nil {
				return nil, err
			}
			lhs = Until(lhs, rhs)
		case tokRelease:
			p.next()
			rhs, err := p.unary()
			if err != nil {
				return nil, err
			}
			lhs = Release(lhs, rhs)
		default:
			return lhs, nil
		}
	}
}

func (p *parser[T]) unary() (Prop[T], error) {
	var wrap func(Prop[T]) Prop[T]
	switch p.peek().kind {
	case tokNot:
		wrap = Not[T]
	case tokAlways:
		wrap = Always[T]
	case tokEventually:
		wrap = Eventually[T]
	case tokNext:
		wrap = Next[T]
	default:
		return p.primary()
	}
	p.next()
	inner, err := p.unary()
	if err != nil {
		return nil, err
	}
	return wrap(inner), nil
}

func (p *parser[T]) primary() (Prop[T], error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		inner, err := p.implies()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ) to close ( at offset %d", tok.pos)
		}
		return inner, nil
	case tokTrue:
		return True[T](), nil
	case tokFalse:
		return False[T](), nil
	case tokIdent:
		left, err := p.signal(tok)
		if err != nil {
			return nil, err
		}
		var rel Relation
		switch p.peek().kind {
		case tokLe:
			rel = RelLe
		case tokLt:
			rel = RelLt
		case tokEq:
			rel = RelEq
		default:
			return Var(left), nil
		}
		p.next()
		rtok := p.next()
		if rtok.kind != tokIdent {
			return nil, p.errorf(rtok, "expected signal name after %s", rel.symbol())
		}
		right, err := p.signal(rtok)
		if err != nil {
			return nil, err
		}
		return cmp(rel, left, right), nil
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of formula")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}

func (p *parser[T]) signal(tok token) (Signal[T], error) {
	s, ok := p.bindings[tok.text]
	if !ok {
		return Signal[T]{}, p.errorf(tok, "unknown signal %q", tok.text)
	}
	s.Name = tok.text
	return s, nil
}

// #endregion parser
