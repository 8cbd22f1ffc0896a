package dice

import (
	"fmt"
	"strconv"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// SyntaxError describes why Parse rejected its input.
type SyntaxError struct {
	Input string
	Pos   int // byte offset into Input
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("dice: %s at offset %d in %q", e.Msg, e.Pos, e.Input)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokD
	tokKeepHigh
	tokKeepLow
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokStar
	tokFloorDiv
	tokCompare
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  int
	op   distribution.ComparisonOp
}

func lex(input string) ([]token, error) {
	var toks []token
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case c >= '0' && c <= '9':
			j := i
			for j < len(input) && input[j] >= '0' && input[j] <= '9' {
				j++
			}
			n, err := strconv.ParseInt(input[i:j], 10, 32)
			if err != nil {
				return nil, &SyntaxError{Input: input, Pos: i, Msg: fmt.Sprintf("number %s out of range", input[i:j])}
			}
			toks = append(toks, token{kind: tokNumber, text: input[i:j], pos: i, num: int(n)})
			i = j
			continue
		}

		two := ""
		if i+1 < len(input) {
			two = input[i : i+2]
		}
		switch two {
		case "kh", "KH":
			toks = append(toks, token{kind: tokKeepHigh, text: two, pos: i})
			i += 2
			continue
		case "kl", "KL":
			toks = append(toks, token{kind: tokKeepLow, text: two, pos: i})
			i += 2
			continue
		case "/_":
			toks = append(toks, token{kind: tokFloorDiv, text: two, pos: i})
			i += 2
			continue
		case ">=":
			toks = append(toks, token{kind: tokCompare, text: two, pos: i, op: distribution.Ge})
			i += 2
			continue
		case "<=":
			toks = append(toks, token{kind: tokCompare, text: two, pos: i, op: distribution.Le})
			i += 2
			continue
		case "==":
			toks = append(toks, token{kind: tokCompare, text: two, pos: i, op: distribution.Eq})
			i += 2
			continue
		}

		var kind tokenKind
		var op distribution.ComparisonOp
		switch c {
		case 'd', 'D':
			kind = tokD
		case '(':
			kind = tokLParen
		case ')':
			kind = tokRParen
		case '+':
			kind = tokPlus
		case '-':
			kind = tokMinus
		case '*':
			kind = tokStar
		case '>':
			kind, op = tokCompare, distribution.Gt
		case '<':
			kind, op = tokCompare, distribution.Lt
		default:
			return nil, &SyntaxError{Input: input, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
		toks = append(toks, token{kind: kind, text: string(c), pos: i, op: op})
		i++
	}
	return append(toks, token{kind: tokEOF, pos: len(input)}), nil
}

type parser struct {
	input string
	toks  []token
	pos   int
}

// Parse parses dice notation into an Expression.
//
// Supported forms include "d20", "2d6+3", "4d6kh3", "2d20kl", "(1d4)(4)kl2",
// "1d4 /_ 2", and "(1d20+3 >= 17) * 2d10".
//
// Postcondition: Returns a non-nil Expression or a *SyntaxError.
func Parse(input string) (Expression, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	expr, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return expr, nil
}

// MustParse parses input and panics on error. Useful for package-level values.
//
// Precondition: input must be a valid dice expression.
func MustParse(input string) Expression {
	e, err := Parse(input)
	if err != nil {
		panic("dice: MustParse failed for expression " + input + ": " + err.Error())
	}
	return e
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Input: p.input, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		if t.kind == tokEOF {
			return t, p.errorf(t, "expected %s, found end of input", what)
		}
		return t, p.errorf(t, "expected %s, found %q", what, t.text)
	}
	return t, nil
}

func (p *parser) comparison() (Expression, error) {
	left, err := p.sum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokCompare {
		return left, nil
	}
	op := p.next().op
	right, err := p.sum()
	if err != nil {
		return nil, err
	}
	return Comparison{Left: left, Op: op, Right: right}, nil
}

func (p *parser) sum() (Expression, error) {
	first, err := p.product()
	if err != nil {
		return nil, err
	}
	terms := []Expression{first}
	for {
		kind := p.peek().kind
		if kind != tokPlus && kind != tokMinus {
			break
		}
		p.next()
		term, err := p.product()
		if err != nil {
			return nil, err
		}
		if kind == tokMinus {
			term = negate(term)
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return Sum{Terms: terms}, nil
}

func (p *parser) product() (Expression, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		kind := p.peek().kind
		if kind != tokStar && kind != tokFloorDiv {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		if kind == tokStar {
			left = Product{Left: left, Right: right}
		} else {
			left = Floor{Left: left, Right: right}
		}
	}
}

func (p *parser) unary() (Expression, error) {
	if p.peek().kind != tokMinus {
		return p.repeat()
	}
	p.next()
	literal := p.peek().kind == tokNumber
	inner, err := p.unary()
	if err != nil {
		return nil, err
	}
	if m, ok := inner.(Modifier); ok && literal {
		return Modifier{Value: -m.Value}, nil
	}
	return Negated{Inner: inner}, nil
}

// negate folds subtraction of a literal into a negative modifier.
func negate(e Expression) Expression {
	if m, ok := e.(Modifier); ok {
		return Modifier{Value: -m.Value}
	}
	return Negated{Inner: e}
}

func (p *parser) repeat() (Expression, error) {
	count, err := p.primary()
	if err != nil {
		return nil, err
	}

	var value Expression
	switch p.peek().kind {
	case tokD:
		p.next()
		faces, err := p.faces()
		if err != nil {
			return nil, err
		}
		value = Die{Faces: faces}
	case tokLParen:
		value, err = p.group()
		if err != nil {
			return nil, err
		}
	default:
		if k := p.peek().kind; k == tokKeepHigh || k == tokKeepLow {
			return nil, p.errorf(p.peek(), "keep rule %q needs a repeated roll", p.peek().text)
		}
		return count, nil
	}

	ranker := distribution.All()
	switch t := p.peek(); t.kind {
	case tokKeepHigh, tokKeepLow:
		p.next()
		keep := 1
		if p.peek().kind == tokNumber {
			keep = p.next().num
		}
		if t.kind == tokKeepHigh {
			ranker = distribution.Highest(keep)
		} else {
			ranker = distribution.Lowest(keep)
		}
	}
	return Repeated{Count: count, Value: value, Ranker: ranker}, nil
}

func (p *parser) primary() (Expression, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return Modifier{Value: t.num}, nil
	case tokD:
		p.next()
		faces, err := p.faces()
		if err != nil {
			return nil, err
		}
		return Die{Faces: faces}, nil
	case tokLParen:
		return p.group()
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of input")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}

func (p *parser) group() (Expression, error) {
	if _, err := p.expect(tokLParen, `"("`); err != nil {
		return nil, err
	}
	inner, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, `")"`); err != nil {
		return nil, err
	}
	return inner, nil
}

func (p *parser) faces() (int, error) {
	t, err := p.expect(tokNumber, "die faces")
	if err != nil {
		return 0, err
	}
	if t.num < 1 {
		return 0, p.errorf(t, "die must have at least one face")
	}
	return t.num, nil
}
