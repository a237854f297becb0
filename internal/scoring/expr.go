package scoring

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
)

// ErrInvalidExpression indicates a gate expression could not be parsed or evaluated.
var ErrInvalidExpression = errors.New("invalid gate expression")

// Context is the data a gate expression is evaluated against.
type Context map[string]any

// ContextFrom flattens a struct (or map) into a Context using its
// mapstructure tags. Nested structs are resolved lazily during lookup.
func ContextFrom(v any) (Context, error) {
	if v == nil {
		return Context{}, nil
	}
	if c, ok := v.(Context); ok {
		return c, nil
	}
	var out map[string]any
	if err := mapstructure.Decode(v, &out); err != nil {
		return nil, fmt.Errorf("failed to build gate context: %w", err)
	}
	return Context(out), nil
}

// Lookup resolves a dotted path such as "scores.compliance". Missing keys
// yield nil.
func (c Context) Lookup(path string) any {
	if path == "" {
		return map[string]any(c)
	}
	var cur any = map[string]any(c)
	for part := range strings.SplitSeq(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Context:
		return t, true
	case nil:
		return nil, false
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return nil, false
	}
	var out map[string]any
	if err := mapstructure.Decode(v, &out); err != nil {
		return nil, false
	}
	return out, true
}

// truthy follows JSON-logic truthiness: false, nil, zero, "" and empty
// arrays are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case uint32:
		return float64(t), true
	}
	return 0, false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two numbers or two strings. Ordering against a missing
// value is false.
func compare(op string, a, b any) (bool, error) {
	if a == nil || b == nil {
		switch op {
		case ">", ">=", "<", "<=":
			return false, nil
		}
		return false, fmt.Errorf("%w: unknown comparison %q", ErrInvalidExpression, op)
	}
	var c int
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	switch {
	case okA && okB:
		switch {
		case fa < fb:
			c = -1
		case fa > fb:
			c = 1
		}
	default:
		sa, okA := a.(string)
		sb, okB := b.(string)
		if !okA || !okB {
			return false, fmt.Errorf("%w: cannot compare %T %s %T", ErrInvalidExpression, a, op, b)
		}
		c = strings.Compare(sa, sb)
	}

	switch op {
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	}
	return false, fmt.Errorf("%w: unknown comparison %q", ErrInvalidExpression, op)
}

// contains implements "in": membership in an array or substring of a string.
func contains(needle, haystack any) (bool, error) {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if equal(needle, item) {
				return true, nil
			}
		}
		return false, nil
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("%w: %T in string", ErrInvalidExpression, needle)
		}
		return strings.Contains(h, s), nil
	case nil:
		return false, nil
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := range rv.Len() {
			if equal(needle, rv.Index(i).Interface()) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: cannot test membership in %T", ErrInvalidExpression, haystack)
}

func binary(op string, a, b any) (bool, error) {
	switch op {
	case "==", "===":
		return equal(a, b), nil
	case "!=", "!==":
		return !equal(a, b), nil
	case "in":
		return contains(a, b)
	default:
		return compare(op, a, b)
	}
}

// evalLogic evaluates a decoded JSON-logic node. Objects with a single key
// are operations; everything else is a literal.
func evalLogic(node any, ctx Context) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if len(n) != 1 {
			return nil, fmt.Errorf("%w: operation must have exactly one operator, got %d", ErrInvalidExpression, len(n))
		}
		for op, raw := range n {
			return applyLogic(op, raw, ctx)
		}
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			v, err := evalLogic(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return node, nil
}

func applyLogic(op string, raw any, ctx Context) (any, error) {
	args, ok := raw.([]any)
	if !ok {
		args = []any{raw}
	}

	switch op {
	case "var":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: var needs a path", ErrInvalidExpression)
		}
		path, err := evalLogic(args[0], ctx)
		if err != nil {
			return nil, err
		}
		var v any
		switch p := path.(type) {
		case string:
			v = ctx.Lookup(p)
		case float64:
			v = ctx.Lookup(strconv.FormatFloat(p, 'f', -1, 64))
		default:
			return nil, fmt.Errorf("%w: var path must be a string, got %T", ErrInvalidExpression, path)
		}
		if v == nil && len(args) > 1 {
			return evalLogic(args[1], ctx)
		}
		return v, nil

	case "and":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: and needs arguments", ErrInvalidExpression)
		}
		for _, a := range args {
			v, err := evalLogic(a, ctx)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil

	case "or":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: or needs arguments", ErrInvalidExpression)
		}
		for _, a := range args {
			v, err := evalLogic(a, ctx)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil

	case "not", "!":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s takes one argument", ErrInvalidExpression, op)
		}
		v, err := evalLogic(args[0], ctx)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil

	case "==", "===", "!=", "!==", ">", ">=", "<", "<=", "in":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: %s takes two arguments", ErrInvalidExpression, op)
		}
		a, err := evalLogic(args[0], ctx)
		if err != nil {
			return nil, err
		}
		b, err := evalLogic(args[1], ctx)
		if err != nil {
			return nil, err
		}
		return binary(op, a, b)
	}
	return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidExpression, op)
}

// Textual expressions:
//
//	expr    := and ( "||" and )*
//	and     := unary ( "&&" unary )*
//	unary   := "!" unary | cmp
//	cmp     := primary ( op primary )?
//	op      := "==" | "===" | "!=" | "!==" | ">" | ">=" | "<" | "<=" | "in"
//	primary := number | string | true | false | null | path | "(" expr ")" | "[" list "]"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(c):
			i += size
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '[':
			toks = append(toks, token{kind: tokLBracket, text: "[", pos: i})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokRBracket, text: "]", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '"' || c == '\'':
			end := i + 1
			var sb strings.Builder
			for end < len(src) && rune(src[end]) != c {
				if src[end] == '\\' && end+1 < len(src) {
					end++
				}
				sb.WriteByte(src[end])
				end++
			}
			if end >= len(src) {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrInvalidExpression, i)
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: i})
			i = end + 1
		case unicode.IsDigit(c) || (c == '-' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))) || c == '.':
			end := i + 1
			for end < len(src) && (unicode.IsDigit(rune(src[end])) || src[end] == '.') {
				end++
			}
			n, err := strconv.ParseFloat(src[i:end], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrInvalidExpression, src[i:end])
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:end], num: n, pos: i})
			i = end
		case unicode.IsLetter(c) || c == '_':
			end := i + size
			for end < len(src) {
				r, n := utf8.DecodeRuneInString(src[end:])
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
					break
				}
				end += n
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:end], pos: i})
			i = end
		default:
			op := ""
			for _, cand := range []string{"===", "!==", "==", "!=", ">=", "<=", "&&", "||", ">", "<", "!"} {
				if strings.HasPrefix(src[i:], cand) {
					op = cand
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidExpression, c, i)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

type parser struct {
	toks []token
	pos  int
	ctx  Context
	// skip is set while parsing an operand whose value cannot change the
	// result; it is parsed for syntax but not evaluated.
	skip bool
}

// evalText parses and evaluates a textual expression in one pass.
func evalText(src string, ctx Context) (any, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, ctx: ctx}
	v, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidExpression, t.text, t.pos)
	}
	return v, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) or() (any, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		short := truthy(left)
		right, err := p.operand(short, p.and)
		if err != nil {
			return nil, err
		}
		left = short || truthy(right)
	}
	return left, nil
}

func (p *parser) and() (any, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		short := !truthy(left)
		right, err := p.operand(short, p.unary)
		if err != nil {
			return nil, err
		}
		left = !short && truthy(right)
	}
	return left, nil
}

// operand parses the right side of a connective, skipping evaluation when
// the left side already decided the result.
func (p *parser) operand(short bool, parse func() (any, error)) (any, error) {
	prev := p.skip
	p.skip = prev || short
	defer func() { p.skip = prev }()
	return parse()
}

func (p *parser) unary() (any, error) {
	if p.isOp("!") {
		p.next()
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	return p.comparison()
}

func (p *parser) comparison() (any, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	var op string
	switch {
	case t.kind == tokOp && t.text != "&&" && t.text != "||" && t.text != "!":
		op = t.text
	case t.kind == tokIdent && t.text == "in":
		op = "in"
	default:
		return left, nil
	}
	p.next()

	right, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.skip {
		return nil, nil
	}
	return binary(op, left, right)
}

func (p *parser) primary() (any, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokString:
		return t.text, nil
	case tokIdent:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "nil":
			return nil, nil
		}
		return p.ctx.Lookup(t.text), nil
	case tokLParen:
		v, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing ')' for '(' at %d", ErrInvalidExpression, t.pos)
		}
		return v, nil
	case tokLBracket:
		items := []any{}
		if p.peek().kind == tokRBracket {
			p.next()
			return items, nil
		}
		for {
			v, err := p.or()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
			sep := p.next()
			if sep.kind == tokRBracket {
				return items, nil
			}
			if sep.kind != tokComma {
				return nil, fmt.Errorf("%w: expected ',' or ']' at %d", ErrInvalidExpression, sep.pos)
			}
		}
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrInvalidExpression)
	}
	return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidExpression, t.text, t.pos)
}
