package step

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// MaxDepth bounds the nesting of lists, typed values and complex instances.
// Deeper input is rejected rather than recursed into.
const MaxDepth = 64

// Parse reads a normalized exchange structure (see StripFlatten).
func Parse(flat []byte) (*File, error) {
	p := &parser{buf: flat}
	return p.file()
}

type parser struct {
	buf   []byte
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.buf) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.buf[p.pos]
}

func (p *parser) accept(lit string) bool {
	if bytes.HasPrefix(p.buf[p.pos:], []byte(lit)) {
		p.pos += len(lit)
		return true
	}
	return false
}

func (p *parser) expect(lit string) error {
	if !p.accept(lit) {
		if p.eof() {
			return p.errorf("unexpected end of input, want %q", lit)
		}
		return p.errorf("want %q", lit)
	}
	return nil
}

func (p *parser) file() (*File, error) {
	if err := p.expect("ISO-10303-21;"); err != nil {
		return nil, err
	}
	f := &File{entities: make(map[ID]*Entity)}

	if err := p.expect("HEADER;"); err != nil {
		return nil, err
	}
	for !p.accept("ENDSEC;") {
		if p.eof() {
			return nil, p.errorf("unterminated HEADER section")
		}
		rec, err := p.record()
		if err != nil {
			return nil, err
		}
		if err := p.expect(";"); err != nil {
			return nil, err
		}
		f.Header = append(f.Header, rec)
	}

	sections := 0
	for p.accept("DATA") {
		// Edition 3 allows named data sections: DATA('name',('schema'));
		if p.peek() == '(' {
			if _, err := p.list(); err != nil {
				return nil, err
			}
		}
		if err := p.expect(";"); err != nil {
			return nil, err
		}
		for !p.accept("ENDSEC;") {
			if p.eof() {
				return nil, p.errorf("unterminated DATA section")
			}
			at := p.pos
			e, err := p.instance()
			if err != nil {
				return nil, err
			}
			if !f.add(e) {
				return nil, &SyntaxError{Offset: at, Msg: fmt.Sprintf("duplicate instance #%d", e.ID)}
			}
		}
		sections++
	}
	if sections == 0 {
		return nil, p.errorf("missing DATA section")
	}
	if err := p.expect("END-ISO-10303-21;"); err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("trailing data after END-ISO-10303-21")
	}
	f.seal()
	return f, nil
}

// instance parses "#id=RECORD;" or "#id=(RECORD RECORD ...);".
func (p *parser) instance() (*Entity, error) {
	if err := p.expect("#"); err != nil {
		return nil, err
	}
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	if err := p.expect("="); err != nil {
		return nil, err
	}
	e := &Entity{ID: id}
	if p.accept("(") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		for !p.accept(")") {
			if p.eof() {
				return nil, p.errorf("unterminated complex instance #%d", id)
			}
			rec, err := p.record()
			if err != nil {
				return nil, err
			}
			e.Records = append(e.Records, rec)
		}
		p.leave()
		if len(e.Records) == 0 {
			return nil, p.errorf("empty complex instance #%d", id)
		}
	} else {
		rec, err := p.record()
		if err != nil {
			return nil, err
		}
		e.Records = []Record{rec}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.errorf("nesting deeper than %d", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) id() (ID, error) {
	start := p.pos
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("want instance id")
	}
	n, err := strconv.ParseUint(string(p.buf[start:p.pos]), 10, 64)
	if err != nil {
		return 0, &SyntaxError{Offset: start, Msg: "instance id out of range"}
	}
	return ID(n), nil
}

func (p *parser) keyword() (string, error) {
	start := p.pos
	if c := p.peek(); !isLetter(c) && c != '!' && c != '_' {
		return "", p.errorf("want keyword")
	}
	p.pos++
	for !p.eof() {
		c := p.peek()
		if !isLetter(c) && !isDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return strings.ToUpper(string(p.buf[start:p.pos])), nil
}

// record parses KEYWORD(params).
func (p *parser) record() (Record, error) {
	name, err := p.keyword()
	if err != nil {
		return Record{}, err
	}
	if p.peek() != '(' {
		return Record{}, p.errorf("want '(' after %s", name)
	}
	params, err := p.list()
	if err != nil {
		return Record{}, err
	}
	return Record{Type: name, Params: params}, nil
}

// list parses a parenthesized, comma separated parameter list.
func (p *parser) list() ([]Value, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	var out []Value
	if p.accept(")") {
		return out, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if p.accept(")") {
			return out, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) value() (Value, error) {
	c := p.peek()
	switch {
	case c == '$':
		p.pos++
		return Value{Kind: KindUnset}, nil
	case c == '*':
		p.pos++
		return Value{Kind: KindDerived}, nil
	case c == '#':
		p.pos++
		id, err := p.id()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindRef, Ref: id}, nil
	case c == '\'':
		return p.stringValue()
	case c == '"':
		return p.binary()
	case c == '.':
		return p.enum()
	case c == '(':
		items, err := p.list()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindList, List: items}, nil
	case isDigit(c) || c == '+' || c == '-':
		return p.number()
	case isLetter(c) || c == '!' || c == '_':
		rec, err := p.record()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindTyped, Str: rec.Type, List: rec.Params}, nil
	case p.eof():
		return Value{}, p.errorf("unexpected end of input in parameter list")
	}
	return Value{}, p.errorf("unexpected %q in parameter list", c)
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '+' || c == '-' {
		p.pos++
	}
	digits := p.pos
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
	}
	if p.pos == digits {
		return Value{}, p.errorf("malformed number")
	}
	isReal := false
	if p.peek() == '.' {
		isReal = true
		p.pos++
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
	}
	if c := p.peek(); c == 'E' || c == 'e' {
		isReal = true
		p.pos++
		if c := p.peek(); c == '+' || c == '-' {
			p.pos++
		}
		exp := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		if p.pos == exp {
			return Value{}, p.errorf("malformed exponent")
		}
	}
	text := string(p.buf[start:p.pos])
	if !isReal {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, &SyntaxError{Offset: start, Msg: "integer out of range"}
		}
		return Value{Kind: KindInteger, Int: n}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, &SyntaxError{Offset: start, Msg: "real out of range"}
	}
	return Value{Kind: KindReal, Real: f}, nil
}

func (p *parser) enum() (Value, error) {
	start := p.pos
	p.pos++ // leading '.'
	name := p.pos
	for !p.eof() && p.peek() != '.' {
		c := p.peek()
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return Value{}, p.errorf("malformed enumeration")
		}
		p.pos++
	}
	if p.eof() || p.pos == name {
		return Value{}, &SyntaxError{Offset: start, Msg: "malformed enumeration"}
	}
	v := Value{Kind: KindEnum, Str: strings.ToUpper(string(p.buf[name:p.pos]))}
	p.pos++ // trailing '.'
	return v, nil
}

func (p *parser) binary() (Value, error) {
	start := p.pos
	p.pos++
	digits := p.pos
	for !p.eof() && p.peek() != '"' {
		if !isHex(p.peek()) {
			return Value{}, p.errorf("malformed binary literal")
		}
		p.pos++
	}
	if p.eof() || p.pos == digits {
		return Value{}, &SyntaxError{Offset: start, Msg: "malformed binary literal"}
	}
	v := Value{Kind: KindBinary, Str: string(p.buf[digits:p.pos])}
	p.pos++
	return v, nil
}

func (p *parser) stringValue() (Value, error) {
	start := p.pos
	p.pos++
	var raw []byte
	for {
		if p.eof() {
			return Value{}, &SyntaxError{Offset: start, Msg: "unterminated string literal"}
		}
		c := p.buf[p.pos]
		p.pos++
		if c == '\'' {
			if p.peek() == '\'' {
				raw = append(raw, '\'')
				p.pos++
				continue
			}
			break
		}
		raw = append(raw, c)
	}
	s, err := decodeString(raw)
	if err != nil {
		return Value{}, &SyntaxError{Offset: start, Msg: err.Error()}
	}
	return Value{Kind: KindString, Str: s}, nil
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }
func isHex(c byte) bool {
	return isDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}
