package vm

// parser consumes a token stream, building Pair/Symbol/Number ASTs on
// the heap.
type parser struct {
	tokens []token
	pos    int
}

// Parse reads exactly one expression from source.
func Parse(v *MutatorView, source string) (TaggedScopedPtr, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return TaggedScopedPtr{}, err
	}
	p := &parser{tokens: tokens}

	expr, err := p.parseExpr(v)
	if err != nil {
		return TaggedScopedPtr{}, err
	}
	if !p.atEnd() {
		return TaggedScopedPtr{}, errParse(p.peek().pos, "unexpected trailing input")
	}
	return expr, nil
}

// ParseAll reads every expression in source.
func ParseAll(v *MutatorView, source string) ([]TaggedScopedPtr, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	var exprs []TaggedScopedPtr
	for !p.atEnd() {
		expr, err := p.parseExpr(v)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// endPos approximates the error position when input ends early.
func (p *parser) endPos() SourcePos {
	if len(p.tokens) == 0 {
		return SourcePos{Line: 1, Col: 1}
	}
	return p.tokens[len(p.tokens)-1].pos
}

func (p *parser) parseExpr(v *MutatorView) (TaggedScopedPtr, error) {
	if p.atEnd() {
		return TaggedScopedPtr{}, errParse(p.endPos(), "unexpected end of input")
	}

	t := p.next()
	switch t.kind {
	case tokOpenParen:
		return p.parseList(v)

	case tokSymbol:
		// The word nil reads as the nil value, so a dotted chain ending
		// in nil is the same structure as the flat list.
		if t.text == "nil" {
			return v.Nil(), nil
		}
		return v.LookupSym(t.text), nil

	case tokNumber:
		n, err := v.Number(t.number)
		if err != nil {
			return TaggedScopedPtr{}, errParse(t.pos, "integer literal outside tagged range")
		}
		return n, nil

	case tokText:
		text, err := AllocText(v, t.text)
		if err != nil {
			return TaggedScopedPtr{}, err
		}
		return AsTagged(v, text), nil

	case tokQuote:
		quoted, err := p.parseExpr(v)
		if err != nil {
			return TaggedScopedPtr{}, err
		}
		inner, err := AllocPair(v, quoted, v.Nil())
		if err != nil {
			return TaggedScopedPtr{}, err
		}
		return AllocPair(v, v.LookupSym("quote"), inner)

	case tokCloseParen:
		return TaggedScopedPtr{}, errParse(t.pos, "unexpected close parenthesis")

	default:
		return TaggedScopedPtr{}, errParse(t.pos, "unexpected dot")
	}
}

// parseList reads the remainder of a list after its open paren,
// handling both proper lists and dotted pairs.
func (p *parser) parseList(v *MutatorView) (TaggedScopedPtr, error) {
	if p.atEnd() {
		return TaggedScopedPtr{}, errParse(p.endPos(), "unclosed list")
	}
	if p.peek().kind == tokCloseParen {
		p.next()
		return v.Nil(), nil
	}

	var head ScopedPtr[Pair]
	var tail ScopedPtr[Pair]

	for {
		if p.atEnd() {
			return TaggedScopedPtr{}, errParse(p.endPos(), "unclosed list")
		}

		switch p.peek().kind {
		case tokCloseParen:
			p.next()
			return AsTagged(v, head), nil

		case tokDot:
			dot := p.next()
			if tail.Get() == nil {
				return TaggedScopedPtr{}, errParse(dot.pos, "dot before any list element")
			}
			value, err := p.parseExpr(v)
			if err != nil {
				return TaggedScopedPtr{}, err
			}
			tail.Get().Dot(value)
			if p.atEnd() || p.peek().kind != tokCloseParen {
				return TaggedScopedPtr{}, errParse(dot.pos, "expected close parenthesis after dotted value")
			}
			p.next()
			return AsTagged(v, head), nil

		default:
			itemPos := p.peek().pos
			value, err := p.parseExpr(v)
			if err != nil {
				return TaggedScopedPtr{}, err
			}

			if tail.Get() == nil {
				first, err := Alloc(v, Pair{})
				if err != nil {
					return TaggedScopedPtr{}, err
				}
				first.Get().First.Set(value)
				first.Get().SetFirstPos(itemPos)
				head = first
				tail = first
			} else {
				next, err := tail.Get().Append(v, value)
				if err != nil {
					return TaggedScopedPtr{}, err
				}
				next.Get().SetFirstPos(itemPos)
				tail = next
			}
		}
	}
}
