// Copyright 2026 The Cadenza Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package condition

// Recursive-descent parser with Python expression precedence:
//
//	conditional: or_expr ["if" or_expr "else" conditional]
//	or_expr:     and_expr ("or" and_expr)*
//	and_expr:    not_expr ("and" not_expr)*
//	not_expr:    "not" not_expr | comparison
//	comparison:  arith (cmp_op arith)*
//	arith:       term (("+"|"-") term)*
//	term:        factor (("*"|"/"|"%") factor)*
//	factor:      ("+"|"-") factor | atom
//	atom:        literal | list | mapping | "(" conditional ")"

type parser struct {
	toks []token
	pos  int
}

func parse(input string) (node, error) {
	toks, err := newLexer(input).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, errAt(tok.pos, "unexpected %q after expression", tok.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) matchOp(text string) bool {
	if tok := p.peek(); tok.kind == tokOp && tok.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) matchKeyword(text string) bool {
	if tok := p.peek(); tok.kind == tokKeyword && tok.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(text string) error {
	if !p.matchOp(text) {
		tok := p.peek()
		return errAt(tok.pos, "expected %q, found %q", text, tok.text)
	}
	return nil
}

func (p *parser) conditional() (node, error) {
	body, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.matchKeyword("if") {
		return body, nil
	}
	pos := body.nodePos()
	test, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.matchKeyword("else") {
		tok := p.peek()
		return nil, errAt(tok.pos, "conditional expression requires else branch")
	}
	orelse, err := p.conditional()
	if err != nil {
		return nil, err
	}
	return &conditionalNode{pos: pos, test: test, body: body, orelse: orelse}, nil
}

func (p *parser) orExpr() (node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.matchKeyword("or") {
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: left.nodePos(), op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (node, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.matchKeyword("and") {
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: left.nodePos(), op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) notExpr() (node, error) {
	if tok := p.peek(); tok.kind == tokKeyword && tok.text == "not" {
		// "not in" is handled inside comparison; a leading "not" here is
		// always boolean negation.
		p.advance()
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &unaryNode{pos: tok.pos, op: "not", operand: operand}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	left, err := p.arith()
	if err != nil {
		return nil, err
	}
	var ops []string
	var rest []node
	for {
		op, ok := p.comparisonOp()
		if !ok {
			break
		}
		right, err := p.arith()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		rest = append(rest, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &compareNode{pos: left.nodePos(), left: left, ops: ops, rest: rest}, nil
}

// comparisonOp consumes one comparison operator if present.
func (p *parser) comparisonOp() (string, bool) {
	tok := p.peek()
	if tok.kind == tokOp {
		switch tok.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.advance()
			return tok.text, true
		}
	}
	if tok.kind == tokKeyword && tok.text == "in" {
		p.advance()
		return "in", true
	}
	if tok.kind == tokKeyword && tok.text == "not" {
		// lookahead for "not in"
		if next := p.toks[p.pos+1]; next.kind == tokKeyword && next.text == "in" {
			p.advance()
			p.advance()
			return "not in", true
		}
	}
	return "", false
}

func (p *parser) arith() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: left.nodePos(), op: tok.text, left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.advance()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: left.nodePos(), op: tok.text, left: left, right: right}
	}
}

func (p *parser) factor() (node, error) {
	if tok := p.peek(); tok.kind == tokOp && (tok.text == "+" || tok.text == "-") {
		p.advance()
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &unaryNode{pos: tok.pos, op: tok.text, operand: operand}, nil
	}
	return p.atom()
}

func (p *parser) atom() (node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.advance()
		if tok.isInt {
			return &literalNode{pos: tok.pos, value: tok.ival}, nil
		}
		return &literalNode{pos: tok.pos, value: tok.num}, nil

	case tokString:
		p.advance()
		return &literalNode{pos: tok.pos, value: tok.str}, nil

	case tokKeyword:
		switch tok.text {
		case "True", "true":
			p.advance()
			return &literalNode{pos: tok.pos, value: true}, nil
		case "False", "false":
			p.advance()
			return &literalNode{pos: tok.pos, value: false}, nil
		case "None", "null":
			p.advance()
			return &literalNode{pos: tok.pos, value: nil}, nil
		}
		return nil, errAt(tok.pos, "unexpected keyword %q", tok.text)

	case tokName:
		// Name lookup is outside the grammar. Substitution has already
		// happened by the time this package runs, so any surviving
		// identifier is rejected, not resolved.
		return nil, errAt(tok.pos, "identifiers are not allowed: %q", tok.text)

	case tokOp:
		switch tok.text {
		case "(":
			p.advance()
			inner, err := p.conditional()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.listLiteral()
		case "{":
			return p.mapLiteral()
		}
	}
	return nil, errAt(tok.pos, "unexpected %q", tok.text)
}

func (p *parser) listLiteral() (node, error) {
	open := p.advance() // consume "["
	n := &listNode{pos: open.pos}
	if p.matchOp("]") {
		return n, nil
	}
	for {
		elem, err := p.conditional()
		if err != nil {
			return nil, err
		}
		n.elems = append(n.elems, elem)
		if p.matchOp(",") {
			if p.matchOp("]") { // trailing comma
				return n, nil
			}
			continue
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return n, nil
	}
}

func (p *parser) mapLiteral() (node, error) {
	open := p.advance() // consume "{"
	n := &mapNode{pos: open.pos}
	if p.matchOp("}") {
		return n, nil
	}
	for {
		key, err := p.conditional()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		value, err := p.conditional()
		if err != nil {
			return nil, err
		}
		n.keys = append(n.keys, key)
		n.values = append(n.values, value)
		if p.matchOp(",") {
			if p.matchOp("}") { // trailing comma
				return n, nil
			}
			continue
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return n, nil
	}
}
