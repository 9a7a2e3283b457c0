package cond

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPredicateSyntax reports a malformed run_if expression.
var ErrPredicateSyntax = errors.New("malformed run_if predicate")

// PropertySource supplies property values for leaf evaluation. It is
// implemented by instance.Instance.
type PropertySource interface {
	// Property returns the resolved value for name, and whether it
	// resolved at all.
	Property(name string) (string, bool)
}

// Predicate is a parsed run_if expression.
type Predicate interface {
	// Eval evaluates the predicate against props. It has no side effects.
	Eval(props PropertySource) bool

	// String renders the predicate back into source form.
	String() string
}

// Leaf is a single "field:op:value" comparison.
type Leaf struct {
	Field string
	Op    string // "eq" or "ne"
	Value string
}

// Eval resolves Field via props and applies Op. An unresolved field
// evaluates to false: absence means the condition is not applicable.
func (l *Leaf) Eval(props PropertySource) bool {
	got, ok := props.Property(l.Field)
	if !ok {
		return false
	}
	if l.Op == "ne" {
		return got != l.Value
	}
	return got == l.Value
}

func (l *Leaf) String() string {
	return l.Field + ":" + l.Op + ":" + l.Value
}

// And is a conjunction of predicates, evaluated left to right with
// short-circuiting.
type And struct {
	Terms []Predicate
}

func (a *And) Eval(props PropertySource) bool {
	for _, t := range a.Terms {
		if !t.Eval(props) {
			return false
		}
	}
	return true
}

func (a *And) String() string { return renderCombinator("and", a.Terms) }

// Or is a disjunction of predicates, evaluated left to right with
// short-circuiting.
type Or struct {
	Terms []Predicate
}

func (o *Or) Eval(props PropertySource) bool {
	for _, t := range o.Terms {
		if t.Eval(props) {
			return true
		}
	}
	return false
}

func (o *Or) String() string { return renderCombinator("or", o.Terms) }

func renderCombinator(name string, terms []Predicate) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Parse parses a run_if expression into a Predicate tree.
func Parse(src string) (Predicate, error) {
	p := &parser{src: src}
	pred, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input at offset %d", p.pos)
	}
	return pred, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrPredicateSyntax, fmt.Sprintf(format, args...), p.src)
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) parsePredicate() (Predicate, error) {
	p.skipSpaces()
	rest := p.src[p.pos:]
	switch {
	case strings.HasPrefix(rest, "and("):
		p.pos += len("and(")
		terms, err := p.parseTerms()
		if err != nil {
			return nil, err
		}
		return &And{Terms: terms}, nil
	case strings.HasPrefix(rest, "or("):
		p.pos += len("or(")
		terms, err := p.parseTerms()
		if err != nil {
			return nil, err
		}
		return &Or{Terms: terms}, nil
	default:
		return p.parseLeaf()
	}
}

// parseTerms consumes comma-separated predicates up to the closing paren.
func (p *parser) parseTerms() ([]Predicate, error) {
	var terms []Predicate
	for {
		term, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)

		p.skipSpaces()
		if p.pos >= len(p.src) {
			return nil, p.errorf("missing closing parenthesis")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			if len(terms) == 0 {
				return nil, p.errorf("empty combinator")
			}
			return terms, nil
		default:
			return nil, p.errorf("expected ',' or ')' at offset %d", p.pos)
		}
	}
}

func (p *parser) parseLeaf() (Predicate, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(",() \t", rune(p.src[p.pos])) {
		p.pos++
	}
	raw := p.src[start:p.pos]
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return nil, p.errorf("leaf %q is not of the form field:op:value", raw)
	}
	op := parts[1]
	if op != "eq" && op != "ne" {
		return nil, p.errorf("unknown operator %q (want eq or ne)", op)
	}
	return &Leaf{Field: parts[0], Op: op, Value: parts[2]}, nil
}
