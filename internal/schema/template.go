package schema

import (
	"fmt"
	"strings"
)

// TokenKind discriminates the reference types a template may embed.
type TokenKind int

const (
	// TokenLiteral is plain text copied through unchanged.
	TokenLiteral TokenKind = iota
	// TokenVariable is $name: a global variable, property, directory or
	// file of the owning class chain.
	TokenVariable
	// TokenAncestor is @class: the name of the nearest ancestor instance
	// of that class.
	TokenAncestor
	// TokenInput is !{input:name}: a resolved input path, with its flag.
	TokenInput
	// TokenOutput is !{output:name}: a resolved output path.
	TokenOutput
	// TokenProp is !{prop:name}: a resolved property value.
	TokenProp
	// TokenRaw is !{raw:text}: emitted verbatim, left for the shell.
	TokenRaw
)

// Token is one element of a tokenized template.
type Token struct {
	Kind TokenKind
	Text string // reference name, or literal/raw text
}

// Template is a tokenized path or argument string. Tokenizing up front
// yields a typed reference AST, so resolution never falls back to ad hoc
// text substitution.
type Template struct {
	Source string
	Tokens []Token
}

// isIdentByte reports whether b may appear in a reference identifier.
func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// TokenizeTemplate splits src into literal, variable, ancestor and !{...}
// reference tokens.
func TokenizeTemplate(src string) (Template, error) {
	tpl := Template{Source: src}
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tpl.Tokens = append(tpl.Tokens, Token{Kind: TokenLiteral, Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(src); {
		switch {
		case src[i] == '$' || src[i] == '@':
			marker := src[i]
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			if j == i+1 {
				// A bare marker is literal text.
				literal.WriteByte(marker)
				i++
				continue
			}
			flush()
			kind := TokenVariable
			if marker == '@' {
				kind = TokenAncestor
			}
			tpl.Tokens = append(tpl.Tokens, Token{Kind: kind, Text: src[i+1 : j]})
			i = j

		case strings.HasPrefix(src[i:], "!{"):
			// Scan to the matching brace: raw text may carry shell
			// substitutions like ${VAR} with braces of their own.
			j := i + 2
			depth := 1
			for j < len(src) && depth > 0 {
				switch src[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth != 0 {
				return Template{}, fmt.Errorf("unterminated !{...} reference in %q", src)
			}
			body := src[i+2 : j-1]
			kind, name, err := parseReference(body, src)
			if err != nil {
				return Template{}, err
			}
			flush()
			tpl.Tokens = append(tpl.Tokens, Token{Kind: kind, Text: name})
			i = j

		default:
			literal.WriteByte(src[i])
			i++
		}
	}
	flush()
	return tpl, nil
}

func parseReference(body, src string) (TokenKind, string, error) {
	typ, name, ok := strings.Cut(body, ":")
	if !ok {
		return 0, "", fmt.Errorf("reference !{%s} in %q lacks a type prefix", body, src)
	}
	switch typ {
	case "input":
		return TokenInput, name, nil
	case "output":
		return TokenOutput, name, nil
	case "prop":
		return TokenProp, name, nil
	case "raw":
		return TokenRaw, name, nil
	default:
		return 0, "", fmt.Errorf("unknown reference type %q in %q", typ, src)
	}
}
