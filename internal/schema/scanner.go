package schema

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// statement is one logical model statement after comment stripping, line
// continuation and include splicing, with its source location preserved for
// error reporting.
type statement struct {
	fields []string
	file   string
	line   int
}

// scanFile reads a model file into statements, splicing !include directives
// depth first at the point where they appear. active guards against include
// cycles.
func scanFile(path string, active map[string]bool) ([]statement, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newParseError(KindSyntax, path, 0, "resolving path: %v", err)
	}
	if active[abs] {
		return nil, newParseError(KindSyntax, path, 0, "include cycle through %s", path)
	}
	active[abs] = true
	defer delete(active, abs)

	f, err := os.Open(path)
	if err != nil {
		return nil, newParseError(KindSyntax, path, 0, "opening model file: %v", err)
	}
	defer f.Close()

	var stmts []statement
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	startLine := 0
	var pending strings.Builder

	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		trimmed := strings.TrimSpace(line)

		if pending.Len() == 0 {
			if trimmed == "" {
				continue
			}
			startLine = lineNo
		}

		if strings.HasSuffix(trimmed, "\\") {
			pending.WriteString(strings.TrimSuffix(trimmed, "\\"))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(trimmed)
		full := pending.String()
		pending.Reset()

		if rest, ok := strings.CutPrefix(full, "!include"); ok {
			target := strings.TrimSpace(rest)
			if target == "" {
				return nil, newParseError(KindSyntax, path, startLine, "!include requires a path")
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(path), target)
			}
			included, err := scanFile(target, active)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, included...)
			continue
		}

		fields, err := SplitFields(full)
		if err != nil {
			return nil, newParseError(KindSyntax, path, startLine, "%v", err)
		}
		stmts = append(stmts, statement{fields: fields, file: path, line: startLine})
	}
	if err := scanner.Err(); err != nil {
		return nil, newParseError(KindSyntax, path, lineNo, "reading model file: %v", err)
	}
	if pending.Len() > 0 {
		return nil, newParseError(KindSyntax, path, startLine, "dangling line continuation at end of file")
	}
	return stmts, nil
}

// stripComment removes a '#' comment unless the '#' sits inside a quoted
// value.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// SplitFields splits a statement on whitespace, honoring double quotes.
// Quotes may appear anywhere in a field, so path="a b" becomes the single
// field `path=a b`.
func SplitFields(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote := false
	fieldStarted := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			fieldStarted = true
		case (c == ' ' || c == '\t') && !inQuote:
			if fieldStarted {
				fields = append(fields, cur.String())
				cur.Reset()
				fieldStarted = false
			}
		default:
			cur.WriteByte(c)
			fieldStarted = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if fieldStarted {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
