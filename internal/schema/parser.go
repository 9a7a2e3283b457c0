package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/pipewright/internal/cond"
	"github.com/vk/pipewright/internal/ctxlog"
)

// GlobalVariables are the variable names resolvable in any template without
// a property or directory declaration backing them.
var GlobalVariables = map[string]bool{
	"base_dir": true, // run base directory
	"instance": true, // current instance name
	"class":    true, // current instance class name
}

// Parse reads one or more root model files into a validated Schema. Roots
// are processed in order, so later files may override definitions from
// earlier ones the same way !include composition does.
func Parse(ctx context.Context, paths ...string) (*Schema, error) {
	logger := ctxlog.FromContext(ctx)

	var stmts []statement
	for _, path := range paths {
		s, err := scanFile(path, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	logger.Debug("Model statements scanned.", "files", len(paths), "statements", len(stmts))

	b := &schemaBuilder{
		schema: &Schema{Classes: make(map[string]*ClassDef)},
		origin: make(map[string]string),
	}
	for _, stmt := range stmts {
		if err := b.dispatch(stmt); err != nil {
			return nil, err
		}
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Model parsed and validated.", "classes", len(b.schema.Classes))
	return b.schema, nil
}

// schemaBuilder accumulates definitions statement by statement. origin maps
// a definition key to the file that declared it, so a re-declaration in the
// same file is a duplicate while one from another file is an override.
type schemaBuilder struct {
	schema    *Schema
	origin    map[string]string
	positions []memberPos
}

// defPos ties a member definition back to its source for validation errors.
type defPos struct {
	file string
	line int
}

// memberPos records where each member definition came from, so the
// end-of-parse validation pass can report exact locations.
type memberPos struct {
	kind  string // "dir", "file" or "cmd"
	class string
	name  string
	pos   defPos
}

func (b *schemaBuilder) dispatch(stmt statement) error {
	switch stmt.fields[0] {
	case "class":
		return b.addClass(stmt)
	case "prop":
		return b.addProp(stmt)
	case "dir":
		return b.addDir(stmt)
	case "file":
		return b.addFile(stmt)
	case "cmd":
		return b.addCmd(stmt)
	default:
		return newParseError(KindSyntax, stmt.file, stmt.line,
			"unknown statement %q", stmt.fields[0])
	}
}

// checkDuplicate enforces the override-vs-duplicate rule for key.
func (b *schemaBuilder) checkDuplicate(key string, stmt statement, what string) error {
	if prev, ok := b.origin[key]; ok && prev == stmt.file {
		return newParseError(KindDuplicateDefinition, stmt.file, stmt.line,
			"%s already defined in this file", what)
	}
	b.origin[key] = stmt.file
	return nil
}

func (b *schemaBuilder) addClass(stmt statement) error {
	if len(stmt.fields) < 2 || strings.Contains(stmt.fields[1], "=") {
		return newParseError(KindSyntax, stmt.file, stmt.line, "class requires a name")
	}
	name := stmt.fields[1]
	if err := b.checkDuplicate("class/"+name, stmt, "class "+name); err != nil {
		return err
	}

	parent, display := "", ""
	for _, f := range stmt.fields[2:] {
		key, val, hasVal := strings.Cut(f, "=")
		switch {
		case key == "parent" && hasVal:
			parent = val
		case key == "disp" && hasVal:
			display = val
		default:
			return newParseError(KindSyntax, stmt.file, stmt.line,
				"unknown class option %q", f)
		}
	}

	if parent != "" {
		if parent == name {
			return newParseError(KindCyclicParent, stmt.file, stmt.line,
				"class %s cannot be its own parent", name)
		}
		if _, ok := b.schema.Classes[parent]; !ok {
			return newParseError(KindUnknownReference, stmt.file, stmt.line,
				"class %s references undefined parent %s", name, parent)
		}
	}

	if existing, ok := b.schema.Classes[name]; ok {
		// Override: reposition the class, keep its members.
		existing.Parent = parent
		if display != "" {
			existing.Display = display
		}
		return nil
	}
	b.schema.Classes[name] = &ClassDef{
		Name:    name,
		Parent:  parent,
		Display: display,
		Props:   make(map[string]*PropDef),
		Files:   make(map[string]*FileDef),
		Dirs:    make(map[string]*DirDef),
		Cmds:    make(map[string]*CommandDef),
	}
	b.schema.Order = append(b.schema.Order, name)
	return nil
}

// memberHeader validates the common "<stmt> <class> <name>" prefix.
func (b *schemaBuilder) memberHeader(stmt statement) (*ClassDef, string, error) {
	if len(stmt.fields) < 3 {
		return nil, "", newParseError(KindSyntax, stmt.file, stmt.line,
			"%s requires a class and a name", stmt.fields[0])
	}
	class, ok := b.schema.Classes[stmt.fields[1]]
	if !ok {
		return nil, "", newParseError(KindUnknownReference, stmt.file, stmt.line,
			"%s %s references undefined class %s", stmt.fields[0], stmt.fields[2], stmt.fields[1])
	}
	return class, stmt.fields[2], nil
}

func (b *schemaBuilder) addProp(stmt statement) error {
	class, name, err := b.memberHeader(stmt)
	if err != nil {
		return err
	}
	if err := b.checkDuplicate("prop/"+class.Name+"/"+name, stmt, "prop "+name); err != nil {
		return err
	}

	def := &PropDef{Class: class.Name, Name: name}
	for _, f := range stmt.fields[3:] {
		key, val, hasVal := strings.Cut(f, "=")
		switch {
		case key == "default" && hasVal:
			def.Default = val
			def.HasDefault = true
		case key == "disp" && hasVal:
			def.Display = val
		case f == "required":
			def.Required = true
		default:
			return newParseError(KindSyntax, stmt.file, stmt.line,
				"unknown prop option %q", f)
		}
	}
	class.Props[name] = def
	return nil
}

func (b *schemaBuilder) addDir(stmt statement) error {
	class, name, err := b.memberHeader(stmt)
	if err != nil {
		return err
	}
	if err := b.checkDuplicate("dir/"+class.Name+"/"+name, stmt, "dir "+name); err != nil {
		return err
	}

	def := &DirDef{Class: class.Name, Name: name}
	var havePath bool
	for _, f := range stmt.fields[3:] {
		key, val, hasVal := strings.Cut(f, "=")
		if key == "path" && hasVal {
			tpl, err := TokenizeTemplate(val)
			if err != nil {
				return newParseError(KindSyntax, stmt.file, stmt.line, "%v", err)
			}
			def.Path = tpl
			havePath = true
			continue
		}
		return newParseError(KindSyntax, stmt.file, stmt.line, "unknown dir option %q", f)
	}
	if !havePath {
		return newParseError(KindSyntax, stmt.file, stmt.line, "dir %s requires path=", name)
	}
	class.Dirs[name] = def
	b.positions = append(b.positions, memberPos{kind: "dir", class: class.Name, name: name, pos: defPos{stmt.file, stmt.line}})
	return nil
}

func (b *schemaBuilder) addFile(stmt statement) error {
	class, name, err := b.memberHeader(stmt)
	if err != nil {
		return err
	}
	if err := b.checkDuplicate("file/"+class.Name+"/"+name, stmt, "file "+name); err != nil {
		return err
	}

	def := &FileDef{Class: class.Name, Name: name}
	var havePath bool
	for _, f := range stmt.fields[3:] {
		key, val, hasVal := strings.Cut(f, "=")
		switch {
		case key == "path" && hasVal:
			tpl, err := TokenizeTemplate(val)
			if err != nil {
				return newParseError(KindSyntax, stmt.file, stmt.line, "%v", err)
			}
			def.Path = tpl
			havePath = true
		case key == "disp" && hasVal:
			def.Display = val
		case f == "table":
			def.Table = true
		case f == "sortable":
			def.Sortable = true
		default:
			return newParseError(KindSyntax, stmt.file, stmt.line,
				"unknown file option %q", f)
		}
	}
	if !havePath {
		return newParseError(KindSyntax, stmt.file, stmt.line, "file %s requires path=", name)
	}
	class.Files[name] = def
	b.positions = append(b.positions, memberPos{kind: "file", class: class.Name, name: name, pos: defPos{stmt.file, stmt.line}})
	return nil
}

func (b *schemaBuilder) addCmd(stmt statement) error {
	class, name, err := b.memberHeader(stmt)
	if err != nil {
		return err
	}
	if err := b.checkDuplicate("cmd/"+class.Name+"/"+name, stmt, "cmd "+name); err != nil {
		return err
	}

	def := &CommandDef{Class: class.Name, Name: name, Kind: ExecShort}
	var haveArgs bool
	for _, f := range stmt.fields[3:] {
		key, val, hasVal := strings.Cut(f, "=")
		switch {
		case f == "local" || f == "short" || f == "long":
			def.Kind = ExecKind(f)
		case key == "in" && hasVal:
			in, err := parseInputSpec(val)
			if err != nil {
				return newParseError(KindSyntax, stmt.file, stmt.line, "%v", err)
			}
			def.Inputs = append(def.Inputs, in)
		case key == "out" && hasVal:
			def.Outputs = append(def.Outputs, OutputRef{File: val})
		case key == "run_if" && hasVal:
			pred, err := cond.Parse(val)
			if err != nil {
				return newParseError(KindSyntax, stmt.file, stmt.line, "%v", err)
			}
			def.RunIf = pred
			def.RunIfSrc = val
		case key == "args" && hasVal:
			tpl, err := TokenizeTemplate(val)
			if err != nil {
				return newParseError(KindSyntax, stmt.file, stmt.line, "%v", err)
			}
			def.Args = tpl
			haveArgs = true
		default:
			return newParseError(KindSyntax, stmt.file, stmt.line,
				"unknown cmd option %q", f)
		}
	}
	if !haveArgs {
		return newParseError(KindSyntax, stmt.file, stmt.line, "cmd %s requires args=", name)
	}

	if _, ok := class.Cmds[name]; !ok {
		class.CmdOrder = append(class.CmdOrder, name)
	}
	class.Cmds[name] = def
	b.positions = append(b.positions, memberPos{kind: "cmd", class: class.Name, name: name, pos: defPos{stmt.file, stmt.line}})
	return nil
}

// parseInputSpec parses "<filedef>[:<flag>][,optional][,allow_empty][,if_prop=<p>]".
func parseInputSpec(spec string) (InputRef, error) {
	parts := strings.Split(spec, ",")
	fileAndFlag := parts[0]

	var in InputRef
	in.File, in.Flag, _ = cutref(fileAndFlag)
	if in.File == "" {
		return in, errInputSpec(spec, "missing file name")
	}

	for _, mod := range parts[1:] {
		key, val, hasVal := strings.Cut(mod, "=")
		switch {
		case mod == "optional":
			in.Optional = true
		case mod == "allow_empty":
			in.AllowEmpty = true
		case key == "if_prop" && hasVal:
			in.IfProp = val
		default:
			return in, errInputSpec(spec, "unknown modifier "+mod)
		}
	}
	return in, nil
}

func cutref(s string) (name, flag string, hasFlag bool) {
	name, flag, hasFlag = strings.Cut(s, ":")
	return
}

func errInputSpec(spec, msg string) error {
	return fmt.Errorf("input spec %q: %s", spec, msg)
}
