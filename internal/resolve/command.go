package resolve

import (
	"strings"

	"github.com/vk/pipewright/internal/instance"
	"github.com/vk/pipewright/internal/schema"
)

// Input is one resolved command input.
type Input struct {
	Name       string
	Path       string
	Flag       string
	Optional   bool
	AllowEmpty bool
}

// Output is one resolved command output.
type Output struct {
	Name string
	Path string
}

// ArgPiece is one element of a resolved argument list. Exactly one field is
// set. Input pieces stay symbolic until execution time, because whether an
// optional input is present on disk is only known once upstream tasks have
// run.
type ArgPiece struct {
	Literal string
	Input   *Input
}

// Command is a fully resolved (instance, command definition) pair, ready to
// become a task.
type Command struct {
	Instance *instance.Instance
	Def      *schema.CommandDef
	Inputs   []Input
	Outputs  []Output
	Args     []ArgPiece
}

// RenderArgs produces the literal command string. present reports whether
// an input path currently exists; optional inputs that are absent are
// omitted entirely, flag included.
func (c *Command) RenderArgs(present func(path string) bool) string {
	var sb strings.Builder
	for _, piece := range c.Args {
		if piece.Input == nil {
			sb.WriteString(piece.Literal)
			continue
		}
		in := piece.Input
		if in.Optional && present != nil && !present(in.Path) {
			continue
		}
		if in.Flag != "" {
			sb.WriteString(in.Flag)
			sb.WriteByte(' ')
		}
		sb.WriteString(in.Path)
	}
	return sb.String()
}

// ResolveCommand resolves every reference of def for inst: input and output
// paths, property and variable substitutions, and the argument template.
// Inputs gated by an if_prop modifier whose property is not truthy for inst
// are dropped here and never appear on the command line.
func (r *Resolver) ResolveCommand(inst *instance.Instance, def *schema.CommandDef) (*Command, error) {
	cmd := &Command{Instance: inst, Def: def}

	for _, ref := range def.Inputs {
		if ref.IfProp != "" {
			if v, ok := inst.Property(ref.IfProp); !ok || !truthy(v) {
				continue
			}
		}
		path, err := r.FilePath(inst, ref.File)
		if err != nil {
			return nil, err
		}
		cmd.Inputs = append(cmd.Inputs, Input{
			Name:       ref.File,
			Path:       path,
			Flag:       ref.Flag,
			Optional:   ref.Optional,
			AllowEmpty: ref.AllowEmpty,
		})
	}
	// Index after the slice stops growing; ArgPiece keeps pointers into it.
	inputsByName := make(map[string]*Input, len(cmd.Inputs))
	for i := range cmd.Inputs {
		inputsByName[cmd.Inputs[i].Name] = &cmd.Inputs[i]
	}

	outputsByName := make(map[string]string)
	for _, ref := range def.Outputs {
		path, err := r.FilePath(inst, ref.File)
		if err != nil {
			return nil, err
		}
		cmd.Outputs = append(cmd.Outputs, Output{Name: ref.File, Path: path})
		outputsByName[ref.File] = path
	}

	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			cmd.Args = append(cmd.Args, ArgPiece{Literal: literal.String()})
			literal.Reset()
		}
	}

	for _, tok := range def.Args.Tokens {
		switch tok.Kind {
		case schema.TokenLiteral:
			literal.WriteString(tok.Text)
		case schema.TokenRaw:
			// Opaque to the engine; the shell interprets it at run time.
			literal.WriteString(tok.Text)
		case schema.TokenVariable:
			v, err := r.Variable(inst, tok.Text)
			if err != nil {
				return nil, err
			}
			literal.WriteString(v)
		case schema.TokenAncestor:
			v, err := r.Ancestor(inst, tok.Text)
			if err != nil {
				return nil, err
			}
			literal.WriteString(v)
		case schema.TokenProp:
			v, ok := inst.Property(tok.Text)
			if !ok {
				return nil, newError(KindUnresolvedProperty, inst.Name, tok.Text,
					"property %s is unset for instance %s and has no default", tok.Text, inst.Name)
			}
			literal.WriteString(v)
		case schema.TokenInput:
			in, ok := inputsByName[tok.Text]
			if !ok {
				// Declared but dropped by if_prop: contributes nothing.
				continue
			}
			flush()
			cmd.Args = append(cmd.Args, ArgPiece{Input: in})
		case schema.TokenOutput:
			literal.WriteString(outputsByName[tok.Text])
		}
	}
	flush()
	return cmd, nil
}

// truthy implements the if_prop convention: any value except the empty
// string, "0" and "false" enables the input.
func truthy(v string) bool {
	return v != "" && v != "0" && v != "false"
}
