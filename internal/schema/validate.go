package schema

// validate runs the whole-schema checks that cannot be done statement by
// statement: parent cycles introduced by overrides, and every symbolic
// reference inside a template. Validation happens after all statements so
// member definitions may reference each other regardless of order.
func (b *schemaBuilder) validate() error {
	if err := b.checkParentCycles(); err != nil {
		return err
	}
	for _, class := range b.schema.Classes {
		class.Chain = b.schema.Ancestry(class.Name)
	}
	for _, mp := range b.positions {
		class := b.schema.Classes[mp.class]
		var err error
		switch mp.kind {
		case "dir":
			err = b.checkPathTemplate(class.Dirs[mp.name].Path, mp)
		case "file":
			err = b.checkPathTemplate(class.Files[mp.name].Path, mp)
		case "cmd":
			err = b.checkCommand(class.Cmds[mp.name], mp)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// checkParentCycles walks every parent chain. Statement-time checks require
// parents to be previously defined, but a later override can still bend a
// chain back on itself.
func (b *schemaBuilder) checkParentCycles() error {
	for name, class := range b.schema.Classes {
		seen := map[string]bool{name: true}
		for cur := class.Parent; cur != ""; {
			if seen[cur] {
				return newParseError(KindCyclicParent, "", 0,
					"class %s participates in a parent cycle through %s", name, cur)
			}
			seen[cur] = true
			next, ok := b.schema.Classes[cur]
			if !ok {
				return newParseError(KindUnknownReference, "", 0,
					"class %s references undefined parent %s", name, cur)
			}
			cur = next.Parent
		}
	}
	return nil
}

// checkPathTemplate validates a dir/file path template. Paths may use
// variables and ancestor references; input/output/prop/raw references are
// command-argument constructs.
func (b *schemaBuilder) checkPathTemplate(tpl Template, mp memberPos) error {
	for _, tok := range tpl.Tokens {
		switch tok.Kind {
		case TokenLiteral:
		case TokenVariable:
			if err := b.checkVariable(mp.class, tok.Text, mp); err != nil {
				return err
			}
		case TokenAncestor:
			if err := b.checkAncestor(mp.class, tok.Text, mp); err != nil {
				return err
			}
		default:
			return newParseError(KindSyntax, mp.pos.file, mp.pos.line,
				"%s %s: !{...} references are only valid in command arguments", mp.kind, mp.name)
		}
	}
	return nil
}

func (b *schemaBuilder) checkCommand(cmd *CommandDef, mp memberPos) error {
	inputs := make(map[string]bool, len(cmd.Inputs))
	for _, in := range cmd.Inputs {
		if _, ok := b.schema.FindFile(mp.class, in.File); !ok {
			return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
				"cmd %s: input %s is not a file of class %s or its ancestors", mp.name, in.File, mp.class)
		}
		inputs[in.File] = true
	}
	outputs := make(map[string]bool, len(cmd.Outputs))
	for _, out := range cmd.Outputs {
		if _, ok := b.schema.FindFile(mp.class, out.File); !ok {
			return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
				"cmd %s: output %s is not a file of class %s or its ancestors", mp.name, out.File, mp.class)
		}
		outputs[out.File] = true
	}

	for _, tok := range cmd.Args.Tokens {
		switch tok.Kind {
		case TokenLiteral, TokenRaw:
		case TokenVariable:
			if err := b.checkVariable(mp.class, tok.Text, mp); err != nil {
				return err
			}
		case TokenAncestor:
			if err := b.checkAncestor(mp.class, tok.Text, mp); err != nil {
				return err
			}
		case TokenInput:
			if !inputs[tok.Text] {
				return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
					"cmd %s references undeclared input %s", mp.name, tok.Text)
			}
		case TokenOutput:
			if !outputs[tok.Text] {
				return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
					"cmd %s references undeclared output %s", mp.name, tok.Text)
			}
		case TokenProp:
			if _, ok := b.schema.FindProp(mp.class, tok.Text); !ok {
				return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
					"cmd %s references undeclared property %s", mp.name, tok.Text)
			}
		}
	}
	return nil
}

// checkVariable verifies that a $name is a global variable, or a
// property, directory or file of the owning class chain.
func (b *schemaBuilder) checkVariable(class, name string, mp memberPos) error {
	if GlobalVariables[name] {
		return nil
	}
	if _, ok := b.schema.FindProp(class, name); ok {
		return nil
	}
	if _, ok := b.schema.FindDir(class, name); ok {
		return nil
	}
	if _, ok := b.schema.FindFile(class, name); ok {
		return nil
	}
	return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
		"%s %s references unknown variable $%s", mp.kind, mp.name, name)
}

func (b *schemaBuilder) checkAncestor(class, ancestor string, mp memberPos) error {
	if _, ok := b.schema.Classes[ancestor]; !ok {
		return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
			"%s %s references undefined class @%s", mp.kind, mp.name, ancestor)
	}
	if !b.schema.IsAncestor(class, ancestor) {
		return newParseError(KindUnknownReference, mp.pos.file, mp.pos.line,
			"%s %s: @%s is not an ancestor of class %s", mp.kind, mp.name, ancestor, class)
	}
	return nil
}
