package schema

import "github.com/vk/pipewright/internal/cond"

// ExecKind tags how a command expects to be executed. The engine does not
// interpret it; it is passed through to the runner, which may hand long
// commands to a job-submission backend.
type ExecKind string

const (
	ExecLocal ExecKind = "local"
	ExecShort ExecKind = "short"
	ExecLong  ExecKind = "long"
)

// ClassDef is one node type in the class hierarchy. Immutable after
// parsing.
type ClassDef struct {
	Name    string
	Parent  string // empty for root classes
	Display string

	Props map[string]*PropDef
	Files map[string]*FileDef
	Dirs  map[string]*DirDef
	Cmds  map[string]*CommandDef

	// CmdOrder preserves declaration order so graph construction is
	// deterministic.
	CmdOrder []string

	// Chain is the class and its ancestors, nearest first. Populated once
	// validation proves the hierarchy acyclic, so instances can walk their
	// class chain without a schema handle.
	Chain []*ClassDef
}

// PropDef declares a scalar property on a class.
type PropDef struct {
	Class      string
	Name       string
	Display    string
	Default    string
	HasDefault bool
	Required   bool
}

// DirDef declares a directory path template on a class. File templates
// reference directories by name as variables.
type DirDef struct {
	Class string
	Name  string
	Path  Template
}

// FileDef declares a typed data artifact. One FileDef plus one concrete
// instance yields exactly one filesystem path.
type FileDef struct {
	Class    string
	Name     string
	Path     Template
	Display  string
	Table    bool
	Sortable bool
}

// InputRef is one declared input of a command.
type InputRef struct {
	File       string // FileDef name
	Flag       string // CLI flag emitted before the path, may be empty
	Optional   bool   // missing input is omitted from the command line
	AllowEmpty bool   // a present zero-length file counts as present
	IfProp     string // input applies only when this property is truthy
}

// OutputRef is one declared output of a command.
type OutputRef struct {
	File string
}

// CommandDef declares a shell-invoked computation step on a class. One
// command yields one task per instance of its class whose run_if holds.
type CommandDef struct {
	Class    string
	Name     string
	Kind     ExecKind
	Inputs   []InputRef
	Outputs  []OutputRef
	Args     Template
	RunIf    cond.Predicate // nil means unconditional
	RunIfSrc string
}

// Schema is the parsed class hierarchy: the output of the model parser and
// the single source of truth for definitions during a run.
type Schema struct {
	Classes map[string]*ClassDef

	// Order lists class names in definition order.
	Order []string
}

// Class looks up a class definition by name.
func (s *Schema) Class(name string) (*ClassDef, bool) {
	c, ok := s.Classes[name]
	return c, ok
}

// Ancestry returns the class and its ancestors, nearest first. The chain is
// acyclic by construction; the parser rejects parent cycles.
func (s *Schema) Ancestry(class string) []*ClassDef {
	var chain []*ClassDef
	for name := class; name != ""; {
		c, ok := s.Classes[name]
		if !ok {
			break
		}
		chain = append(chain, c)
		name = c.Parent
	}
	return chain
}

// FindProp locates a property definition on class or the nearest ancestor
// declaring it.
func (s *Schema) FindProp(class, name string) (*PropDef, bool) {
	for _, c := range s.Ancestry(class) {
		if p, ok := c.Props[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// FindFile locates a file definition on class or the nearest ancestor
// declaring it.
func (s *Schema) FindFile(class, name string) (*FileDef, bool) {
	for _, c := range s.Ancestry(class) {
		if f, ok := c.Files[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// FindDir locates a directory definition on class or the nearest ancestor
// declaring it.
func (s *Schema) FindDir(class, name string) (*DirDef, bool) {
	for _, c := range s.Ancestry(class) {
		if d, ok := c.Dirs[name]; ok {
			return d, true
		}
	}
	return nil, false
}

// CommandsFor returns the commands declared directly on class, in
// declaration order. Commands run once per instance of their declared
// class, never per descendant.
func (s *Schema) CommandsFor(class string) []*CommandDef {
	c, ok := s.Classes[class]
	if !ok {
		return nil
	}
	cmds := make([]*CommandDef, 0, len(c.CmdOrder))
	for _, name := range c.CmdOrder {
		cmds = append(cmds, c.Cmds[name])
	}
	return cmds
}

// IsAncestor reports whether ancestor appears in class's ancestry chain,
// class itself included.
func (s *Schema) IsAncestor(class, ancestor string) bool {
	for _, c := range s.Ancestry(class) {
		if c.Name == ancestor {
			return true
		}
	}
	return false
}
