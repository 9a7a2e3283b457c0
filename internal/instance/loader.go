package instance

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/schema"
)

// Load reads an instantiation source into a Forest. The format is chosen
// by extension: .yaml/.yml selects the structured template format, anything
// else the flat line format.
func Load(ctx context.Context, sch *schema.Schema, path string) (*Forest, error) {
	logger := ctxlog.FromContext(ctx)

	l := &loader{
		sch:    sch,
		source: path,
		forest: &Forest{byName: make(map[string]*Instance)},
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = l.loadYAML(path)
	default:
		err = l.loadFlat(path)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Instances loaded.", "source", path, "count", l.forest.Len())
	return l.forest, nil
}

type loader struct {
	sch    *schema.Schema
	source string
	forest *Forest
}

// add validates one concrete instance against the schema and links it into
// the forest. line is zero for YAML sources.
func (l *loader) add(className, name, parentName string, props map[string]string, line int) error {
	class, ok := l.sch.Class(className)
	if !ok {
		return newError(KindUndefinedClass, l.source, line,
			"instance %s references undefined class %s", name, className)
	}
	if _, exists := l.forest.byName[name]; exists {
		return newError(KindDuplicateInstance, l.source, line,
			"instance %s already defined", name)
	}

	inst := &Instance{Name: name, Class: class, Props: props}
	if inst.Props == nil {
		inst.Props = make(map[string]string)
	}

	// Structural consistency: the parent instance's class must be exactly
	// the class's parent class, so the forest mirrors the hierarchy.
	switch {
	case class.Parent == "" && parentName != "":
		return newError(KindUndefinedParent, l.source, line,
			"instance %s of root class %s cannot have a parent", name, className)
	case class.Parent != "":
		if parentName == "" {
			return newError(KindUndefinedParent, l.source, line,
				"instance %s of class %s requires a parent of class %s", name, className, class.Parent)
		}
		parent, ok := l.forest.byName[parentName]
		if !ok {
			return newError(KindUndefinedParent, l.source, line,
				"instance %s references undefined parent instance %s", name, parentName)
		}
		if parent.Class.Name != class.Parent {
			return newError(KindUndefinedParent, l.source, line,
				"instance %s requires a parent of class %s, but %s is a %s",
				name, class.Parent, parentName, parent.Class.Name)
		}
		inst.Parent = parent
		parent.Children = append(parent.Children, inst)
	}

	for _, c := range class.Chain {
		for _, p := range c.Props {
			if !p.Required || p.HasDefault {
				continue
			}
			if _, ok := inst.Property(p.Name); !ok {
				return newError(KindMissingRequiredProperty, l.source, line,
					"instance %s is missing required property %s", name, p.Name)
			}
		}
	}

	l.forest.byName[name] = inst
	if inst.Parent == nil {
		l.forest.Roots = append(l.forest.Roots, inst)
	}
	return nil
}

// loadFlat reads the legacy one-instance-per-line format.
func (l *loader) loadFlat(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return newError(KindSyntax, path, 0, "opening instantiation file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields, err := schema.SplitFields(line)
		if err != nil {
			return newError(KindSyntax, path, lineNo, "%v", err)
		}
		if len(fields) < 2 {
			return newError(KindSyntax, path, lineNo,
				"expected '<class> <name> [key=value]...', got %q", strings.TrimSpace(line))
		}

		className, name := fields[0], fields[1]
		parentName := ""
		props := make(map[string]string)
		for _, f := range fields[2:] {
			key, val, ok := strings.Cut(f, "=")
			if !ok {
				return newError(KindSyntax, path, lineNo, "expected key=value, got %q", f)
			}
			if key == "parent" {
				parentName = val
				continue
			}
			props[key] = val
		}

		if err := l.add(className, name, parentName, props, lineNo); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return newError(KindSyntax, path, lineNo, "reading instantiation file: %v", err)
	}
	return nil
}
