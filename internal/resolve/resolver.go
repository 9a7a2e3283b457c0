// Package resolve turns the symbolic references of the class schema into
// concrete filesystem paths and literal argument strings, one instance at a
// time.
//
// Resolution is side-effect free and memoized per (instance, file) and
// (instance, variable) pair, which both makes it idempotent and lets the
// resolver detect reference cycles: a key re-entered while still being
// resolved fails fast instead of recursing forever.
package resolve

import (
	"path/filepath"
	"strings"

	"github.com/vk/pipewright/internal/instance"
	"github.com/vk/pipewright/internal/schema"
)

// Resolver resolves references against one schema and one instance forest
// for the duration of a run.
type Resolver struct {
	sch     *schema.Schema
	baseDir string

	fileMemo map[refKey]string
	dirMemo  map[refKey]string
	active   map[refKey]bool

	// owners records which (instance, filedef) produced each resolved
	// path, to detect per-instance path collisions.
	owners map[string]refKey
}

// refKey identifies one memoizable resolution unit.
type refKey struct {
	inst *instance.Instance
	kind string // "file" or "dir"
	name string
}

// New creates a resolver rooted at baseDir; relative file and directory
// paths resolve beneath it.
func New(sch *schema.Schema, baseDir string) *Resolver {
	return &Resolver{
		sch:      sch,
		baseDir:  baseDir,
		fileMemo: make(map[refKey]string),
		dirMemo:  make(map[refKey]string),
		active:   make(map[refKey]bool),
		owners:   make(map[string]refKey),
	}
}

// FilePath resolves the named file definition for inst into an absolute
// path. The definition may live on an ancestor class, in which case the
// path is resolved against the nearest ancestor instance of that class.
func (r *Resolver) FilePath(inst *instance.Instance, name string) (string, error) {
	fd, ok := r.sch.FindFile(inst.Class.Name, name)
	if !ok {
		return "", newError(KindUnknownReference, inst.Name, name,
			"no file %s on class %s or its ancestors", name, inst.Class.Name)
	}
	owner, ok := inst.AncestorOfClass(fd.Class)
	if !ok {
		return "", newError(KindNoSuchAncestor, inst.Name, name,
			"file %s belongs to class %s, which has no instance in the parent chain", name, fd.Class)
	}

	key := refKey{inst: owner, kind: "file", name: name}
	if path, ok := r.fileMemo[key]; ok {
		return path, nil
	}
	if r.active[key] {
		return "", newError(KindCycle, owner.Name, name,
			"file %s participates in a reference cycle", name)
	}
	r.active[key] = true
	defer delete(r.active, key)

	raw, err := r.expandPath(owner, fd.Path)
	if err != nil {
		return "", err
	}
	path := r.absolute(raw)

	if prev, taken := r.owners[path]; taken && prev != key {
		if prev.inst == owner {
			return "", newError(KindPathCollision, owner.Name, name,
				"files %s and %s both resolve to %s", prev.name, name, path)
		}
	} else {
		r.owners[path] = key
	}

	r.fileMemo[key] = path
	return path, nil
}

// DirPath resolves the named directory definition for inst into an
// absolute path, with the same ancestor rule as FilePath.
func (r *Resolver) DirPath(inst *instance.Instance, name string) (string, error) {
	dd, ok := r.sch.FindDir(inst.Class.Name, name)
	if !ok {
		return "", newError(KindUnknownReference, inst.Name, name,
			"no dir %s on class %s or its ancestors", name, inst.Class.Name)
	}
	owner, ok := inst.AncestorOfClass(dd.Class)
	if !ok {
		return "", newError(KindNoSuchAncestor, inst.Name, name,
			"dir %s belongs to class %s, which has no instance in the parent chain", name, dd.Class)
	}

	key := refKey{inst: owner, kind: "dir", name: name}
	if path, ok := r.dirMemo[key]; ok {
		return path, nil
	}
	if r.active[key] {
		return "", newError(KindCycle, owner.Name, name,
			"dir %s participates in a reference cycle", name)
	}
	r.active[key] = true
	defer delete(r.active, key)

	raw, err := r.expandPath(owner, dd.Path)
	if err != nil {
		return "", err
	}
	path := r.absolute(raw)
	r.dirMemo[key] = path
	return path, nil
}

// Variable resolves a $name token: global variables first, then properties
// up the instance chain, then directory and file definitions.
func (r *Resolver) Variable(inst *instance.Instance, name string) (string, error) {
	switch name {
	case "base_dir":
		return r.baseDir, nil
	case "instance":
		return inst.Name, nil
	case "class":
		return inst.Class.Name, nil
	}
	if v, ok := inst.Property(name); ok {
		return v, nil
	}
	if _, ok := r.sch.FindDir(inst.Class.Name, name); ok {
		return r.DirPath(inst, name)
	}
	if _, ok := r.sch.FindFile(inst.Class.Name, name); ok {
		return r.FilePath(inst, name)
	}
	return "", newError(KindUnresolvedProperty, inst.Name, name,
		"$%s is neither a global, a property, nor a file or dir of class %s", name, inst.Class.Name)
}

// Ancestor resolves an @class token to the name of the nearest ancestor
// instance (inclusive) of that class.
func (r *Resolver) Ancestor(inst *instance.Instance, class string) (string, error) {
	anc, ok := inst.AncestorOfClass(class)
	if !ok {
		return "", newError(KindNoSuchAncestor, inst.Name, class,
			"no instance of class %s in the parent chain", class)
	}
	return anc.Name, nil
}

// expandPath renders a path template for inst. Path templates carry only
// literal, variable and ancestor tokens; the parser rejects the rest.
func (r *Resolver) expandPath(inst *instance.Instance, tpl schema.Template) (string, error) {
	var sb strings.Builder
	for _, tok := range tpl.Tokens {
		switch tok.Kind {
		case schema.TokenLiteral:
			sb.WriteString(tok.Text)
		case schema.TokenVariable:
			v, err := r.Variable(inst, tok.Text)
			if err != nil {
				return "", err
			}
			sb.WriteString(v)
		case schema.TokenAncestor:
			v, err := r.Ancestor(inst, tok.Text)
			if err != nil {
				return "", err
			}
			sb.WriteString(v)
		}
	}
	return sb.String(), nil
}

func (r *Resolver) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.baseDir, path)
}
