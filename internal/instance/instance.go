package instance

import (
	"sort"

	"github.com/vk/pipewright/internal/schema"
)

// Instance is one concrete, named occurrence of a class, with its own
// property values and a position in the instance forest.
type Instance struct {
	Name   string
	Class  *schema.ClassDef
	Parent *Instance

	// Props holds the values bound directly on this instance. Lookup
	// falls back up the parent chain and then to class defaults.
	Props map[string]string

	Children []*Instance
}

// Property resolves a property by name: the instance's own value first,
// then each ancestor's, then the declared default of the nearest class in
// the instance's class chain. The second result reports whether the name
// resolved at all.
func (i *Instance) Property(name string) (string, bool) {
	for cur := i; cur != nil; cur = cur.Parent {
		if v, ok := cur.Props[name]; ok {
			return v, true
		}
	}
	// The instance's class chain subsumes every ancestor instance's class,
	// so one walk covers all inherited defaults.
	for _, c := range ancestry(i.Class) {
		if p, ok := c.Props[name]; ok && p.HasDefault {
			return p.Default, true
		}
	}
	return "", false
}

// AncestorOfClass finds the nearest instance of exactly class in the
// parent chain, the instance itself included. Matching must be exact:
// a descendant's class chain subsumes every ancestor class, so matching
// against the chain would make any instance shadow its own ancestors.
func (i *Instance) AncestorOfClass(class string) (*Instance, bool) {
	for cur := i; cur != nil; cur = cur.Parent {
		if cur.Class.Name == class {
			return cur, true
		}
	}
	return nil, false
}

func ancestry(c *schema.ClassDef) []*schema.ClassDef {
	return c.Chain
}

// Forest is the complete set of loaded instances. Roots are instances
// whose class has no parent class.
type Forest struct {
	Roots  []*Instance
	byName map[string]*Instance
}

// Lookup finds an instance by its unique name.
func (f *Forest) Lookup(name string) (*Instance, bool) {
	inst, ok := f.byName[name]
	return inst, ok
}

// All returns every instance sorted by name, for deterministic iteration.
func (f *Forest) All() []*Instance {
	out := make([]*Instance, 0, len(f.byName))
	for _, inst := range f.byName {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Len returns the number of instances in the forest.
func (f *Forest) Len() int { return len(f.byName) }
