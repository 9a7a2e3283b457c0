// Package instance loads the instantiation source into a forest of
// concrete class instances.
//
// Two source formats are supported. The flat legacy format declares one
// instance per line:
//
//	<class> <name> [parent=<instance>] [key=value]...
//
// The structured YAML format declares explicit instances under classes:
// and iterative generators under templates:, where each template expands
// into one instance per item of its input sequence with ${item} (and any
// vars: keys) substituted into the name and property values.
//
// The forest must stay structurally consistent with the class hierarchy:
// an instance's parent instance always carries the instance's class's
// parent class. The loader enforces this invariant.
package instance
