// Package schema parses the declarative pipeline model into an immutable
// class schema.
//
// The model source is a line-oriented statement format:
//
//	class <name> [parent=<class>] [disp="<label>"]
//	prop  <class> <name> [default=<value>] [required] [disp="<label>"]
//	dir   <class> <name> path="<template>"
//	file  <class> <name> path="<template>" [disp="<label>"] [table] [sortable]
//	cmd   <class> <name> [local|short|long] [in=<spec>]... [out=<filedef>]...
//	      [run_if="<predicate>"] args="<template>"
//
// '#' starts a comment, a trailing backslash continues a statement on the
// next line, and '!include <path>' splices another model file in place,
// depth first. Definitions later in the spliced stream override earlier
// ones of the same name, which lets a site-local file refine a shared one;
// duplicates within a single file are rejected.
//
// Path and argument templates are tokenized into a typed reference AST
// (see Template) at parse time, so every symbolic reference is validated
// against the schema before any instance exists.
package schema
