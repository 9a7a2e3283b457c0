// Package cond parses and evaluates run_if predicates.
//
// A predicate is either a leaf comparison "field:op:value" (op is eq or ne)
// or a combinator "and(p1, p2, ...)" / "or(p1, p2, ...)". Combinators nest
// and short-circuit left to right. Field names resolve through the same
// property lookup rule the resolver uses; a field that does not resolve
// makes its leaf false rather than failing the run, so a class without a
// given property never satisfies a comparison on it.
package cond
