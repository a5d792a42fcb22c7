// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

package compile

import (
	"database/sql"
	"errors"
	"strconv"
)

// BindingStyle is the placeholder convention accepted by a driver.
type BindingStyle int

const (
	// Positional drivers take "?" placeholders and an ordered argument list.
	Positional BindingStyle = iota
	// Named drivers take "@pN" placeholders and name-keyed arguments.
	Named
)

func (s BindingStyle) String() string {
	if s == Named {
		return "named"
	}
	return "positional"
}

// kind enumerates the scalar binding kinds plus the array wrapper.
type kind int

const (
	kindString kind = iota
	kindNull
	kindInteger
	kindBoolean
	kindBinary
	kindASCII
	kindLargeObject
	kindArray
)

var kindNames = map[kind]string{
	kindString:      "string",
	kindNull:        "null",
	kindInteger:     "integer",
	kindBoolean:     "boolean",
	kindBinary:      "binary",
	kindASCII:       "ascii",
	kindLargeObject: "large object",
	kindArray:       "array",
}

// Type is a parameter binding type tag. The compiler treats tags as opaque
// markers, it only ever distinguishes scalar tags from array tags. The zero
// value is the string binding type, the default when no tag is supplied.
type Type struct {
	kind kind
	elem kind
}

var (
	String      = Type{kind: kindString}
	Null        = Type{kind: kindNull}
	Integer     = Type{kind: kindInteger}
	Boolean     = Type{kind: kindBoolean}
	Binary      = Type{kind: kindBinary}
	ASCII       = Type{kind: kindASCII}
	LargeObject = Type{kind: kindLargeObject}
)

// Array returns the array binding type with the given element scalar type.
// Array panics if elem is itself an array type.
func Array(elem Type) Type {
	if elem.IsArray() {
		panic("internal error: array binding type cannot have an array element type")
	}
	return Type{kind: kindArray, elem: elem.kind}
}

// IsArray reports whether t is an array binding type.
func (t Type) IsArray() bool {
	return t.kind == kindArray
}

// Elem returns the element scalar type of an array binding type. For scalar
// types it returns the type itself.
func (t Type) Elem() Type {
	if t.kind != kindArray {
		return t
	}
	return Type{kind: t.elem}
}

func (t Type) String() string {
	if t.kind == kindArray {
		return "array of " + kindNames[t.elem]
	}
	return kindNames[t.kind]
}

// Parameters is the set of values supplied for one compilation. It is either
// a NamedParameters map or a PositionalParameters sequence, never both.
type Parameters interface {
	parameters()
}

// NamedParameters carries values and optional type tags keyed by parameter
// name. A value may be stored under the bare name or under a colon-prefixed
// key, the bare name is consulted first.
type NamedParameters struct {
	Values map[string]any
	Types  map[string]Type
}

func (NamedParameters) parameters() {}

// PositionalParameters carries values and optional type tags in marker order.
type PositionalParameters struct {
	Values []any
	Types  []Type
}

func (PositionalParameters) parameters() {}

// CompiledQuery is the result of a compilation: final SQL with every marker
// rewritten to the target binding style, plus the bound values and type tags
// in matching shape.
type CompiledQuery struct {
	// SQL is the rewritten query text.
	SQL string
	// Style is the binding style the query was compiled for.
	Style BindingStyle

	// Args and Types hold the bound values in placeholder order. They are
	// populated for the Positional style.
	Args  []any
	Types []Type

	// NamedArgs and NamedTypes hold the bound values keyed by the synthetic
	// names p1, p2, ... They are populated for the Named style.
	NamedArgs  map[string]any
	NamedTypes map[string]Type

	// names records the synthetic names in allocation order.
	names []string
}

// Params returns the bound values in the form database/sql expects: a plain
// ordered list for the Positional style and sql.Named values for the Named
// style.
func (q *CompiledQuery) Params() []any {
	if q.Style == Positional {
		return q.Args
	}
	params := make([]any, 0, len(q.names))
	for _, name := range q.names {
		params = append(params, sql.Named(name, q.NamedArgs[name]))
	}
	return params
}

// BoundCount returns the number of bound values.
func (q *CompiledQuery) BoundCount() int {
	if q.Style == Positional {
		return len(q.Args)
	}
	return len(q.NamedArgs)
}

var (
	// ErrStyleMismatch is raised when one query mixes named and positional
	// markers.
	ErrStyleMismatch = errors.New("cannot mix named and positional parameters")
	// ErrMissingNamedParameter is raised when a named marker has no supplied
	// value.
	ErrMissingNamedParameter = errors.New("missing named parameter")
	// ErrMissingPositionalParameter is raised when a positional marker has no
	// supplied value.
	ErrMissingPositionalParameter = errors.New("missing positional parameter")
	// ErrArrayBindingType is raised when an array value is bound under a
	// scalar tag, or a scalar value under an array tag.
	ErrArrayBindingType = errors.New("array binding type mismatch")
)

// syntheticName returns the n-th synthetic parameter name, counting from 1.
func syntheticName(n int) string {
	return "p" + strconv.Itoa(n)
}
