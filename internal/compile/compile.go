// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package compile rewrites queries holding named or positional parameter
// markers into the binding style of the target driver, resolving the supplied
// values and type tags along the way.
package compile

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/devscast/datazen/internal/parse"
)

// Compile scans the query, resolves every parameter marker against params and
// rewrites the markers into the target binding style. It is a pure function
// of its inputs. It fails with a lexical error from the scanner, a style
// mismatch error, a missing parameter error or an array binding type error.
func Compile(query string, params Parameters, style BindingStyle, escape parse.Escape) (cq *CompiledQuery, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot compile query: %w", err)
		}
	}()

	sq, err := parse.NewScanner(escape).Scan(query)
	if err != nil {
		return nil, err
	}

	c := &compilation{
		params: params,
		out: &CompiledQuery{
			Style: style,
		},
	}
	if style == Named {
		c.out.NamedArgs = map[string]any{}
		c.out.NamedTypes = map[string]Type{}
	}

	for _, f := range sq.Fragments() {
		switch f := f.(type) {
		case *parse.Bypass:
			c.builder.write(f.Chunk)
		case *parse.NamedParameter:
			if err := c.setStyle(named); err != nil {
				return nil, err
			}
			val, typ, err := c.lookupNamed(f.Name)
			if err != nil {
				return nil, err
			}
			if err := c.bindValue(val, typ); err != nil {
				return nil, err
			}
		case *parse.PositionalParameter:
			if err := c.setStyle(positional); err != nil {
				return nil, err
			}
			val, typ, err := c.lookupPositional()
			if err != nil {
				return nil, err
			}
			if err := c.bindValue(val, typ); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("internal error: unknown fragment type %T", f)
		}
	}

	c.out.SQL = c.builder.getSQL()
	return c.out, nil
}

// markerStyle tracks which marker kind a compilation has committed to.
type markerStyle int

const (
	unset markerStyle = iota
	named
	positional
)

type compilation struct {
	params  Parameters
	seen    markerStyle
	builder sqlBuilder
	// posIndex is the zero-based index of the next positional marker.
	posIndex int
	// nameCount is the synthetic name counter for the named binding style.
	nameCount int
	out       *CompiledQuery
}

// setStyle establishes the marker style on the first parameter fragment and
// rejects any later fragment of the other kind.
func (c *compilation) setStyle(s markerStyle) error {
	if c.seen == unset {
		c.seen = s
		return nil
	}
	if c.seen != s {
		return ErrStyleMismatch
	}
	return nil
}

// lookupNamed resolves the value and type tag for a named marker, trying the
// bare name first and a colon-prefixed key as a fallback. The type tag
// defaults to the string binding type.
func (c *compilation) lookupNamed(name string) (any, Type, error) {
	np, ok := c.params.(NamedParameters)
	if !ok {
		return nil, Type{}, fmt.Errorf("%w %q", ErrMissingNamedParameter, name)
	}
	val, ok := np.Values[name]
	if !ok {
		val, ok = np.Values[":"+name]
	}
	if !ok {
		return nil, Type{}, fmt.Errorf("%w %q", ErrMissingNamedParameter, name)
	}
	typ, ok := np.Types[name]
	if !ok {
		typ = np.Types[":"+name]
	}
	return val, typ, nil
}

// lookupPositional resolves the value and type tag for the next positional
// marker. The type tag defaults to the string binding type.
func (c *compilation) lookupPositional() (any, Type, error) {
	i := c.posIndex
	c.posIndex++
	pp, ok := c.params.(PositionalParameters)
	if !ok || i >= len(pp.Values) {
		return nil, Type{}, fmt.Errorf("%w at index %d", ErrMissingPositionalParameter, i)
	}
	var typ Type
	if i < len(pp.Types) {
		typ = pp.Types[i]
	}
	return pp.Values[i], typ, nil
}

// bindValue appends the placeholder text for a resolved value and records the
// value and type tag. Array values expand into one placeholder per element,
// an empty array compiles to the literal NULL with nothing bound.
func (c *compilation) bindValue(val any, typ Type) error {
	elems, isArray := sequenceValues(val)
	if isArray {
		if !typ.IsArray() {
			return fmt.Errorf("%w: array value requires an array binding type, got %s", ErrArrayBindingType, typ)
		}
		if len(elems) == 0 {
			c.builder.write("NULL")
			return nil
		}
		elemType := typ.Elem()
		for i, elem := range elems {
			if i != 0 {
				c.builder.write(", ")
			}
			c.bindScalar(elem, elemType)
		}
		return nil
	}
	if typ.IsArray() {
		return fmt.Errorf("%w: %s binding type requires a sequence value", ErrArrayBindingType, typ)
	}
	c.bindScalar(val, typ)
	return nil
}

// bindScalar emits a single placeholder in the target binding style and
// records the value and type pair.
func (c *compilation) bindScalar(val any, typ Type) {
	switch c.out.Style {
	case Named:
		c.nameCount++
		name := syntheticName(c.nameCount)
		c.builder.write("@" + name)
		c.out.NamedArgs[name] = val
		c.out.NamedTypes[name] = typ
		c.out.names = append(c.out.names, name)
	default:
		c.builder.write("?")
		c.out.Args = append(c.out.Args, val)
		c.out.Types = append(c.out.Types, typ)
	}
}

// sequenceValues returns the elements of val when it is an ordered sequence
// of scalars. Byte slices are scalars, they bind as a single binary value.
func sequenceValues(val any) ([]any, bool) {
	if vals, ok := val.([]any); ok {
		return vals, true
	}
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		elems := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elems[i] = v.Index(i).Interface()
		}
		return elems, true
	}
	return nil, false
}

// sqlBuilder is used to generate the final SQL string piece by piece.
type sqlBuilder struct {
	buf bytes.Buffer
}

// write appends a piece of SQL to the builder.
func (b *sqlBuilder) write(sql string) {
	b.buf.WriteString(sql)
}

// getSQL returns the generated SQL string.
func (b *sqlBuilder) getSQL() string {
	return b.buf.String()
}
