package parse

// A Fragment is a classified span of the input query. The scanned query is
// represented as a list of fragments which, concatenated in order, reproduce
// the input exactly.
type Fragment interface {
	// String returns a representation of the fragment for debugging and
	// testing purposes.
	String() string

	// Text returns the raw query text covered by the fragment.
	Text() string
}

// Bypass represents a span of the query that holds no parameter marker and is
// passed through to the driver verbatim.
type Bypass struct {
	Chunk string
}

func (f *Bypass) String() string {
	return "Bypass[" + f.Chunk + "]"
}

func (f *Bypass) Text() string {
	return f.Chunk
}

// NamedParameter represents a named parameter marker such as ":id".
type NamedParameter struct {
	// Name is the marker name without the leading colon.
	Name string
}

func (f *NamedParameter) String() string {
	return "Named[" + f.Name + "]"
}

func (f *NamedParameter) Text() string {
	return ":" + f.Name
}

// PositionalParameter represents a positional parameter marker "?".
type PositionalParameter struct{}

func (f *PositionalParameter) String() string {
	return "Positional"
}

func (f *PositionalParameter) Text() string {
	return "?"
}
