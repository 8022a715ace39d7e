package syntax

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errEmptyLiteral = errors.New("empty literal")

// ValueKind classifies a literal.
type ValueKind uint8

const (
	ValueInteger ValueKind = iota
	ValueFloat
	ValuePath
	ValueURI
)

// Anchor says what a path literal is relative to.
type Anchor uint8

const (
	// AnchorRelative paths (./a, ../a, a/b) resolve against the directory of
	// the file containing them.
	AnchorRelative Anchor = iota
	// AnchorAbsolute paths start with a slash.
	AnchorAbsolute
	// AnchorHome paths start with ~/.
	AnchorHome
	// AnchorStore paths are search-path lookups such as <nixpkgs>.
	AnchorStore
)

func (a Anchor) String() string {
	switch a {
	case AnchorRelative:
		return "relative"
	case AnchorAbsolute:
		return "absolute"
	case AnchorHome:
		return "home"
	case AnchorStore:
		return "store"
	}
	return fmt.Sprintf("Anchor(%d)", uint8(a))
}

// Value is a decoded literal.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	// Path holds the path without its anchor marker: "./a/b" stays as is,
	// "~/a" becomes "a", "<nixpkgs/lib>" becomes "nixpkgs/lib".
	Path   string
	Anchor Anchor
	URI    string
}

// ParseValue decodes the text of a literal token of the given kind.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case TokenInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer %q: %w", text, err)
		}
		return Value{Kind: ValueInteger, Int: n}, nil
	case TokenFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid float %q: %w", text, err)
		}
		return Value{Kind: ValueFloat, Float: f}, nil
	case TokenURI:
		return Value{Kind: ValueURI, URI: text}, nil
	case TokenSearchPath:
		return Value{
			Kind:   ValuePath,
			Anchor: AnchorStore,
			Path:   strings.TrimSuffix(strings.TrimPrefix(text, "<"), ">"),
		}, nil
	case TokenPath:
		switch {
		case strings.HasPrefix(text, "~/"):
			return Value{Kind: ValuePath, Anchor: AnchorHome, Path: text[2:]}, nil
		case strings.HasPrefix(text, "/"):
			return Value{Kind: ValuePath, Anchor: AnchorAbsolute, Path: text}, nil
		default:
			return Value{Kind: ValuePath, Anchor: AnchorRelative, Path: text}, nil
		}
	}
	return Value{}, fmt.Errorf("%s is not a literal", kind)
}
