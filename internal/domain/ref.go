package domain

import (
	"fmt"
	"strings"
)

// RefKind distinguishes the two renderer reference forms.
type RefKind int

const (
	// RefRenderer names a registered renderer directly ("greet" or "#greet").
	RefRenderer RefKind = iota
	// RefContent names a stored content item ("!welcome") whose category
	// decides the renderer.
	RefContent
)

// Ref is a parsed renderer reference. Raw strings are parsed exactly once,
// at the boundary where they arrive; sigils never leak further in.
type Ref struct {
	Kind RefKind
	Name string // renderer name or content item id, sigil stripped
}

// ParseRef classifies a raw reference string. A leading '!' marks a content
// item, a leading '#' marks a renderer; a bare name is a renderer too.
func ParseRef(raw string) (Ref, error) {
	switch {
	case strings.HasPrefix(raw, "!"):
		name := raw[1:]
		if name == "" {
			return Ref{}, fmt.Errorf("empty content reference %q: %w", raw, ErrValidation)
		}
		return Ref{Kind: RefContent, Name: name}, nil
	case strings.HasPrefix(raw, "#"):
		name := raw[1:]
		if name == "" {
			return Ref{}, fmt.Errorf("empty renderer reference %q: %w", raw, ErrValidation)
		}
		return Ref{Kind: RefRenderer, Name: name}, nil
	case raw == "":
		return Ref{}, fmt.Errorf("empty renderer reference: %w", ErrValidation)
	default:
		return Ref{Kind: RefRenderer, Name: raw}, nil
	}
}

func (r Ref) String() string {
	if r.Kind == RefContent {
		return "!" + r.Name
	}
	return "#" + r.Name
}
