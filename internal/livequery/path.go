package livequery

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPath = errors.New("invalid collection path")

// Path names a collection. Segments alternate between collection names and
// document ids, always ending on a collection:
//
//	users/u1/trips/t1/timeline
type Path struct {
	segments []string
}

// Collection builds a Path from its segments.
func Collection(segments ...string) Path {
	return Path{segments: append([]string(nil), segments...)}
}

// ParsePath parses a slash separated collection path.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(s, "/")
	if len(segments)%2 == 0 {
		return Path{}, fmt.Errorf("%w: %q names a document", ErrInvalidPath, s)
	}
	for _, seg := range segments {
		if seg == "" {
			return Path{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, s)
		}
	}
	return Path{segments: segments}, nil
}

// Valid reports whether p is a well formed collection path.
func (p Path) Valid() bool {
	if len(p.segments)%2 == 0 {
		return false
	}
	for _, seg := range p.segments {
		if seg == "" || strings.Contains(seg, "/") {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// Name is the last segment, the collection itself.
func (p Path) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Pattern replaces document ids with "*", e.g. "users/*/trips".
func (p Path) Pattern() string {
	out := make([]string, len(p.segments))
	for i, seg := range p.segments {
		if i%2 == 1 {
			out[i] = "*"
		} else {
			out[i] = seg
		}
	}
	return strings.Join(out, "/")
}

// Param returns the document id that follows the named collection segment,
// e.g. Param("users") on users/u1/trips is "u1".
func (p Path) Param(collection string) string {
	for i := 0; i+1 < len(p.segments); i += 2 {
		if p.segments[i] == collection {
			return p.segments[i+1]
		}
	}
	return ""
}
