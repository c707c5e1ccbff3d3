// Package nodepath holds the pure path functions shared by the tree
// engine and the traversal resolver.
//
// Paths are materialized, absolute and slash separated. The root of a
// tree is always "/" and a child's path is its parent's path joined with
// the child's name.
package nodepath

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// Separator between path segments.
	Separator = "/"
	// MaxPathLength is the longest materialized path a node may carry, in characters.
	MaxPathLength = 1000
	// MaxNameLength is the longest name a node may carry, in characters.
	MaxNameLength = 250
)

var (
	ErrInvalidName = errors.New("invalid node name")
	ErrPathTooLong = errors.New("path too long")
	ErrNotAbsolute = errors.New("path must start with '/'")
)

// Join joins segments onto base the way POSIX path joining does: an
// absolute segment discards everything before it, otherwise exactly one
// separator is placed between parts.
func Join(base string, segments ...string) string {
	result := base
	for _, seg := range segments {
		switch {
		case strings.HasPrefix(seg, Separator):
			result = seg
		case result == "" || strings.HasSuffix(result, Separator):
			result += seg
		default:
			result += Separator + seg
		}
	}
	return result
}

// Decompose resolves path against basepath and returns the full target
// path along with every ancestor path from "/" down to the target,
// inclusive and shortest first.
//
//	Decompose("/", "")         -> "/",        ["/"]
//	Decompose("/", "foo/bar/") -> "/foo/bar", ["/", "/foo", "/foo/bar"]
//	Decompose("/foo", "bar")   -> "/foo/bar", ["/", "/foo", "/foo/bar"]
func Decompose(basepath, path string) (string, []string) {
	rel := strings.Join(Segments(path), Separator)

	target := basepath
	if rel != "" {
		target = Join(basepath, rel)
	}
	if target == Separator {
		return target, []string{Separator}
	}

	parts := strings.Split(target, Separator)
	probes := make([]string, len(parts))
	for i := range parts {
		probes[i] = strings.Join(parts[:i+1], Separator)
	}
	probes[0] = Separator
	return target, probes
}

// Segments splits path into its non-empty segments.
func Segments(path string) []string {
	raw := strings.Split(path, Separator)
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Clean validates an absolute configuration path such as a basepath and
// strips its trailing slash unless it is the root.
func Clean(path string) (string, error) {
	if !strings.HasPrefix(path, Separator) {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, path)
	}
	if path != Separator {
		path = strings.TrimRight(path, Separator)
		if path == "" {
			path = Separator
		}
	}
	return path, nil
}

// Rebase translates path from the from coordinate space into the to
// coordinate space. Both from and to must be cleaned absolute paths.
func Rebase(path, from, to string) string {
	rel := path
	if from != Separator {
		rel = strings.TrimPrefix(path, from)
	}
	rel = strings.TrimPrefix(rel, Separator)
	if rel == "" {
		return to
	}
	return Join(to, rel)
}

// ValidateName trims surrounding whitespace from name and rejects names
// that are empty, too long or contain the separator.
func ValidateName(name string) (string, error) {
	if strings.Contains(name, Separator) {
		return "", fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

// CheckLength fails with ErrPathTooLong when path exceeds MaxPathLength.
func CheckLength(path string) error {
	if n := utf8.RuneCountInString(path); n > MaxPathLength {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrPathTooLong, n, MaxPathLength)
	}
	return nil
}

// FirstSegment splits a relative fragment into its first segment and the rest.
func FirstSegment(fragment string) (string, string) {
	fragment = strings.TrimPrefix(fragment, Separator)
	head, rest, _ := strings.Cut(fragment, Separator)
	return head, rest
}
