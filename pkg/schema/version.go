package schema

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// VersionEntry is one (prefix, library, version) triple of a version spec.
// An empty Library denotes the standard vocabulary.
type VersionEntry struct {
	Prefix  string
	Library string
	Version string
}

// String renders the entry in its canonical form, e.g. "sc:score_1.0.0".
func (e VersionEntry) String() string {
	body := e.Version
	if e.Library != "" {
		body = e.Library + "_" + e.Version
	}
	if e.Prefix != "" {
		return e.Prefix + ":" + body
	}
	return body
}

// VersionSpec is an ordered set of version entries.
type VersionSpec struct {
	Entries []VersionEntry
}

// String returns the canonical, comma-joined representation.
func (s VersionSpec) String() string {
	parts := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

// IsZero reports whether the spec has no entries.
func (s VersionSpec) IsZero() bool {
	return len(s.Entries) == 0
}

// Prefixes returns the distinct namespace prefixes in first-seen order.
func (s VersionSpec) Prefixes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.Entries {
		if !seen[e.Prefix] {
			seen[e.Prefix] = true
			out = append(out, e.Prefix)
		}
	}
	return out
}

// Normalize canonicalizes a version spec string without validating it:
// entries are trimmed, whitespace around the prefix colon is removed,
// empty and repeated entries are dropped and the rest joined with ",".
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(raw string) string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		entry := normalizeEntry(part)
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		out = append(out, entry)
	}
	return strings.Join(out, ",")
}

// NormalizeList canonicalizes a version list such as a descriptor's
// HEDVersion array.
func NormalizeList(values []string) string {
	return Normalize(strings.Join(values, ","))
}

func normalizeEntry(part string) string {
	part = strings.TrimSpace(part)
	if part == "" {
		return ""
	}
	if i := strings.Index(part, ":"); i >= 0 {
		prefix := strings.TrimSpace(part[:i])
		body := strings.TrimSpace(part[i+1:])
		if body == "" {
			return prefix + ":"
		}
		if prefix == "" {
			return body
		}
		return prefix + ":" + body
	}
	return part
}

// ParseVersionSpec parses and validates a version spec string.
func ParseVersionSpec(raw string) (VersionSpec, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		return VersionSpec{}, fmt.Errorf("%w: empty version spec", apperrors.ErrInvalidInput)
	}

	var spec VersionSpec
	for _, part := range strings.Split(normalized, ",") {
		entry, err := parseEntry(part)
		if err != nil {
			return VersionSpec{}, err
		}
		spec.Entries = append(spec.Entries, entry)
	}
	return spec, nil
}

// MustParseVersionSpec is ParseVersionSpec for constant specs in tests and defaults.
func MustParseVersionSpec(raw string) VersionSpec {
	spec, err := ParseVersionSpec(raw)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseEntry(part string) (VersionEntry, error) {
	var entry VersionEntry
	body := part
	if i := strings.Index(part, ":"); i >= 0 {
		entry.Prefix = part[:i]
		body = part[i+1:]
		if !isPrefixName(entry.Prefix) {
			return VersionEntry{}, fmt.Errorf("%w: invalid namespace prefix %q", apperrors.ErrInvalidInput, entry.Prefix)
		}
	}

	if i := strings.LastIndex(body, "_"); i >= 0 {
		entry.Library = strings.ToLower(body[:i])
		body = body[i+1:]
	}
	if !semverPattern.MatchString(body) {
		return VersionEntry{}, fmt.Errorf("%w: invalid version %q in %q", apperrors.ErrInvalidInput, body, part)
	}
	entry.Version = body
	return entry, nil
}

func isPrefixName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
