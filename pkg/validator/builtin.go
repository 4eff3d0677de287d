package validator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// Internal codes reported by Builtin.
const (
	CodeParentheses      = "parentheses"
	CodeEmptyTag         = "emptyTagFound"
	CodeInvalidTag       = "invalidTag"
	CodeInvalidExtension = "invalidExtension"
	CodeExtension        = "extension"
	CodeChildRequired    = "childRequired"
	CodeNotUnique        = "multipleUniqueTags"
	CodeDuplicateTag     = "duplicateTag"
	CodeInvalidValue     = "valueInvalid"
)

// Builtin validates tag structure and vocabulary membership. It does not
// check units or definition semantics.
type Builtin struct{}

// NewBuiltin creates the built-in validator.
func NewBuiltin() *Builtin {
	return &Builtin{}
}

type tagToken struct {
	text  string
	start int
	end   int
	group int
}

// Validate implements Validator.
func (b *Builtin) Validate(ctx context.Context, hed string, vocab *schema.Vocabulary, flags Flags) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if vocab == nil {
		return Result{}, errors.New("validator: no vocabulary")
	}

	tags, syntax := tokenize(hed)
	res := Result{Syntax: syntax}

	seenUnique := make(map[string]bool)
	seenInGroup := make(map[string]bool)
	for _, tok := range tags {
		key := fmt.Sprintf("%d\x00%s", tok.group, strings.ToLower(tok.text))
		if seenInGroup[key] {
			res.Semantic = append(res.Semantic, Issue{
				InternalCode: CodeDuplicateTag,
				Severity:     SeverityError,
				Message:      fmt.Sprintf("Duplicate tag %q in the same group.", tok.text),
				Bounds:       &Bounds{Start: tok.start, End: tok.end},
			})
			continue
		}
		seenInGroup[key] = true

		entry, issues := checkTag(vocab, tok, flags)
		res.Semantic = append(res.Semantic, issues...)
		if entry == nil || !entry.Attributes.Unique {
			continue
		}
		name := strings.ToLower(entry.QualifiedName())
		if seenUnique[name] {
			res.Semantic = append(res.Semantic, Issue{
				InternalCode: CodeNotUnique,
				Severity:     SeverityError,
				Message:      fmt.Sprintf("Tag %q may appear only once in a string.", entry.ShortForm),
				Char:         charAt(tok.start),
			})
		}
		seenUnique[name] = true
	}
	return res, nil
}

func checkTag(vocab *schema.Vocabulary, tok tagToken, flags Flags) (*schema.TagEntry, []Issue) {
	entry, used := vocab.Resolve(tok.text)
	if entry == nil {
		return nil, []Issue{{
			InternalCode: CodeInvalidTag,
			Severity:     SeverityError,
			Message:      fmt.Sprintf("Invalid tag - %q is not in the vocabulary.", tok.text),
			Tag:          tok.text,
		}}
	}

	_, rest := schema.SplitPrefix(tok.text)
	segments := strings.Split(rest, "/")
	if used == len(segments) {
		if entry.Attributes.RequireChild {
			return entry, []Issue{{
				InternalCode: CodeChildRequired,
				Severity:     SeverityError,
				Message:      fmt.Sprintf("Tag %q requires a child.", tok.text),
				Tag:          tok.text,
			}}
		}
		return entry, nil
	}

	remainder := strings.Join(segments[used:], "/")
	bounds := &Bounds{Start: tok.end - len(remainder), End: tok.end}

	if ns := vocab.Namespace(entry.Prefix); ns != nil {
		if value := ns.ValueChild(entry); value != nil {
			return entry, checkValue(value, remainder, bounds)
		}
	}

	if !extensible(vocab, entry) {
		return entry, []Issue{{
			InternalCode: CodeInvalidExtension,
			Severity:     SeverityError,
			Message:      fmt.Sprintf("Tag %q does not allow extension %q.", entry.LongForm, remainder),
			Bounds:       bounds,
		}}
	}
	if flags.CheckForWarnings {
		return entry, []Issue{{
			InternalCode: CodeExtension,
			Severity:     SeverityWarning,
			Message:      fmt.Sprintf("Tag %q extends %q.", remainder, entry.LongForm),
			Bounds:       bounds,
		}}
	}
	return entry, nil
}

func checkValue(value *schema.TagEntry, v string, bounds *Bounds) []Issue {
	if len(value.Attributes.UnitClass) == 0 || v == schema.ValueNode {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) > 0 {
		if _, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return nil
		}
	}
	return []Issue{{
		InternalCode: CodeInvalidValue,
		Severity:     SeverityError,
		Message:      fmt.Sprintf("Value %q is not a number with optional %s units.", v, strings.Join(value.Attributes.UnitClass, "/")),
		Bounds:       bounds,
	}}
}

// extensible reports whether entry or any ancestor allows extension.
func extensible(vocab *schema.Vocabulary, entry *schema.TagEntry) bool {
	for t := entry; t != nil; {
		if t.Attributes.ExtensionAllowed {
			return true
		}
		if t.Parent == "" {
			return false
		}
		parent := t.Parent
		if t.Prefix != "" {
			parent = t.Prefix + ":" + parent
		}
		t = vocab.FindTag(parent)
	}
	return false
}

// tokenize splits s into tag tokens, tracking parenthesized groups, and
// reports structural problems.
func tokenize(s string) ([]tagToken, []Issue) {
	var (
		tags   []tagToken
		issues []Issue
		stack  []int
		groups []int
	)
	nextGroup := 1
	current := func() int {
		if len(groups) == 0 {
			return 0
		}
		return groups[len(groups)-1]
	}

	// prev is the separator before the token in progress: 0 for start of string.
	var prev byte
	prevAt := -1
	tokStart := 0

	emit := func(next byte, nextAt int) {
		start, end := tokStart, nextAt
		for start < end && isSpace(s[start]) {
			start++
		}
		for end > start && isSpace(s[end-1]) {
			end--
		}
		if start < end {
			tags = append(tags, tagToken{text: s[start:end], start: start, end: end, group: current()})
			return
		}
		if at, bad := emptyTag(prev, prevAt, next, nextAt); bad {
			issues = append(issues, Issue{
				InternalCode: CodeEmptyTag,
				Severity:     SeverityError,
				Message:      "Empty tag found.",
				Char:         charAt(at),
			})
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != ',' && c != '(' && c != ')' {
			continue
		}
		emit(c, i)
		switch c {
		case '(':
			stack = append(stack, i)
			groups = append(groups, nextGroup)
			nextGroup++
		case ')':
			if len(stack) == 0 {
				issues = append(issues, Issue{
					InternalCode: CodeParentheses,
					Severity:     SeverityError,
					Message:      "Closing parenthesis has no matching opening parenthesis.",
					Char:         charAt(i),
				})
				break
			}
			stack = stack[:len(stack)-1]
			groups = groups[:len(groups)-1]
		}
		prev, prevAt = c, i
		tokStart = i + 1
	}
	emit(0, len(s))

	for _, open := range stack {
		issues = append(issues, Issue{
			InternalCode: CodeParentheses,
			Severity:     SeverityError,
			Message:      "Opening parenthesis is never closed.",
			Char:         charAt(open),
		})
	}
	return tags, issues
}

// emptyTag decides whether an empty token between two separators is an error
// and, if so, which separator to report. A zero byte stands for either end of
// the string.
func emptyTag(prev byte, prevAt int, next byte, nextAt int) (int, bool) {
	switch {
	case next == ',' && (prev == 0 || prev == ',' || prev == '('):
		return nextAt, true
	case prev == ',' && (next == ')' || next == 0):
		return prevAt, true
	case prev == '(' && next == ')':
		return prevAt, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
