package diagnostics

import (
	"fmt"
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// maxSuggestions caps "did you mean" names in definition messages.
const maxSuggestions = 3

// CheckDefinitions reports Def and Def-expand references that name no
// definition, omit a required value, or pass a value to a definition that
// takes none.
func CheckDefinitions(regions []region.Region, defs []scan.Definition, pm region.PositionMapper) []Diagnostic {
	var out []Diagnostic
	for _, r := range regions {
		for _, ref := range scan.FindReferences(r.Content) {
			d, ok := checkReference(ref, defs)
			if !ok {
				continue
			}
			d.Range = r.Span(pm, ref.NameStart, ref.NameEnd)
			d.Source = Source
			d.Path = r.Path
			out = append(out, d)
		}
	}
	return out
}

func checkReference(ref scan.Reference, defs []scan.Definition) (Diagnostic, bool) {
	def, found := scan.Lookup(defs, ref.Name)
	switch {
	case !found:
		return Diagnostic{
			Severity: SeverityInformation,
			Code:     CodeDefUnmatched,
			Message:  MissingDefinitionMessage(ref.Name, defs),
		}, true
	case def.TakesValue && !ref.HasValue:
		return Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeDefValueMissing,
			Message:  fmt.Sprintf("Definition %q requires a value: %s/%s/<value>.", def.Name, ref.Marker, def.Name),
		}, true
	case !def.TakesValue && ref.HasValue:
		return Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeDefValueExtra,
			Message:  fmt.Sprintf("Definition %q takes no value but %q was given.", def.Name, ref.Value),
		}, true
	}
	return Diagnostic{}, false
}

// MissingDefinitionMessage explains an unknown definition name and suggests
// the closest known names.
func MissingDefinitionMessage(name string, defs []scan.Definition) string {
	msg := fmt.Sprintf("No definition named %q in this document.", name)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	matches := schema.RankBySimilarity(name, names, maxSuggestions)
	if len(matches) == 0 {
		return msg
	}
	suggestions := make([]string, len(matches))
	for i, m := range matches {
		suggestions[i] = m.Name
	}
	return msg + " Did you mean " + strings.Join(suggestions, ", ") + "?"
}
