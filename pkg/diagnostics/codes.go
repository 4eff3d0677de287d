package diagnostics

import "github.com/hed-standard/hed-lsp/pkg/validator"

// Public codes produced by this package rather than by a validator.
const (
	CodeSchemaLoad         = "SCHEMA_LOAD_FAILED"
	CodeValidationInternal = "VALIDATION_INTERNAL_ERROR"
	CodeDefUnmatched       = "DEF_UNMATCHED"
	CodeDefValueMissing    = "DEF_VALUE_MISSING"
	CodeDefValueExtra      = "DEF_VALUE_EXTRA"
)

// publicCodes maps validator-internal codes to HED error codes.
var publicCodes = map[string]string{
	validator.CodeParentheses:      "PARENTHESES_MISMATCH",
	validator.CodeEmptyTag:         "TAG_EMPTY",
	validator.CodeInvalidTag:       "TAG_INVALID",
	validator.CodeInvalidExtension: "TAG_EXTENSION_INVALID",
	validator.CodeExtension:        "TAG_EXTENDED",
	validator.CodeChildRequired:    "TAG_REQUIRES_CHILD",
	validator.CodeNotUnique:        "TAG_NOT_UNIQUE",
	validator.CodeDuplicateTag:     "TAG_EXPRESSION_REPEATED",
	validator.CodeInvalidValue:     "VALUE_INVALID",
	"unitClassInvalidUnit":         "UNITS_INVALID",
	"invalidCharacter":             "CHARACTER_INVALID",
	"commaMissing":                 "COMMA_MISSING",
	"invalidParentNode":            "TAG_INVALID",
	"missingDefinition":            CodeDefUnmatched,
}

// genericCodes are placeholders some validators emit instead of a real code.
var genericCodes = map[string]bool{
	"":              true,
	"HED_ERROR":     true,
	"GENERIC_ERROR": true,
}

// PublicCode returns the HED error code for an issue: its own code when that
// is specific, else the table entry for its internal code, else the internal
// code itself.
func PublicCode(is validator.Issue) string {
	if !genericCodes[is.Code] {
		return is.Code
	}
	if code, ok := publicCodes[is.InternalCode]; ok {
		return code
	}
	return is.InternalCode
}
