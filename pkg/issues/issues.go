package issues

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Code is a stable, machine-readable issue identifier.
type Code string

// Ontology addition codes.
const (
	CodeDuplicateInBatch             Code = "duplicate_in_batch"
	CodeEmptyName                    Code = "empty_name"
	CodeClassAlreadyExists           Code = "class_already_exists"
	CodeClassNameNotUppercase        Code = "class_name_not_uppercase"
	CodeSubclassNotFound             Code = "subclass_not_found"
	CodeSuperclassNotFound           Code = "superclass_not_found"
	CodeSubclassEqualsSuperclass     Code = "subclass_equals_superclass"
	CodeSubclassAlreadyHasSuperclass Code = "subclass_already_has_superclass"
	CodeCircularHierarchy            Code = "circular_class_hierarchy"
	CodeMissingSubclassRelation      Code = "missing_subclass_relation"
	CodeMultipleRoots                Code = "multiple_roots"
	CodeDisconnectedClasses          Code = "disconnected_classes"
	CodeReservedName                 Code = "reserved_name"
	CodePropertyAlreadyExists        Code = "property_already_exists"
	CodeEmptyDomain                  Code = "empty_domain"
	CodeDomainClassesNotFound        Code = "domain_classes_not_found"
	CodeEmptyRange                   Code = "empty_range"
	CodeRangeClassesNotFound         Code = "range_classes_not_found"
	CodeInvalidDataType              Code = "invalid_data_type"
	CodeInvalidCharacteristic        Code = "invalid_characteristic"
	CodeUnsupportedConcept           Code = "unsupported_concept"
)

// Stitching codes.
const (
	CodeInvalidOperation       Code = "invalid_operation"
	CodeInvalidClusterIndex    Code = "invalid_cluster_index"
	CodeUnknownClass           Code = "unknown_class"
	CodeClassNotInCluster      Code = "class_not_in_cluster"
	CodeClusterCountNotReduced Code = "cluster_count_not_reduced"
)

// Knowledge graph conformance codes.
const (
	CodeInvalidTriplet      Code = "invalid_triplet"
	CodeInvalidConfidence   Code = "invalid_confidence"
	CodeNotSnakeCase        Code = "entity_not_snake_case"
	CodeAlreadyClassified   Code = "entity_already_classified"
	CodeClassUsedAsInstance Code = "class_used_as_instance"
	CodeUnknownProperty     Code = "unknown_property"
	CodeUntypedEntity       Code = "untyped_entity"
	CodeDomainRangeMismatch Code = "domain_range_mismatch"
)

// CodeMalformedProposal reports a proposer answer that could not be decoded.
const CodeMalformedProposal Code = "malformed_proposal"

// Issue is a single validation finding. Path locates the offending element,
// e.g. "class:Dog", "relation:Dog->Animal" or "(rex, hasOwner, alice)".
type Issue struct {
	Code    Code   `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", i.Path, i.Message)
	if i.Context != "" {
		fmt.Fprintf(&b, " (context: %s)", i.Context)
	}
	if i.Hint != "" {
		fmt.Fprintf(&b, " (hint: %s)", i.Hint)
	}
	return b.String()
}

// Error carries the complete issue list of a rejected batch.
type Error struct {
	// Op names the rejected operation, e.g. "add concepts".
	Op     string
	Issues []Issue
}

func (e *Error) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", e.Op, e.Issues[0])
	}
	lines := make([]string, 0, len(e.Issues)+1)
	lines = append(lines, fmt.Sprintf("%s: %d issues", e.Op, len(e.Issues)))
	for _, i := range e.Issues {
		lines = append(lines, "- "+i.String())
	}
	return strings.Join(lines, "\n")
}

// Is implements errors.Is support for Error.
// This allows errors.Is(err, &Error{}) to work with wrapped errors.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok
}

// Has reports whether any issue carries the given code.
func (e *Error) Has(code Code) bool {
	return Has(e.Issues, code)
}

// New wraps issues into an *Error, or returns nil when there are none.
func New(op string, list []Issue) error {
	if len(list) == 0 {
		return nil
	}
	return &Error{Op: op, Issues: list}
}

// Has reports whether any issue in list carries the given code.
func Has(list []Issue, code Code) bool {
	for _, i := range list {
		if i.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the distinct codes in list, sorted.
func Codes(list []Issue) []Code {
	seen := make(map[Code]struct{})
	var out []Code
	for _, i := range list {
		if _, ok := seen[i.Code]; ok {
			continue
		}
		seen[i.Code] = struct{}{}
		out = append(out, i.Code)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Quote renders names as a comma separated list of quoted names.
func Quote(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}

// maxSuggestionDistance bounds how far a candidate may be from the unknown
// name before it is no longer offered.
const maxSuggestionDistance = 3

// Suggest returns the candidate closest to name by edit distance, or "" when
// none is close enough. Ties resolve to the lexicographically smaller name.
func Suggest(name string, candidates []string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	lowered := strings.ToLower(name)
	for _, c := range candidates {
		if c == name {
			continue
		}
		d := levenshtein.Distance(lowered, strings.ToLower(c), nil)
		if d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}

// DidYouMean formats a hint for an unresolved name, falling back to the
// given default when no candidate is close.
func DidYouMean(name string, candidates []string, fallback string) string {
	if s := Suggest(name, candidates); s != "" {
		return fmt.Sprintf("Did you mean '%s'? %s", s, fallback)
	}
	return fallback
}
