package results

import "strings"

var allCategories = []Category{
	CategoryClarification,
	CategoryRelaxationRequest,
	CategoryModificationRequest,
	CategoryObservation,
	CategoryFlaw,
	CategoryDuplicate,
}

var allStatuses = []StatusMarker{
	StatusDraft,
	StatusUnderReview,
	StatusPendingClarification,
	StatusAnswerProvided,
	StatusHumanInterventionRequired,
	StatusFinalized,
}

var categorySynonyms = map[string]Category{
	"clarify":        CategoryClarification,
	"question":       CategoryClarification,
	"relaxation":     CategoryRelaxationRequest,
	"deviation":      CategoryRelaxationRequest,
	"waiver":         CategoryRelaxationRequest,
	"modification":   CategoryModificationRequest,
	"change request": CategoryModificationRequest,
	"amendment":      CategoryModificationRequest,
	"comment":        CategoryObservation,
	"remark":         CategoryObservation,
	"error":          CategoryFlaw,
	"discrepancy":    CategoryFlaw,
	"inconsistency":  CategoryFlaw,
	"repeat":         CategoryDuplicate,
	"already asked":  CategoryDuplicate,
}

var statusSynonyms = map[string]StatusMarker{
	"new":             StatusDraft,
	"open":            StatusDraft,
	"in review":       StatusUnderReview,
	"reviewing":       StatusUnderReview,
	"pending":         StatusPendingClarification,
	"awaiting vendor": StatusPendingClarification,
	"answered":        StatusAnswerProvided,
	"needs human":     StatusHumanInterventionRequired,
	"escalated":       StatusHumanInterventionRequired,
	"intervention":    StatusHumanInterventionRequired,
	"final":           StatusFinalized,
	"closed":          StatusFinalized,
	"done":            StatusFinalized,
}

// ParseCategory matches input case-insensitively against categories and their synonyms.
func ParseCategory(input string) (Category, bool) {
	normalized := normalize(input)
	if normalized == "" {
		return "", false
	}
	if cat, ok := categorySynonyms[normalized]; ok {
		return cat, true
	}
	for _, cat := range allCategories {
		if normalized == normalize(string(cat)) {
			return cat, true
		}
	}
	return "", false
}

// ParseStatus matches input case-insensitively against status markers and their synonyms.
func ParseStatus(input string) (StatusMarker, bool) {
	normalized := normalize(input)
	if normalized == "" {
		return "", false
	}
	if st, ok := statusSynonyms[normalized]; ok {
		return st, true
	}
	for _, st := range allStatuses {
		if normalized == normalize(string(st)) {
			return st, true
		}
	}
	return "", false
}

// CanonicalCategory returns the matching category or "" when unknown.
func CanonicalCategory(input string) Category {
	cat, _ := ParseCategory(input)
	return cat
}

// CanonicalStatus returns the matching status marker or Draft when unknown.
func CanonicalStatus(input string) StatusMarker {
	if st, ok := ParseStatus(input); ok {
		return st
	}
	return StatusDraft
}

// normalize lowercases and folds separators so "relaxation_request" matches "Relaxation Request".
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
