package results

// Filter selects query records. Zero fields match everything.
type Filter struct {
	Category     Category
	Status       StatusMarker
	Intervention *bool
}

// Apply returns the records matching f, in their original order.
func (f Filter) Apply(records []QueryRecord) []QueryRecord {
	out := make([]QueryRecord, 0, len(records))
	for _, r := range records {
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.Status != "" && r.StatusMarker != f.Status {
			continue
		}
		if f.Intervention != nil && r.InterventionFlag != *f.Intervention {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Overlay applies annotations to records by query ID and returns a new slice.
func Overlay(records []QueryRecord, annotations map[string]Annotation) []QueryRecord {
	out := make([]QueryRecord, len(records))
	copy(out, records)
	for i := range out {
		a, ok := annotations[out[i].ID]
		if !ok {
			continue
		}
		if a.AnswerText != nil {
			out[i].AnswerText = *a.AnswerText
		}
		if a.InterventionFlag != nil {
			out[i].InterventionFlag = *a.InterventionFlag
		}
		if a.StatusMarker != nil {
			out[i].StatusMarker = *a.StatusMarker
		}
		if a.InternalNote != nil {
			out[i].InternalNote = *a.InternalNote
		}
	}
	return out
}
