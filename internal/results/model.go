package results

import "time"

// Category is the triage class of a query.
type Category string

const (
	CategoryClarification       Category = "Clarification"
	CategoryRelaxationRequest   Category = "Relaxation Request"
	CategoryModificationRequest Category = "Modification Request"
	CategoryObservation         Category = "Observation"
	CategoryFlaw                Category = "Flaw"
	CategoryDuplicate           Category = "Duplicate"
)

// StatusMarker describes review progress of a query.
type StatusMarker string

const (
	StatusDraft                     StatusMarker = "Draft"
	StatusUnderReview               StatusMarker = "Under Review"
	StatusPendingClarification      StatusMarker = "Pending Clarification"
	StatusAnswerProvided            StatusMarker = "Answer Provided"
	StatusHumanInterventionRequired StatusMarker = "Human Intervention Required"
	StatusFinalized                 StatusMarker = "Finalized"
)

// QueryRecord is one structured question materialized from a result artifact.
type QueryRecord struct {
	ID               string       `json:"id"`
	QuestionText     string       `json:"questionText"`
	AnswerText       string       `json:"answerText"`
	VendorLabel      string       `json:"vendorLabel"`
	Category         Category     `json:"category"`
	ClauseOrSection  string       `json:"clauseOrSection"`
	InterventionFlag bool         `json:"interventionFlag"`
	InternalNote     string       `json:"internalNote"`
	StatusMarker     StatusMarker `json:"statusMarker"`
}

// Annotation is an out-of-band edit to a query record. Nil fields are left unchanged.
type Annotation struct {
	JobID            string        `json:"jobId"`
	QueryID          string        `json:"queryId"`
	AnswerText       *string       `json:"answerText,omitempty"`
	InterventionFlag *bool         `json:"interventionFlag,omitempty"`
	StatusMarker     *StatusMarker `json:"statusMarker,omitempty"`
	InternalNote     *string       `json:"internalNote,omitempty"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}
