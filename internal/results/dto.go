package results

type annotationRequest struct {
	AnswerText       *string `json:"answerText"`
	InterventionFlag *bool   `json:"interventionFlag"`
	StatusMarker     *string `json:"statusMarker"`
	InternalNote     *string `json:"internalNote"`
}

type recordsResponse struct {
	JobID   string        `json:"jobId"`
	Count   int           `json:"count"`
	Records []QueryRecord `json:"records"`
}
