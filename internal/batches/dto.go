package batches

import "vendorquery-backend/internal/jobs"

type batchResponse struct {
	BatchID  string     `json:"batchId"`
	Complete bool       `json:"complete"`
	Summary  Summary    `json:"summary"`
	Jobs     []jobs.Job `json:"jobs"`
}
