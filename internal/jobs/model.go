package jobs

import "time"

// Status is the lifecycle state of a processing job.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusComplete, StatusError:
		return true
	default:
		return false
	}
}

// Job is one uploaded file's journey through the pipeline.
// Empty location strings stand for "not set".
type Job struct {
	ID                  string    `json:"id"`
	BatchID             string    `json:"batchId"`
	Position            int       `json:"position"`
	SourceFileName      string    `json:"sourceFileName"`
	ContentType         string    `json:"contentType"`
	SizeBytes           int64     `json:"sizeBytes"`
	ProcessingReference string    `json:"processingReference"`
	Status              Status    `json:"status"`
	PrerequisiteURI     string    `json:"prerequisiteUri,omitempty"`
	RawBlobLocation     string    `json:"rawBlobLocation,omitempty"`
	ResultBlobLocation  string    `json:"resultBlobLocation,omitempty"`
	QueryCount          int       `json:"queryCount"`
	LastError           string    `json:"lastError,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	// HeartbeatAt is refreshed by the process running the job's pipeline.
	HeartbeatAt time.Time `json:"heartbeatAt"`
}

// LastActivity is the later of the last transition and the last heartbeat.
func (j Job) LastActivity() time.Time {
	if j.HeartbeatAt.After(j.UpdatedAt) {
		return j.HeartbeatAt
	}
	return j.UpdatedAt
}
