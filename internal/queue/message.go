package queue

import "encoding/json"

// MessageVersion is the current BatchCompleted payload version.
const MessageVersion = 1

// BatchCompleted is published once when every job of a batch is terminal.
type BatchCompleted struct {
	BatchID     string `json:"batchId"`
	Total       int    `json:"total"`
	Complete    int    `json:"complete"`
	Error       int    `json:"error"`
	CompletedAt string `json:"completedAt"`
	Version     int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg BatchCompleted) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a BatchCompleted.
func DecodeMessage(payload []byte) (BatchCompleted, error) {
	var msg BatchCompleted
	if err := json.Unmarshal(payload, &msg); err != nil {
		return BatchCompleted{}, err
	}
	return msg, nil
}
