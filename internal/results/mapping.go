package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const defaultClusterKey = "Q"

type artifact struct {
	Items []artifactItem `json:"items"`
}

type artifactItem struct {
	ClusterKey           string `json:"clusterKey"`
	Question             string `json:"question"`
	Answer               string `json:"answer"`
	Vendor               string `json:"vendor"`
	Category             string `json:"category"`
	Clause               string `json:"clause"`
	Note                 string `json:"note"`
	Status               string `json:"status"`
	InterventionRequired bool   `json:"interventionRequired"`
}

// Map converts a result artifact into query records, preserving item order. It is
// deterministic; the artifact either maps as a whole or the call fails.
func Map(data []byte) ([]QueryRecord, error) {
	if err := validateArtifact(data); err != nil {
		return nil, err
	}

	var doc artifact
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	records := make([]QueryRecord, 0, len(doc.Items))
	ordinals := make(map[string]int)
	used := make(map[string]struct{}, len(doc.Items))
	for _, item := range doc.Items {
		key := strings.TrimSpace(item.ClusterKey)
		if key == "" {
			key = defaultClusterKey
		}
		id := nextID(key, ordinals, used)

		records = append(records, QueryRecord{
			ID:               id,
			QuestionText:     strings.TrimSpace(item.Question),
			AnswerText:       strings.TrimSpace(item.Answer),
			VendorLabel:      strings.TrimSpace(item.Vendor),
			Category:         CanonicalCategory(item.Category),
			ClauseOrSection:  strings.TrimSpace(item.Clause),
			InterventionFlag: item.InterventionRequired,
			InternalNote:     item.Note,
			StatusMarker:     CanonicalStatus(item.Status),
		})
	}
	return records, nil
}

// nextID returns key-N with the lowest ordinal N not yet used.
func nextID(key string, ordinals map[string]int, used map[string]struct{}) string {
	for {
		ordinals[key]++
		id := key + "-" + strconv.Itoa(ordinals[key])
		if _, taken := used[id]; !taken {
			used[id] = struct{}{}
			return id
		}
	}
}
