package events

import (
	"encoding/json"
	"fmt"
)

// Event kinds emitted by the publishing stream.
const (
	KindPublish = "publish"
	KindUpdate  = "update"
)

// event is the raw JSON structure of a stream message.
type event struct {
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	TimeUS int64  `json:"time_us"`
}

func parseEvent(data []byte) (*event, error) {
	var e event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}
