package watch

import (
	"encoding/json"
)

// availabilityPayload mirrors the upstream response shape:
// {"availabilities": [{"slots": ["<timestamp>", ...]}, ...]}.
// Every other field is ignored.
type availabilityPayload struct {
	Availabilities []struct {
		Slots []string `json:"slots"`
	} `json:"availabilities"`
}

// ExtractSlots flattens the availability entries of a fetch result into the
// slot timestamps, preserving source order. An empty, absent, or malformed
// body yields an empty slice, never an error.
func ExtractSlots(result FetchResult) []string {
	if result.Empty() {
		return nil
	}
	var payload availabilityPayload
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		return nil
	}
	var slots []string
	for _, a := range payload.Availabilities {
		slots = append(slots, a.Slots...)
	}
	return slots
}
