package domain

import "time"

// Opportunity is a path found by a scan, as published to subscribers.
type Opportunity struct {
	ID         string         `json:"id"`
	ScanID     string         `json:"scanId"`
	DetectedAt time.Time      `json:"detectedAt"`
	Clock      Clock          `json:"clock"`
	Strategy   string         `json:"strategy"`
	Tokens     []TokenID      `json:"tokens"`
	Path       *ArbitragePath `json:"path"`
}
