package models

// TranscriptEvent is one observed workflow event: what was on screen, what the
// user did, and what they said about it during the same time window.
type TranscriptEvent struct {
	Time      float64 `json:"time"` // Seconds from recording start
	Screen    string  `json:"screen"    validate:"required"`
	Action    string  `json:"action"    validate:"required"`
	Narration string  `json:"narration"`
}

// RawExtraction is the chronological, append-only ground truth produced by
// transcript synthesis. Order must be preserved; the organizer consumes it
// as-is and never rewrites it.
type RawExtraction struct {
	Events []TranscriptEvent `json:"events"`
}

// IsEmpty reports whether synthesis produced no events at all.
func (r *RawExtraction) IsEmpty() bool {
	return r == nil || len(r.Events) == 0
}
