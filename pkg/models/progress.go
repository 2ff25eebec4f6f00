package models

import "math"

// Progress is the derived per-stage completion view surfaced by status
// polling. It is computed from artifact presence plus CurrentStage, never
// stored on the record.
type Progress struct {
	VideoProcessing int `json:"video_processing"`
	RawExtraction   int `json:"raw_extraction"`
	Organization    int `json:"organization"`
	BlockGeneration int `json:"block_generation"`
	Overall         int `json:"overall"`
}

// Overall progress weights. Video extraction is treated as an atomic first
// stage worth 10%; the three generation stages split the rest evenly.
const (
	weightVideo           = 0.10
	weightRawExtraction   = 0.30
	weightOrganization    = 0.30
	weightBlockGeneration = 0.30
)

const stageStarted = 50

// ComputeProgress derives the progress view for a workflow. A stage reports 0
// before it starts, 50 while running, 100 once its artifact is written.
func ComputeProgress(w *Workflow) Progress {
	var p Progress

	if w.Status == WorkflowStatusProcessing || w.IsTerminal() {
		p.VideoProcessing = 100
	}

	p.RawExtraction = stageProgress(w.RawExtraction != nil, w.CurrentStage == StageTranscript || w.CurrentStage == StageExtraction)
	p.Organization = stageProgress(w.OrganizedWorkflow != nil, w.CurrentStage == StageOrganization)
	p.BlockGeneration = stageProgress(w.BlockStructure != nil, w.CurrentStage == StageBlockGeneration)

	p.Overall = int(math.Round(
		weightVideo*float64(p.VideoProcessing) +
			weightRawExtraction*float64(p.RawExtraction) +
			weightOrganization*float64(p.Organization) +
			weightBlockGeneration*float64(p.BlockGeneration)))

	return p
}

func stageProgress(done, running bool) int {
	switch {
	case done:
		return 100
	case running:
		return stageStarted
	default:
		return 0
	}
}

// EstimatedSecondsRemaining is a crude linear extrapolation, one second per
// remaining progress point. An approximation, not a measured rate.
func (p Progress) EstimatedSecondsRemaining() int {
	return 100 - p.Overall
}
