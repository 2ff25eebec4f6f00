package models

import "fmt"

// StepInput describes the data a step consumes and where it comes from.
type StepInput struct {
	Data   string `json:"data"`
	Source string `json:"source"`
}

// StepOutput describes the data a step produces and where it goes.
type StepOutput struct {
	Data        string `json:"data"`
	Destination string `json:"destination"`
}

// OrganizedStep is one logical workflow step merged from consecutive raw
// transcript events. Number is 1-based, dense, and matches array position.
type OrganizedStep struct {
	Number             int        `json:"number"`
	Action             string     `json:"action"       validate:"required"`
	Applications       []string   `json:"applications" validate:"required,min=1"`
	PrimaryApplication string     `json:"primary_application,omitempty"`
	Input              StepInput  `json:"input"`
	Output             StepOutput `json:"output"`
	Considerations     []string   `json:"considerations,omitempty"`
}

// OrganizedWorkflow is the second staged artifact: logical steps plus
// workflow-level patterns, conditions, triggers and frequency inferred from
// the raw transcript.
type OrganizedWorkflow struct {
	Steps            []OrganizedStep `json:"steps"`
	Patterns         []string        `json:"patterns"`
	ConditionalLogic []string        `json:"conditional_logic"`
	Triggers         []string        `json:"triggers"`
	Frequency        string          `json:"frequency"`
}

// Renumber rewrites step numbers to be dense and 1-based, matching array
// position. Generation output is not trusted to number steps correctly.
func (o *OrganizedWorkflow) Renumber() {
	for i := range o.Steps {
		o.Steps[i].Number = i + 1
	}
}

// Validate checks the dense-numbering invariant.
func (o *OrganizedWorkflow) Validate() error {
	for i, step := range o.Steps {
		if step.Number != i+1 {
			return fmt.Errorf("step at index %d has number %d, want %d", i, step.Number, i+1)
		}
	}

	return nil
}
