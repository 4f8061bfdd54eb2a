package pipeline

import "github.com/google/uuid"

// State is the single record threaded through every pipeline stage. Each
// stage owns it for the duration of its call and writes its own fields;
// Script and the run outcome fields are always updated together.
type State struct {
	// RequestID identifies one analysis request in logs.
	RequestID string
	// DatasetName is the display name of the input data.
	DatasetName string
	// Question is the user's natural-language question.
	Question string

	// Written by schema analysis.
	SchemaSummary string
	ColumnTypes   map[string]string
	SamplePreview string

	// Written by planning.
	Plan string

	// Script is the candidate under test; each repair overwrites it.
	Script string

	// Outcome of the most recent execution attempt.
	RunOutput   string
	RunFault    string // empty iff the last attempt succeeded
	Artifact    string // serialized chart, empty when absent
	RunWarnings []string

	// RepairAttempts counts repair invocations; it never decreases and the
	// orchestrator caps it at the configured ceiling.
	RepairAttempts int

	// FinalReport is terminal: written exactly once, after which the state
	// is handed back to the caller.
	FinalReport string
}

// NewState creates the record for one analysis request with all derived
// fields empty.
func NewState(datasetName, question string) *State {
	return &State{
		RequestID:   uuid.NewString(),
		DatasetName: datasetName,
		Question:    question,
	}
}

// Succeeded reports whether the last execution attempt completed without a fault.
func (s *State) Succeeded() bool { return s.RunFault == "" }
