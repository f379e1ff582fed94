// Package service orchestrates the import wizard: a linear state machine
// over pure transitions, with the ImportService as the shell that performs
// file reads and record-store writes and feeds the outcomes back as events.
package service

import (
	"errors"
	"fmt"

	"github.com/budgetbee/importer/internal/domain/importer/parser"
)

// Step is the wizard's position.
type Step int

const (
	StepUpload Step = iota
	StepDetect
	StepMapping
	StepPreview
	StepImporting
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepDetect:
		return "detect"
	case StepMapping:
		return "mapping"
	case StepPreview:
		return "preview"
	case StepImporting:
		return "importing"
	case StepDone:
		return "done"
	}
	return "unknown"
}

// ErrInvalidTransition is returned for events the current step cannot accept.
var ErrInvalidTransition = errors.New("invalid wizard transition")

// State is an immutable snapshot of the wizard. Transitions return a new
// value; nothing mutates a State in place.
type State struct {
	Step      Step
	FileName  string
	SheetName string
	Layout    parser.Layout
	Sections  parser.AssignedSections
	Results   *Results
}

// Event drives the wizard forward or back.
type Event interface{ isEvent() }

// WorkbookDetected carries the outcome of reading and classifying an upload.
type WorkbookDetected struct {
	FileName  string
	SheetName string
	Layout    parser.Layout
	Sections  parser.AssignedSections
}

// SectionsAccepted confirms the detected sections and requests mapping.
type SectionsAccepted struct{}

// MappingsConfirmed confirms the (possibly edited) field mappings.
type MappingsConfirmed struct{}

// ImportStarted launches the commit phase.
type ImportStarted struct{}

// ImportCompleted carries the final counters.
type ImportCompleted struct{ Results Results }

// WentBack steps the wizard back one state.
type WentBack struct{}

func (WorkbookDetected) isEvent()  {}
func (SectionsAccepted) isEvent()  {}
func (MappingsConfirmed) isEvent() {}
func (ImportStarted) isEvent()     {}
func (ImportCompleted) isEvent()   {}
func (WentBack) isEvent()          {}

// Transition is the pure transition function (State, Event) -> State. It
// never performs I/O. Forward skips are rejected, Importing cannot go back,
// and Detect refuses to advance until at least one section is assigned.
func Transition(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case WorkbookDetected:
		if s.Step != StepUpload {
			return s, transitionErr(s.Step, "workbook detected")
		}
		next := s
		next.Step = StepDetect
		next.FileName = ev.FileName
		next.SheetName = ev.SheetName
		next.Layout = ev.Layout
		next.Sections = ev.Sections
		return next, nil

	case SectionsAccepted:
		if s.Step != StepDetect {
			return s, transitionErr(s.Step, "sections accepted")
		}
		if s.Sections.Empty() {
			return s, fmt.Errorf("%w: no sections detected", ErrInvalidTransition)
		}
		next := s
		next.Step = StepMapping
		return next, nil

	case MappingsConfirmed:
		if s.Step != StepMapping {
			return s, transitionErr(s.Step, "mappings confirmed")
		}
		next := s
		next.Step = StepPreview
		return next, nil

	case ImportStarted:
		if s.Step != StepPreview {
			return s, transitionErr(s.Step, "import started")
		}
		next := s
		next.Step = StepImporting
		return next, nil

	case ImportCompleted:
		if s.Step != StepImporting {
			return s, transitionErr(s.Step, "import completed")
		}
		results := ev.Results
		next := s
		next.Step = StepDone
		next.Results = &results
		return next, nil

	case WentBack:
		switch s.Step {
		case StepDetect:
			return State{Step: StepUpload}, nil
		case StepMapping:
			next := s
			next.Step = StepDetect
			return next, nil
		case StepPreview:
			next := s
			next.Step = StepMapping
			return next, nil
		}
		return s, transitionErr(s.Step, "back")

	default:
		return s, transitionErr(s.Step, "unknown event")
	}
}

func transitionErr(step Step, event string) error {
	return fmt.Errorf("%w: %s at step %s", ErrInvalidTransition, event, step)
}
