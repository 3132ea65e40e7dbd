package pipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageParse runs the C front end.
	StageParse Stage = "parse"
	// StageBuild turns front-end cursors into the declaration tree.
	StageBuild Stage = "build"
	// StageFilter runs the include, duplicate, unsupported and missing-dependency passes.
	StageFilter Stage = "filter"
	// StageLayout lays out every kept top-level declaration.
	StageLayout Stage = "layout"
	// StageNaming assigns canonical names.
	StageNaming Stage = "naming"
	// StageEmit builds the ordered binding units.
	StageEmit Stage = "emit"
	// StageWrite renders the units and writes them out.
	StageWrite Stage = "write"
)

// Stages lists every stage in execution order.
func Stages() []Stage {
	return []Stage{StageParse, StageBuild, StageFilter, StageLayout, StageNaming, StageEmit, StageWrite}
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the stage is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the stage is running.
	StatusWorking Status = "working"
	// StatusDone indicates the stage finished.
	StatusDone Status = "done"
	// StatusCached indicates the stage was satisfied from the unit cache.
	StatusCached Status = "cached"
	// StatusError indicates the stage failed.
	StatusError Status = "error"
)

// Event reports progress of one stage for a translation unit.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
