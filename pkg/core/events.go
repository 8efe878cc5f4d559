package core

import "time"

// Event is the interface for all gateway events.
type Event interface {
	eventMarker()
}

// CallStarted is emitted when a call has been received, before lookup.
type CallStarted struct {
	Call       CallInfo
	Convention Convention
	Timestamp  time.Time
}

func (*CallStarted) eventMarker() {}

// CallCompleted is emitted when a call produced a result envelope.
type CallCompleted struct {
	Call       CallInfo
	Convention Convention
	Fallback   bool
	Duration   time.Duration
	Timestamp  time.Time
}

func (*CallCompleted) eventMarker() {}

// CallFailed is emitted when a call produced an error envelope.
type CallFailed struct {
	Call       CallInfo
	Convention Convention
	Fallback   bool
	Outcome    Outcome
	Error      string
	Duration   time.Duration
	Timestamp  time.Time
}

func (*CallFailed) eventMarker() {}
