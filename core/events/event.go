// Package events carries vault state transitions from the engine to whatever
// wants to observe them.
package events

// Event is a structured record of a single vault transition, such as a slot
// opening, a distribution round, or a reward claim settling.
type Event interface {
	EventType() string
}

// Emitter receives every event the vault engine produces. The daemon installs
// a logging emitter; tests install capturing emitters to assert on
// transitions.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events. It is the engine's default so that event
// delivery stays optional.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}
