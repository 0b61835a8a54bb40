package domain

// =============================================================================
// Publish State
// =============================================================================

// PublishState is the phase of the publish workflow.
type PublishState string

const (
	StateIdle       PublishState = "idle"
	StateConfirming PublishState = "confirming"
	StateUploading  PublishState = "uploading"
	StatePublished  PublishState = "published"
)

// CanStartPublish reports whether a new publish may begin from s.
func (s PublishState) CanStartPublish() bool {
	return s == StateIdle || s == StatePublished
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed publish state transitions.
// Failures return to idle, or stay published when a page is already known.
var validTransitions = map[PublishState][]PublishState{
	StateIdle:       {StateConfirming},
	StateConfirming: {StateUploading, StateIdle, StatePublished},
	StateUploading:  {StatePublished, StateIdle},
	StatePublished:  {StateConfirming},
}

// ValidateTransition checks if a publish state transition is valid.
func ValidateTransition(from, to PublishState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return ErrInvalidTransition
}

// =============================================================================
// Publish Options
// =============================================================================

// Options are the per-call publish choices. They are copied into the
// workflow at start and never change while it runs.
type Options struct {
	// Listed makes the page publicly listed.
	Listed bool

	// UseThreads asks the service to serve the page with threads enabled.
	UseThreads bool
}

// ThreadsMode selects how UseThreads is decided.
type ThreadsMode string

const (
	ThreadsAuto ThreadsMode = "auto" // follow the server COEP setting
	ThreadsOn   ThreadsMode = "on"
	ThreadsOff  ThreadsMode = "off"
)

// COEPRequireCorp is the cross-origin-embedder-policy value that enables threads.
const COEPRequireCorp = "require-corp"

// ResolveUseThreads decides the threads flag. Threads are only usable when
// the page is served cross-origin isolated, so auto follows the COEP setting.
func ResolveUseThreads(mode ThreadsMode, serverCOEP string) bool {
	switch mode {
	case ThreadsOn:
		return true
	case ThreadsOff:
		return false
	default:
		return serverCOEP == COEPRequireCorp
	}
}
