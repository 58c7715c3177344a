package session

// State is the lifecycle state of a capture session
type State string

const (
	// StateAwaitingPermission is the initial state, before camera
	// access has been confirmed
	StateAwaitingPermission State = "awaiting_permission"

	// StateStarting covers session registration and media readiness
	StateStarting State = "starting"

	// StateActive means the respondent is answering questions
	StateActive State = "active"

	// StateCompleting covers recorder stop, video upload and score
	// aggregation
	StateCompleting State = "completing"

	// StateCompleted is the terminal success state
	StateCompleted State = "completed"

	// StateFailed is reachable from any non-terminal state
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions are possible from s
func (s State) Terminal() bool {
	return s == StateCompleted
}

// FailureReason classifies why a session entered StateFailed
type FailureReason string

const (
	// ReasonPermissionDenied means camera access was refused or absent
	ReasonPermissionDenied FailureReason = "permission_denied"

	// ReasonStartError means session registration or media readiness
	// failed; the caller may retry from StateAwaitingPermission
	ReasonStartError FailureReason = "start_error"

	// ReasonCancelled means the caller abandoned the flow
	ReasonCancelled FailureReason = "cancelled"
)

// Answer records the respondent's verdict for one question. Answers are
// append-only: one per question, created exactly once, never mutated.
type Answer struct {
	QuestionID int64
	Order      int
	Verdict    bool // true = Yes
	Detected   bool
	Score      *int   // nil when no face was scored
	SnapshotID string // empty when no snapshot was uploaded
}
