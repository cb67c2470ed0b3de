package gate

// State of the authentication gate for one device session.
type State int

const (
	StateUnauthenticated State = iota
	// StateAuthenticatedUnchecked: credentials accepted, profile and second factor not checked yet.
	StateAuthenticatedUnchecked
	StateAwaitingCode
	StateVerifying
	StateCleared
)

var stateNames = [...]string{
	StateUnauthenticated:        "unauthenticated",
	StateAuthenticatedUnchecked: "authenticated_unchecked",
	StateAwaitingCode:           "awaiting_code",
	StateVerifying:              "verifying",
	StateCleared:                "cleared",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives the gate through Step.
type Event int

const (
	// EventMount: the client (re)loaded and asks the gate to pick up an existing session.
	EventMount Event = iota
	EventSignInSucceeded
	EventCodeVerified
)

func (e Event) String() string {
	switch e {
	case EventMount:
		return "mount"
	case EventSignInSucceeded:
		return "sign_in_succeeded"
	case EventCodeVerified:
		return "code_verified"
	default:
		return "invalid"
	}
}
