package session

import "fmt"

// CredentialError reports a failed credential acquisition. It aborts Start
// and leaves no partial session behind; the caller must restart.
type CredentialError struct {
	Err error
}

func (e CredentialError) Error() string {
	return fmt.Sprintf("credential acquisition failed: %v", e.Err)
}

func (e CredentialError) Unwrap() error { return e.Err }

// TransportError reports a handshake or channel failure. It is fatal to the
// session; any partially opened resources are torn down.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// ToolInvocationError reports malformed tool arguments or a collaborator
// failure. It is always answered with a failure ToolResult and never
// terminates the session.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %q invocation failed: %v", e.Tool, e.Err)
}

func (e ToolInvocationError) Unwrap() error { return e.Err }

// PlaybackError reports a decode or device failure on one audio fragment.
// The fragment is skipped and the queue continues.
type PlaybackError struct {
	Err error
}

func (e PlaybackError) Error() string {
	return fmt.Sprintf("playback failure: %v", e.Err)
}

func (e PlaybackError) Unwrap() error { return e.Err }
