package lighting

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
)

// SessionState is the connection state reported by a lighting host.
type SessionState int

const (
	SessionInvalid SessionState = iota
	SessionClosed
	SessionConnecting
	SessionConnected
	SessionConnectionLost
	SessionTimeout
	SessionConnectionRefused
)

// String returns a human-readable name for the state.
func (s SessionState) String() string {
	switch s {
	case SessionClosed:
		return "closed"
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionConnectionLost:
		return "connection_lost"
	case SessionTimeout:
		return "timeout"
	case SessionConnectionRefused:
		return "connection_refused"
	default:
		return "invalid"
	}
}

// Version is a major.minor.patch triple.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion reads a dotted version such as "1.56.0". Missing or malformed
// components are zero.
func ParseVersion(s string) Version {
	parts := strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3)
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
}

// SessionStateChanged is delivered asynchronously by a host. Server and Client are
// only meaningful for SessionConnected.
type SessionStateChanged struct {
	State  SessionState
	Server Version
	Client Version
	Err    error
}

// Message returns the operator-facing description of the change.
func (e SessionStateChanged) Message() string {
	switch e.State {
	case SessionClosed:
		return "Connection closed"
	case SessionConnecting:
		return "Connecting to lighting host"
	case SessionConnected:
		return fmt.Sprintf("Connected to lighting host. Server version %s | Client version %s", e.Server, e.Client)
	case SessionConnectionLost:
		return "Lost connection to lighting host"
	case SessionTimeout:
		return "Timeout when connecting to lighting host; it might not be running on this computer"
	case SessionConnectionRefused:
		return "Connection refused; third-party control may be disabled in the lighting host settings"
	default:
		return "Session state change returned invalid"
	}
}

// SessionHandler receives session state notifications.
type SessionHandler func(SessionStateChanged)

// FailureState maps a connection error to the session state hosts report for it.
func FailureState(err error) SessionState {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return SessionTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return SessionConnectionRefused
	}
	return SessionClosed
}
