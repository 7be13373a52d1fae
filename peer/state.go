package peer

import (
	"fmt"
	"time"
)

// Kind enumerates PeerState's variants.
type Kind int

const (
	KindNew Kind = iota
	KindConnecting
	KindConnected
	KindQuerying
	KindQueried
	KindPassive
	KindFailed
	KindIgnored
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindConnecting:
		return "connecting"
	case KindConnected:
		return "connected"
	case KindQuerying:
		return "querying"
	case KindQueried:
		return "queried"
	case KindPassive:
		return "passive"
	case KindFailed:
		return "failed"
	case KindIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// State is PeerState: a tagged variant carrying the fields relevant to
// its kind (Since for new/connecting/querying, Err/At for failed, Reason
// for ignored).
type State struct {
	Kind   Kind
	Since  time.Time
	Err    error
	At     time.Time
	Reason string
}

func (s State) String() string {
	switch s.Kind {
	case KindNew, KindConnecting, KindQuerying:
		return fmt.Sprintf("%s(since=%s)", s.Kind, s.Since.Format(time.RFC3339))
	case KindFailed:
		return fmt.Sprintf("failed(%v, at=%s)", s.Err, s.At.Format(time.RFC3339))
	case KindIgnored:
		return fmt.Sprintf("ignored(%s)", s.Reason)
	default:
		return s.Kind.String()
	}
}

func New(since time.Time) State        { return State{Kind: KindNew, Since: since} }
func Connecting(since time.Time) State { return State{Kind: KindConnecting, Since: since} }
func Connected() State                 { return State{Kind: KindConnected} }
func Querying(since time.Time) State   { return State{Kind: KindQuerying, Since: since} }
func Queried() State                   { return State{Kind: KindQueried} }
func Passive() State                   { return State{Kind: KindPassive} }
func Failed(err error, at time.Time) State {
	return State{Kind: KindFailed, Err: err, At: at}
}
func Ignored(reason string) State { return State{Kind: KindIgnored, Reason: reason} }
