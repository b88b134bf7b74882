package event

import (
	"tradesim/internal/domain"
)

// Event is the closed set of variants carried on the dispatch channel.
// The feed and UI collaborators produce events; a single orchestrator
// goroutine consumes them, which preserves delivery order without callback
// handler fields.
type Event interface {
	Kind() Kind
}

// Kind identifies an event variant
type Kind int

const (
	KindConnected Kind = iota + 1
	KindSnapshot
	KindError
	KindClosed
	KindParamsChanged
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "CONNECTED"
	case KindSnapshot:
		return "SNAPSHOT"
	case KindError:
		return "ERROR"
	case KindClosed:
		return "CLOSED"
	case KindParamsChanged:
		return "PARAMS_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Connected signals a successful transport open.
type Connected struct{}

func (Connected) Kind() Kind { return KindConnected }

// Snapshot carries one decoded order-book snapshot.
type Snapshot struct {
	Book *domain.OrderBookSnapshot
}

func (*Snapshot) Kind() Kind { return KindSnapshot }

// Error carries a feed-side failure. Failures are reported here, never
// thrown across the snapshot-processing boundary.
type Error struct {
	Err error
}

func (Error) Kind() Kind { return KindError }

// Closed signals the transport closed, normally or not.
type Closed struct {
	Code   int
	Reason string
}

func (Closed) Kind() Kind { return KindClosed }

// ParamsChanged carries a new parameter set from a UI collaborator.
type ParamsChanged struct {
	Params domain.SimulationParameters
}

func (ParamsChanged) Kind() Kind { return KindParamsChanged }
