package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/ntcore/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace of the peer concerned, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s: %s\n", event.Seq, event.Peer, event.Summary())
		}
	}

	return buf.String()
}

// peerTrace returns the events observed by peer, or every event if peer
// is empty.
func peerTrace(trace []TraceEvent, peer string) []TraceEvent {
	if peer == "" {
		return trace
	}
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Peer == peer {
			out = append(out, ev)
		}
	}
	return out
}

// assertTraceContains checks that the peer observed the event.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	events := peerTrace(trace, assertion.Peer)
	for _, ev := range events {
		if ev.Summary() == assertion.Event {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%q observed by %s", assertion.Event, describePeer(assertion.Peer)),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that events were observed in the given order.
// Events don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	events := peerTrace(trace, assertion.Peer)

	next := 0
	for _, ev := range events {
		if next < len(assertion.Events) && ev.Summary() == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("%q not observed after %v", assertion.Events[next], assertion.Events[:next]),
		Trace:    events,
	}
}

// assertTraceCount checks that the event was observed exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	events := peerTrace(trace, assertion.Peer)

	count := 0
	for _, ev := range events {
		if ev.Summary() == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %q", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    events,
		}
	}

	return nil
}

// assertEntryValue checks an entry's final kind and value.
func assertEntryValue(state PeerState, assertion Assertion) error {
	kind, err := value.ParseKind(assertion.ValueType)
	if err != nil {
		return fmt.Errorf("entry_value: %w", err)
	}
	want, err := toValue(kind, assertion.Value)
	if err != nil {
		return fmt.Errorf("entry_value: %w", err)
	}

	got, ok := state.Entry(assertion.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertEntryValue,
			Expected: fmt.Sprintf("%s = %s %s on %s", assertion.Key, kind, want, assertion.Peer),
			Actual:   "entry not found",
		}
	}
	if got.Kind != kind.String() || got.Value != want.String() {
		return &AssertionError{
			Type:     AssertEntryValue,
			Expected: fmt.Sprintf("%s = %s %s on %s", assertion.Key, kind, want, assertion.Peer),
			Actual:   fmt.Sprintf("%s %s", got.Kind, got.Value),
		}
	}
	return nil
}

func assertEntryAbsent(state PeerState, assertion Assertion) error {
	if got, ok := state.Entry(assertion.Key); ok {
		return &AssertionError{
			Type:     AssertEntryAbsent,
			Expected: fmt.Sprintf("no %s on %s", assertion.Key, assertion.Peer),
			Actual:   fmt.Sprintf("%s %s", got.Kind, got.Value),
		}
	}
	return nil
}

func assertEntryPersistent(state PeerState, assertion Assertion) error {
	got, ok := state.Entry(assertion.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertEntryPersistent,
			Expected: fmt.Sprintf("%s on %s", assertion.Key, assertion.Peer),
			Actual:   "entry not found",
		}
	}
	if got.Persistent != *assertion.Persistent {
		return &AssertionError{
			Type:     AssertEntryPersistent,
			Expected: fmt.Sprintf("%s persistent=%v", assertion.Key, *assertion.Persistent),
			Actual:   fmt.Sprintf("persistent=%v", got.Persistent),
		}
	}
	return nil
}

func assertConnections(state PeerState, assertion Assertion) error {
	if len(state.Connections) != assertion.Count {
		return &AssertionError{
			Type:     AssertConnections,
			Expected: fmt.Sprintf("%d connections on %s", assertion.Count, assertion.Peer),
			Actual:   fmt.Sprintf("%d %v", len(state.Connections), state.Connections),
		}
	}
	return nil
}

func describePeer(peer string) string {
	if peer == "" {
		return "any peer"
	}
	return peer
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error
		state := result.State[assertion.Peer]

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertEntryValue:
			err = assertEntryValue(state, assertion)
		case AssertEntryAbsent:
			err = assertEntryAbsent(state, assertion)
		case AssertEntryPersistent:
			if assertion.Persistent == nil {
				err = fmt.Errorf("assertion[%d]: entry_persistent requires persistent", i)
			} else {
				err = assertEntryPersistent(state, assertion)
			}
		case AssertConnections:
			err = assertConnections(state, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
