package harness

import "fmt"

// TraceEvent is one notification observed by a peer.
type TraceEvent struct {
	Seq   int    `json:"seq"`
	Step  string `json:"step"`
	Peer  string `json:"peer"`
	Event string `json:"event"` // new, update, delete, flags, connected, disconnected
	Name  string `json:"name"`  // entry name, or remote identity for connection events
	Kind  string `json:"kind,omitempty"`
	Value string `json:"value,omitempty"`
	Local bool   `json:"local,omitempty"`
}

// Summary returns the "<event> <name>" form used by trace assertions.
func (e TraceEvent) Summary() string {
	return fmt.Sprintf("%s %s", e.Event, e.Name)
}

// EntryState is one entry in a final state snapshot.
type EntryState struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Value      string `json:"value"`
	Persistent bool   `json:"persistent,omitempty"`
}

// PeerState is the final state of one peer.
type PeerState struct {
	Mode        string       `json:"mode"`
	Connections []string     `json:"connections"`
	Entries     []EntryState `json:"entries"`
}

// Entry returns the named entry, if present.
func (s PeerState) Entry(name string) (EntryState, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return EntryState{}, false
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every notification observed, in collection order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// State is the final state keyed by peer name.
	State map[string]PeerState `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]PeerState),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev, numbering it.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
