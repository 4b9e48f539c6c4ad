package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/nt"
	"github.com/roach88/ntcore/internal/testutil"
	"github.com/roach88/ntcore/internal/value"
)

// traceFlags selects every entry change, local or remote.
const traceFlags = nt.NotifyLocal | nt.NotifyNew | nt.NotifyUpdate | nt.NotifyDelete | nt.NotifyFlagsChanged

// Harness is the scenario execution engine.
type Harness struct {
	eng    *engine.Local
	dir    string
	peers  map[string]*peer
	order  []*peer
	logger *slog.Logger
}

// peer is one named instance plus the pollers the harness traces it with.
type peer struct {
	name        string
	inst        *nt.Instance
	entryPoller engine.PollerHandle
	connPoller  engine.PollerHandle
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh engine and a temporary directory for persistence
// files, both discarded afterwards.
//
// Execution flow:
// 1. Create one instance per peer and attach trace pollers
// 2. Execute setup actions
// 3. Execute flow steps with expect validation
// 4. Snapshot final state and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "ntcore-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in runs
	eng := engine.NewLocal(
		engine.WithLogger(logger),
		engine.WithIdentityGenerator(testutil.NewSequentialIdentityGenerator("peer")),
	)

	h := &Harness{
		eng:    eng,
		dir:    dir,
		peers:  make(map[string]*peer),
		logger: logger,
	}
	defer h.close()

	for _, spec := range scenario.Peers {
		h.addPeer(spec)
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, p := range h.order {
		result.State[p.name] = p.snapshot()
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) addPeer(spec PeerSpec) {
	inst := nt.CreateWithEngine(h.eng)
	if spec.Identity != "" {
		inst.SetNetworkIdentity(spec.Identity)
	}

	p := &peer{
		name:        spec.Name,
		inst:        inst,
		entryPoller: h.eng.CreateEntryListenerPoller(inst.Handle()),
		connPoller:  h.eng.CreateConnectionListenerPoller(inst.Handle()),
	}
	h.eng.AddPolledEntryListener(p.entryPoller, "", traceFlags)
	h.eng.AddPolledConnectionListener(p.connPoller, false)

	h.peers[spec.Name] = p
	h.order = append(h.order, p)
}

func (h *Harness) close() {
	for _, p := range slices.Backward(h.order) {
		h.eng.DestroyEntryListenerPoller(p.entryPoller)
		h.eng.DestroyConnectionListenerPoller(p.connPoller)
		if err := p.inst.Close(); err != nil {
			h.logger.Warn("close peer", "peer", p.name, "error", err)
		}
	}
}

// executeSetup runs all setup actions. A failing setup action aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		label := fmt.Sprintf("setup[%d]", i)
		if _, err := h.invoke(ctx, step.Peer, step.Action, step.Args); err != nil {
			return fmt.Errorf("%s %s: %w", label, step.Action, err)
		}
		if err := h.collect(label, result); err != nil {
			return err
		}

		h.logger.Info("setup step completed", "step", i, "peer", step.Peer, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		label := fmt.Sprintf("flow[%d]", i)
		out, err := h.invoke(ctx, step.Peer, step.Invoke, step.Args)
		if err != nil && !isStepError(err) {
			return fmt.Errorf("%s %s: %w", label, step.Invoke, err)
		}

		for _, msg := range checkExpect(step.Expect, out, err) {
			result.AddError(fmt.Sprintf("%s %s: %s", label, step.Invoke, msg))
		}

		if err := h.collect(label, result); err != nil {
			return err
		}

		h.logger.Info("flow step completed", "step", i, "peer", step.Peer, "action", step.Invoke, "error", err)
	}
	return nil
}

// collect appends the notifications queued since the last step. The engine
// queues notifications before a step returns, so nothing is in flight.
func (h *Harness) collect(step string, result *Result) error {
	for _, p := range h.order {
		entries, _, err := h.eng.PollEntryListenerTimeout(p.entryPoller, 0)
		if err != nil {
			return fmt.Errorf("%s: poll entries of %s: %w", step, p.name, err)
		}
		for _, n := range entries {
			result.AddTrace(entryTrace(step, p.name, n))
		}

		conns, _, err := h.eng.PollConnectionListenerTimeout(p.connPoller, 0)
		if err != nil {
			return fmt.Errorf("%s: poll connections of %s: %w", step, p.name, err)
		}
		for _, n := range conns {
			event := "disconnected"
			if n.Connected {
				event = "connected"
			}
			result.AddTrace(TraceEvent{Step: step, Peer: p.name, Event: event, Name: n.Conn.RemoteID})
		}
	}
	return nil
}

func entryTrace(step, peerName string, n engine.EntryNotification) TraceEvent {
	ev := TraceEvent{
		Step:  step,
		Peer:  peerName,
		Name:  n.Name,
		Kind:  n.Value.Kind().String(),
		Value: n.Value.String(),
		Local: n.Flags&nt.NotifyLocal != 0,
	}
	switch {
	case n.Flags&nt.NotifyDelete != 0:
		ev.Event = "delete"
	case n.Flags&nt.NotifyNew != 0:
		ev.Event = "new"
	case n.Flags&nt.NotifyUpdate != 0:
		ev.Event = "update"
	default:
		ev.Event = "flags"
	}
	return ev
}

func (p *peer) snapshot() PeerState {
	state := PeerState{
		Mode:        p.inst.NetworkMode().String(),
		Connections: []string{},
		Entries:     []EntryState{},
	}
	for _, c := range p.inst.Connections() {
		state.Connections = append(state.Connections, c.RemoteID)
	}
	for _, info := range p.inst.GetEntryInfo("", value.AllKinds) {
		e := p.inst.GetEntry(info.Name)
		state.Entries = append(state.Entries, EntryState{
			Name:       info.Name,
			Kind:       info.Type.String(),
			Value:      e.Value().String(),
			Persistent: info.Flags&nt.Persistent != 0,
		})
	}
	return state
}
