package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines one run: the peers, what they do, and what must hold
// afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Peers lists the instances taking part, in trace collection order.
	Peers []PeerSpec `yaml:"peers"`

	// Setup contains actions run before the flow. Setup actions must
	// succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the steps under test, each optionally checked against
	// an expect clause.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// PeerSpec declares one instance.
type PeerSpec struct {
	Name string `yaml:"name"`

	// Identity is the network identity. If empty, the engine generates one.
	Identity string `yaml:"identity,omitempty"`
}

// ActionStep is a setup action.
type ActionStep struct {
	Peer   string         `yaml:"peer"`
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args,omitempty"`
}

// FlowStep is a step of the main flow.
type FlowStep struct {
	Peer   string         `yaml:"peer"`
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Expect checks the outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is the expected error code (TYPE_MISMATCH, INVALID_STATE,
	// INVALID_ARGUMENT, ENGINE_FAILURE). Empty means success.
	Error string `yaml:"error,omitempty"`

	// Result is the expected boolean result of set_default.
	Result *bool `yaml:"result,omitempty"`

	// Type and Value are the expected value read by get. A Type of
	// "unassigned" expects no value.
	Type  string `yaml:"type,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Response is the expected reply of call_rpc.
	Response *string `yaml:"response,omitempty"`
}

// Assertion validates the final trace or state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Peer selects the peer. Trace assertions without a peer look at every
	// peer.
	Peer string `yaml:"peer,omitempty"`

	// Key is the entry name (entry_* assertions).
	Key string `yaml:"key,omitempty"`

	// ValueType and Value are the expected entry value (entry_value).
	ValueType string `yaml:"value_type,omitempty"`
	Value     any    `yaml:"value,omitempty"`

	// Persistent is the expected flag (entry_persistent).
	Persistent *bool `yaml:"persistent,omitempty"`

	// Event is "<event> <name>" (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number (trace_count, connections).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertEntryValue      = "entry_value"
	AssertEntryAbsent     = "entry_absent"
	AssertEntryPersistent = "entry_persistent"
	AssertConnections     = "connections"
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Peers) == 0 {
		return fmt.Errorf("peers list is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	var names []string
	for i, p := range s.Peers {
		if p.Name == "" {
			return fmt.Errorf("peers[%d]: name is required", i)
		}
		if slices.Contains(names, p.Name) {
			return fmt.Errorf("peers[%d]: duplicate peer %q", i, p.Name)
		}
		names = append(names, p.Name)
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), names, step.Peer, step.Action); err != nil {
			return err
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), names, step.Peer, step.Invoke); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, names, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where string, peers []string, peer, op string) error {
	if !slices.Contains(peers, peer) {
		return fmt.Errorf("%s: unknown peer %q", where, peer)
	}
	if op == "" {
		return fmt.Errorf("%s: action is required", where)
	}
	if _, ok := operations[op]; !ok {
		return fmt.Errorf("%s: unknown action %q", where, op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, peers []string, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needPeer := func() error {
		if !slices.Contains(peers, a.Peer) {
			return fmt.Errorf("assertions[%d]: unknown peer %q", index, a.Peer)
		}
		return nil
	}
	needKey := func() error {
		if err := needPeer(); err != nil {
			return err
		}
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertEntryValue:
		if err := needKey(); err != nil {
			return err
		}
		if a.ValueType == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: value_type and value are required for entry_value", index)
		}
	case AssertEntryAbsent:
		return needKey()
	case AssertEntryPersistent:
		if err := needKey(); err != nil {
			return err
		}
		if a.Persistent == nil {
			return fmt.Errorf("assertions[%d]: persistent is required for entry_persistent", index)
		}
	case AssertConnections:
		if err := needPeer(); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceContains, AssertTraceCount:
		if a.Peer != "" {
			if err := needPeer(); err != nil {
				return err
			}
		}
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if a.Peer != "" {
			if err := needPeer(); err != nil {
				return err
			}
		}
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
