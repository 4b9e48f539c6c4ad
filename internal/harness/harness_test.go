package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ntcore/internal/value"
)

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Peers:       []PeerSpec{{Name: "solo"}},
		Flow: []FlowStep{
			{Peer: "solo", Invoke: "set", Args: map[string]any{"key": "/a", "type": "double", "value": 1}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Peer: "solo", Event: "new /a"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, 1, ev.Seq)
	assert.Equal(t, "flow[0]", ev.Step)
	assert.Equal(t, "new", ev.Event)
	assert.Equal(t, "double", ev.Kind)
	assert.Equal(t, "1", ev.Value)
	assert.True(t, ev.Local)

	state := result.State["solo"]
	assert.Equal(t, "none", state.Mode)
	assert.Equal(t, []EntryState{{Name: "/a", Kind: "double", Value: "1"}}, state.Entries)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expectations that do not hold",
		Peers:       []PeerSpec{{Name: "solo"}},
		Flow: []FlowStep{
			{Peer: "solo", Invoke: "set", Args: map[string]any{"key": "/a", "type": "boolean", "value": true}},
			{
				Peer:   "solo",
				Invoke: "set",
				Args:   map[string]any{"key": "/a", "type": "double", "value": 2},
			},
			{
				Peer:   "solo",
				Invoke: "get",
				Args:   map[string]any{"key": "/a"},
				Expect: &ExpectClause{Type: "boolean", Value: false},
			},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Peer: "solo", Event: "new /a", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[1] set: unexpected error")
	assert.Contains(t, result.Errors[1], "expected boolean false, got boolean true")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "setup_failure",
		Description: "Second server on the same port",
		Peers:       []PeerSpec{{Name: "a"}, {Name: "b"}},
		Setup: []ActionStep{
			{Peer: "a", Action: "start_server", Args: map[string]any{"port": 6100}},
			{Peer: "b", Action: "start_server", Args: map[string]any{"port": 6100}},
		},
		Flow:       []FlowStep{{Peer: "a", Invoke: "delete_all"}},
		Assertions: []Assertion{{Type: AssertConnections, Peer: "a"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[1] start_server")
}

func TestRun_BadArgumentsAbort(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_args",
		Description: "Step without a key",
		Peers:       []PeerSpec{{Name: "solo"}},
		Flow: []FlowStep{
			{Peer: "solo", Invoke: "set", Args: map[string]any{"type": "double", "value": 1}},
		},
		Assertions: []Assertion{{Type: AssertConnections, Peer: "solo"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "args.key")
}

func TestRun_RejectsEscapingFilePaths(t *testing.T) {
	scenario := &Scenario{
		Name:        "escape",
		Description: "Persistence file outside the run directory",
		Peers:       []PeerSpec{{Name: "solo"}},
		Flow: []FlowStep{
			{Peer: "solo", Invoke: "save_entries", Args: map[string]any{"file": "../outside.db"}},
		},
		Assertions: []Assertion{{Type: AssertConnections, Peer: "solo"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relative path")
}

func TestRun_PersistenceAndRpc(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/persistence_and_rpc.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "server", result.State["robot"].Mode)
	assert.Equal(t, "client", result.State["driver"].Mode)
	assert.Equal(t, []string{"robot"}, result.State["driver"].Connections)
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/server_client_sync.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", errorCode(nil))
	assert.Equal(t, "ERROR", errorCode(assert.AnError))
}

func TestToValue(t *testing.T) {
	tests := []struct {
		name string
		kind string
		raw  any
		want string
	}{
		{"double from int", "double", 2, "2"},
		{"double from text", "double", "2.5", "2.5"},
		{"boolean", "boolean", true, "true"},
		{"raw hex", "raw", "0a0b", "0a0b"},
		{"string array list", "string_array", []any{"a", "b"}, "[a b]"},
		{"string array text", "string_array", "a,b", "[a b]"},
		{"double array", "double_array", []any{1, 2.5}, "[1 2.5]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := value.ParseKind(tt.kind)
			require.NoError(t, err)
			v, err := toValue(kind, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}

	_, err := toValue(value.KindDouble, nil)
	assert.ErrorIs(t, err, value.ErrInvalidArgument)
	_, err = toValue(value.KindString, 3)
	assert.Error(t, err)
}
