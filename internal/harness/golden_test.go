package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_ServerClientSync(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/server_client_sync.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalSnapshot(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Step: "flow[0]", Peer: "a", Event: "connected", Name: "b"})
	result.State["a"] = PeerState{Mode: "server", Connections: []string{"b"}, Entries: []EntryState{}}

	data, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)

	want := `{
  "scenario_name": "snap",
  "trace": [
    {
      "seq": 1,
      "step": "flow[0]",
      "peer": "a",
      "event": "connected",
      "name": "b"
    }
  ],
  "state": {
    "a": {
      "mode": "server",
      "connections": [
        "b"
      ],
      "entries": []
    }
  }
}
`
	assert.Equal(t, want, string(data))
}

func TestMarshalSnapshot_NormalizesNames(t *testing.T) {
	decomposed := NewResult()
	decomposed.AddTrace(TraceEvent{Step: "flow[0]", Peer: "a", Event: "new", Name: "/cafe\u0301<1>&"})
	composed := NewResult()
	composed.AddTrace(TraceEvent{Step: "flow[0]", Peer: "a", Event: "new", Name: "/caf\u00e9<1>&"})

	got, err := MarshalSnapshot("nfc", decomposed)
	require.NoError(t, err)
	want, err := MarshalSnapshot("nfc", composed)
	require.NoError(t, err)

	assert.Equal(t, string(want), string(got))
	assert.Contains(t, string(got), "\"name\": \"/caf\u00e9<1>&\"")
}

func TestMarshalSnapshot_SortsPeers(t *testing.T) {
	result := NewResult()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		result.State[name] = PeerState{Mode: "none", Connections: []string{}, Entries: []EntryState{}}
	}

	data, err := MarshalSnapshot("order", result)
	require.NoError(t, err)

	s := string(data)
	assert.Less(t, strings.Index(s, `"alpha"`), strings.Index(s, `"mid"`))
	assert.Less(t, strings.Index(s, `"mid"`), strings.Index(s, `"zeta"`))
}
