// Package harness runs scenario files against in-process instances.
//
// A scenario declares named peers, each backed by an nt.Instance on one
// shared engine.Local, then drives them through setup actions and flow
// steps and checks assertions on the observed notifications and the final
// entry state.
//
// # Scenario Format
//
//	name: server_client_sync
//	description: "Client receives server entries on connect"
//	peers:
//	  - name: robot
//	    identity: robot
//	  - name: dashboard
//	setup:
//	  - peer: robot
//	    action: start_server
//	    args: { port: 1735 }
//	flow:
//	  - peer: robot
//	    invoke: set
//	    args: { key: /speed, type: double, value: 1.5 }
//	  - peer: dashboard
//	    invoke: set
//	    args: { key: /speed, type: string, value: fast }
//	    expect: { error: TYPE_MISMATCH }
//	assertions:
//	  - type: entry_value
//	    peer: dashboard
//	    key: /speed
//	    value_type: double
//	    value: 1.5
//	  - type: trace_order
//	    peer: dashboard
//	    events: [connected robot, new /speed]
//
// # Assertion Types
//
//   - entry_value: an entry holds the given type and value
//   - entry_absent: an entry has no value
//   - entry_persistent: an entry's persistent flag
//   - connections: a peer has exactly count connections
//   - trace_contains: a peer observed an event
//   - trace_order: a peer observed events in the given order
//   - trace_count: a peer observed an event exactly count times
//
// Trace events are written "<event> <name>", for example "new /speed",
// "update /speed", "delete /speed", "flags /speed", "connected robot".
//
// # Deterministic Runs
//
// Every run uses a fresh engine.Local whose generated identities are
// "peer-1", "peer-2", ... in connection order. Notifications are collected
// from the engine after each step in peer order, so traces are identical
// across runs and can be compared against golden files.
package harness
