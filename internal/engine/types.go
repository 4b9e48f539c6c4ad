package engine

import (
	"strings"

	"github.com/roach88/ntcore/internal/value"
)

// Handle types. The zero handle is never valid.
type (
	InstanceHandle uint32
	EntryHandle    uint32
	PollerHandle   uint32
	ListenerHandle uint32
	RpcCallHandle  uint32
)

// DefaultPort is the port servers listen on when none is given.
const DefaultPort = 1735

// ProtocolVersion is reported in ConnectionInfo.
const ProtocolVersion = 0x0300

// EntryFlags are per-entry attributes.
type EntryFlags uint32

const (
	// FlagPersistent marks entries written by SavePersistent and kept by
	// DeleteAllEntries.
	FlagPersistent EntryFlags = 0x01
)

// NotifyFlags describe an entry notification, and select which
// notifications an entry listener receives.
type NotifyFlags uint32

const (
	NotifyNone         NotifyFlags = 0x00
	NotifyImmediate    NotifyFlags = 0x01
	NotifyLocal        NotifyFlags = 0x02
	NotifyNew          NotifyFlags = 0x04
	NotifyDelete       NotifyFlags = 0x08
	NotifyUpdate       NotifyFlags = 0x10
	NotifyFlagsChanged NotifyFlags = 0x20
)

// notifyKinds are the flags that name what happened to an entry.
const notifyKinds = NotifyNew | NotifyDelete | NotifyUpdate | NotifyFlagsChanged

var notifyNames = []struct {
	flag NotifyFlags
	name string
}{
	{NotifyImmediate, "immediate"},
	{NotifyLocal, "local"},
	{NotifyNew, "new"},
	{NotifyDelete, "delete"},
	{NotifyUpdate, "update"},
	{NotifyFlagsChanged, "flags"},
}

// String joins the set flag names with "|", e.g. "local|new".
func (f NotifyFlags) String() string {
	var parts []string
	for _, n := range notifyNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// wants reports whether a listener registered with f receives an event
// carrying flags ev. A listener that names no event kind receives all kinds.
// Changes made by the listener's own instance need NotifyLocal.
func (f NotifyFlags) wants(ev NotifyFlags) bool {
	if ev&NotifyLocal != 0 && f&NotifyLocal == 0 {
		return false
	}
	kinds := f & notifyKinds
	if kinds == 0 {
		return true
	}
	return kinds&ev != 0
}

// NetworkMode is a bitset describing what an instance is doing on the network.
type NetworkMode uint32

const (
	NetworkNone     NetworkMode = 0x00
	NetworkServer   NetworkMode = 0x01
	NetworkClient   NetworkMode = 0x02
	NetworkStarting NetworkMode = 0x04
	NetworkFailure  NetworkMode = 0x08
	NetworkLocal    NetworkMode = 0x10
)

func (m NetworkMode) String() string {
	if m == NetworkNone {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		mode NetworkMode
		name string
	}{
		{NetworkServer, "server"},
		{NetworkClient, "client"},
		{NetworkStarting, "starting"},
		{NetworkFailure, "failure"},
		{NetworkLocal, "local"},
	} {
		if m&n.mode != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// LogLevel is the severity of a LogMessage. Larger is more severe.
type LogLevel uint32

const (
	LogCritical LogLevel = 50
	LogError    LogLevel = 40
	LogWarning  LogLevel = 30
	LogInfo     LogLevel = 20
	LogDebug    LogLevel = 10
	LogDebug1   LogLevel = 9
	LogDebug2   LogLevel = 8
	LogDebug3   LogLevel = 7
	LogDebug4   LogLevel = 6
)

func (l LogLevel) String() string {
	switch {
	case l >= LogCritical:
		return "CRITICAL"
	case l >= LogError:
		return "ERROR"
	case l >= LogWarning:
		return "WARNING"
	case l >= LogInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// ServerPort names one server a client may connect to.
type ServerPort struct {
	Host string
	Port int
}

// EntryInfo describes one entry.
type EntryInfo struct {
	Entry      EntryHandle
	Name       string
	Type       value.Kind
	Flags      EntryFlags
	LastChange int64
}

// ConnectionInfo describes the remote side of one connection.
type ConnectionInfo struct {
	RemoteID        string
	RemoteIP        string
	RemotePort      int
	LastUpdate      int64
	ProtocolVersion uint32
}

// EntryNotification is delivered to entry listener pollers.
type EntryNotification struct {
	Listener ListenerHandle
	Entry    EntryHandle
	Name     string
	Value    value.Value
	Flags    NotifyFlags
}

// ConnectionNotification is delivered to connection listener pollers.
type ConnectionNotification struct {
	Listener  ListenerHandle
	Connected bool
	Conn      ConnectionInfo
}

// RpcAnswer is one incoming rpc call delivered to an rpc poller.
type RpcAnswer struct {
	Entry  EntryHandle
	Call   RpcCallHandle
	Name   string
	Params []byte
	Conn   ConnectionInfo
}

// LogMessage is delivered to logger pollers.
type LogMessage struct {
	Logger   ListenerHandle
	Level    LogLevel
	Filename string
	Line     int
	Message  string
}
