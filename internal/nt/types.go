package nt

import (
	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/value"
)

// Engine types used unchanged by the application API.
type (
	NotifyFlags    = engine.NotifyFlags
	EntryFlags     = engine.EntryFlags
	EntryInfo      = engine.EntryInfo
	ConnectionInfo = engine.ConnectionInfo
	NetworkMode    = engine.NetworkMode
	LogLevel       = engine.LogLevel
	ServerPort     = engine.ServerPort
	Listener       = engine.ListenerHandle
)

const (
	NotifyImmediate    = engine.NotifyImmediate
	NotifyLocal        = engine.NotifyLocal
	NotifyNew          = engine.NotifyNew
	NotifyDelete       = engine.NotifyDelete
	NotifyUpdate       = engine.NotifyUpdate
	NotifyFlagsChanged = engine.NotifyFlagsChanged

	Persistent = engine.FlagPersistent

	// DefaultPort is the port servers listen on and clients connect to
	// when none is given.
	DefaultPort = engine.DefaultPort

	// DefaultPersistFile is the persist file used by StartServer.
	DefaultPersistFile = "networktables.db"
)

// Category is a listener category.
type Category int

const (
	CategoryEntry Category = iota
	CategoryConnection
	CategoryRpc
	CategoryLogger
)

func (c Category) String() string {
	switch c {
	case CategoryEntry:
		return "entry"
	case CategoryConnection:
		return "connection"
	case CategoryRpc:
		return "rpc"
	case CategoryLogger:
		return "logger"
	default:
		return "unknown"
	}
}

// ListenerState is the lifecycle state of one listener category.
type ListenerState int

const (
	// NotStarted: no listener was ever registered; no goroutine, no poller.
	NotStarted ListenerState = iota
	// Running: a worker is polling the engine.
	Running
	// Stopping: the worker was asked to stop and is being joined.
	Stopping
	// Stopped: the worker has exited. Registering a listener starts it again.
	Stopped
)

func (s ListenerState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EntryEvent is passed to entry listeners.
type EntryEvent struct {
	Listener Listener
	Entry    Entry
	Name     string
	Value    value.Value
	Flags    NotifyFlags
}

// ConnectionEvent is passed to connection listeners.
type ConnectionEvent struct {
	Listener  Listener
	Connected bool
	Conn      ConnectionInfo
}

// LogMessage is passed to loggers.
type LogMessage struct {
	Logger   Listener
	Level    LogLevel
	Filename string
	Line     int
	Message  string
}
