package engine

import (
	"context"
	"time"

	"github.com/roach88/ntcore/internal/value"
)

// Engine is the synchronization engine behind an nt.Instance.
//
// Thread-safety model:
//   - every method is safe from any goroutine
//   - Poll* methods block; every other method returns promptly
//   - Poll*Timeout methods report timedOut instead of blocking past the
//     timeout; a timeout <= 0 never blocks
//   - a poller is drained by one goroutine at a time
//
// Unknown handles are not an error for lookups: they yield zero values.
// Mutations on unknown handles return an error wrapping ErrInvalidHandle.
type Engine interface {
	// Instances.
	DefaultInstance() InstanceHandle
	CreateInstance() InstanceHandle
	DestroyInstance(inst InstanceHandle)

	// Entries.
	GetEntry(inst InstanceHandle, name string) EntryHandle
	GetEntries(inst InstanceHandle, prefix string, mask value.KindMask) []EntryHandle
	GetEntryInfo(inst InstanceHandle, prefix string, mask value.KindMask) []EntryInfo
	EntryName(entry EntryHandle) string
	EntryType(entry EntryHandle) value.Kind
	EntryFlags(entry EntryHandle) EntryFlags
	EntryLastChange(entry EntryHandle) int64
	EntryInfo(entry EntryHandle) EntryInfo
	EntryValue(entry EntryHandle) value.Value
	SetEntryValue(entry EntryHandle, v value.Value) error
	SetDefaultEntryValue(entry EntryHandle, v value.Value) bool
	SetEntryTypeValue(entry EntryHandle, v value.Value) error
	SetEntryFlags(entry EntryHandle, flags EntryFlags)
	// ChangeEntryFlags sets the bits in set and then clears the bits in
	// clear as one step.
	ChangeEntryFlags(entry EntryHandle, set, clear EntryFlags)
	DeleteEntry(entry EntryHandle)
	DeleteAllEntries(inst InstanceHandle)

	// Network.
	SetNetworkIdentity(inst InstanceHandle, name string)
	NetworkMode(inst InstanceHandle) NetworkMode
	StartServer(inst InstanceHandle, persistFile, listenAddress string, port int) error
	StopServer(inst InstanceHandle)
	StartClient(inst InstanceHandle, servers []ServerPort) error
	StartClientTeam(inst InstanceHandle, team, port int) error
	StopClient(inst InstanceHandle)
	SetServer(inst InstanceHandle, servers []ServerPort)
	SetServerTeam(inst InstanceHandle, team, port int)
	StartDSClient(inst InstanceHandle, port int)
	StopDSClient(inst InstanceHandle)
	SetUpdateRate(inst InstanceHandle, interval float64)
	Flush(inst InstanceHandle)
	Connections(inst InstanceHandle) []ConnectionInfo
	IsConnected(inst InstanceHandle) bool

	// Persistence.
	SavePersistent(ctx context.Context, inst InstanceHandle, filename string) error
	LoadPersistent(ctx context.Context, inst InstanceHandle, filename string) ([]string, error)
	SaveEntries(ctx context.Context, inst InstanceHandle, filename, prefix string) error
	LoadEntries(ctx context.Context, inst InstanceHandle, filename, prefix string) ([]string, error)

	// Entry listeners.
	CreateEntryListenerPoller(inst InstanceHandle) PollerHandle
	DestroyEntryListenerPoller(poller PollerHandle)
	AddPolledEntryListener(poller PollerHandle, prefix string, flags NotifyFlags) ListenerHandle
	AddPolledEntryListenerEntry(poller PollerHandle, entry EntryHandle, flags NotifyFlags) ListenerHandle
	PollEntryListener(poller PollerHandle) ([]EntryNotification, error)
	PollEntryListenerTimeout(poller PollerHandle, timeout time.Duration) ([]EntryNotification, bool, error)
	CancelPollEntryListener(poller PollerHandle)
	RemoveEntryListener(listener ListenerHandle)

	// Connection listeners.
	CreateConnectionListenerPoller(inst InstanceHandle) PollerHandle
	DestroyConnectionListenerPoller(poller PollerHandle)
	AddPolledConnectionListener(poller PollerHandle, immediateNotify bool) ListenerHandle
	PollConnectionListener(poller PollerHandle) ([]ConnectionNotification, error)
	PollConnectionListenerTimeout(poller PollerHandle, timeout time.Duration) ([]ConnectionNotification, bool, error)
	CancelPollConnectionListener(poller PollerHandle)
	RemoveConnectionListener(listener ListenerHandle)

	// Rpc.
	CreateRpcCallPoller(inst InstanceHandle) PollerHandle
	DestroyRpcCallPoller(poller PollerHandle)
	CreatePolledRpc(entry EntryHandle, def []byte, poller PollerHandle) error
	PollRpc(poller PollerHandle) ([]RpcAnswer, error)
	CancelPollRpc(poller PollerHandle)
	PostRpcResponse(entry EntryHandle, call RpcCallHandle, result []byte) bool
	CallRpc(entry EntryHandle, params []byte) (RpcCallHandle, error)
	RpcResult(ctx context.Context, entry EntryHandle, call RpcCallHandle) ([]byte, error)

	// Loggers.
	CreateLoggerPoller(inst InstanceHandle) PollerHandle
	DestroyLoggerPoller(poller PollerHandle)
	AddPolledLogger(poller PollerHandle, minLevel, maxLevel LogLevel) ListenerHandle
	PollLogger(poller PollerHandle) ([]LogMessage, error)
	CancelPollLogger(poller PollerHandle)
	RemoveLogger(listener ListenerHandle)
}

// Compile-time check.
var _ Engine = (*Local)(nil)
