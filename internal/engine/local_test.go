package engine

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ntcore/internal/store"
	"github.com/roach88/ntcore/internal/value"
)

func newTestLocal(ids ...string) *Local {
	opts := []LocalOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	if len(ids) > 0 {
		opts = append(opts, WithIdentityGenerator(NewFixedGenerator(ids...)))
	}
	return NewLocal(opts...)
}

// drainEntries returns the notifications already queued on p without blocking.
func drainEntries(t *testing.T, l *Local, p PollerHandle) []EntryNotification {
	t.Helper()
	got, _, err := l.PollEntryListenerTimeout(p, 0)
	require.NoError(t, err)
	return got
}

func drainConns(t *testing.T, l *Local, p PollerHandle) []ConnectionNotification {
	t.Helper()
	got, _, err := l.PollConnectionListenerTimeout(p, 0)
	require.NoError(t, err)
	return got
}

func TestLocal_PollTimeoutUnknownPoller(t *testing.T) {
	l := newTestLocal()
	_, _, err := l.PollEntryListenerTimeout(PollerHandle(999), 0)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, _, err = l.PollConnectionListenerTimeout(PollerHandle(999), 0)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestLocal_DefaultInstanceIsStable(t *testing.T) {
	l := newTestLocal()
	a := l.DefaultInstance()
	b := l.DefaultInstance()
	assert.NotZero(t, a)
	assert.Equal(t, a, b)

	l.DestroyInstance(a)
	assert.NotZero(t, l.GetEntry(a, "/x"), "default instance survives destroy")
}

func TestLocal_EntryHandlesAreStable(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()

	h1 := l.GetEntry(inst, "/a")
	h2 := l.GetEntry(inst, "/a")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, l.GetEntry(inst, "/b"))

	assert.Zero(t, l.GetEntry(InstanceHandle(9999), "/a"))
}

func TestLocal_SetEntryValueKeepsKind(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	h := l.GetEntry(inst, "/speed")

	require.NoError(t, l.SetEntryValue(h, value.MakeDouble(1.5)))
	assert.Equal(t, value.KindDouble, l.EntryType(h))
	assert.Equal(t, "/speed", l.EntryName(h))

	err := l.SetEntryValue(h, value.MakeString("fast"))
	assert.ErrorIs(t, err, value.ErrTypeMismatch)

	require.NoError(t, l.SetEntryTypeValue(h, value.MakeString("fast")))
	assert.True(t, l.EntryValue(h).Equal(value.MakeString("fast")))

	err = l.SetEntryValue(h, value.MakeEmpty())
	assert.ErrorIs(t, err, value.ErrInvalidArgument)

	err = l.SetEntryValue(EntryHandle(9999), value.MakeDouble(1))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestLocal_SetDefaultEntryValue(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	h := l.GetEntry(inst, "/d")

	assert.True(t, l.SetDefaultEntryValue(h, value.MakeDouble(1)))
	assert.True(t, l.SetDefaultEntryValue(h, value.MakeDouble(2)))
	assert.False(t, l.SetDefaultEntryValue(h, value.MakeBoolean(true)))

	got, err := l.EntryValue(h).GetDouble()
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestLocal_GetEntriesFiltersByPrefixAndMask(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	require.NoError(t, l.SetEntryValue(l.GetEntry(inst, "/a/x"), value.MakeDouble(1)))
	require.NoError(t, l.SetEntryValue(l.GetEntry(inst, "/a/y"), value.MakeString("s")))
	require.NoError(t, l.SetEntryValue(l.GetEntry(inst, "/b/z"), value.MakeDouble(2)))
	l.GetEntry(inst, "/a/unset")

	infos := l.GetEntryInfo(inst, "/a/", value.AllKinds)
	require.Len(t, infos, 2)
	assert.Equal(t, "/a/x", infos[0].Name)
	assert.Equal(t, "/a/y", infos[1].Name)

	doubles := l.GetEntries(inst, "", value.Mask(value.KindDouble))
	assert.Len(t, doubles, 2)
}

func TestLocal_DeleteAllEntriesKeepsPersistent(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	keep := l.GetEntry(inst, "/keep")
	drop := l.GetEntry(inst, "/drop")
	require.NoError(t, l.SetEntryValue(keep, value.MakeBoolean(true)))
	require.NoError(t, l.SetEntryValue(drop, value.MakeBoolean(true)))
	l.SetEntryFlags(keep, FlagPersistent)

	l.DeleteAllEntries(inst)

	assert.Equal(t, value.KindBoolean, l.EntryType(keep))
	assert.Equal(t, FlagPersistent, l.EntryFlags(keep))
	assert.Equal(t, value.KindUnassigned, l.EntryType(drop))
}

func TestLocal_ChangeEntryFlags(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	h := l.GetEntry(inst, "/f")
	require.NoError(t, l.SetEntryValue(h, value.MakeBoolean(true)))

	l.ChangeEntryFlags(h, FlagPersistent|0x04, 0)
	assert.Equal(t, FlagPersistent|0x04, l.EntryFlags(h))

	l.ChangeEntryFlags(h, 0x02, 0x04)
	assert.Equal(t, FlagPersistent|0x02, l.EntryFlags(h))

	// Flags live on existing entries only.
	missing := l.GetEntry(inst, "/missing")
	l.ChangeEntryFlags(missing, FlagPersistent, 0)
	assert.Zero(t, l.EntryFlags(missing))
}

func TestLocal_EntryListenerFlags(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	p := l.CreateEntryListenerPoller(inst)
	withLocal := l.AddPolledEntryListener(p, "/", NotifyNew|NotifyUpdate|NotifyDelete|NotifyLocal)
	remoteOnly := l.AddPolledEntryListener(p, "/", NotifyNew)

	h := l.GetEntry(inst, "/v")
	require.NoError(t, l.SetEntryValue(h, value.MakeDouble(1)))
	require.NoError(t, l.SetEntryValue(h, value.MakeDouble(1))) // unchanged
	require.NoError(t, l.SetEntryValue(h, value.MakeDouble(2)))
	l.DeleteEntry(h)

	got := drainEntries(t, l, p)
	require.Len(t, got, 3)
	for _, n := range got {
		assert.Equal(t, withLocal, n.Listener)
		assert.NotEqual(t, remoteOnly, n.Listener)
	}
	assert.Equal(t, NotifyLocal|NotifyNew, got[0].Flags)
	assert.Equal(t, NotifyLocal|NotifyUpdate, got[1].Flags)
	assert.Equal(t, NotifyLocal|NotifyDelete, got[2].Flags)
	assert.True(t, got[2].Value.Equal(value.MakeDouble(2)), "delete carries the old value")
}

func TestLocal_EntryListenerImmediate(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	h := l.GetEntry(inst, "/t/a")
	require.NoError(t, l.SetEntryValue(h, value.MakeString("x")))
	require.NoError(t, l.SetEntryValue(l.GetEntry(inst, "/other"), value.MakeString("y")))

	p := l.CreateEntryListenerPoller(inst)
	l.AddPolledEntryListener(p, "/t/", NotifyImmediate|NotifyNew)
	l.AddPolledEntryListenerEntry(p, h, NotifyImmediate|NotifyLocal)

	got := drainEntries(t, l, p)
	require.Len(t, got, 2)
	for _, n := range got {
		assert.Equal(t, "/t/a", n.Name)
		assert.Equal(t, NotifyImmediate|NotifyNew, n.Flags)
	}
}

func TestLocal_RemovedListenerGetsNothing(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	p := l.CreateEntryListenerPoller(inst)
	lh := l.AddPolledEntryListener(p, "", NotifyLocal)
	l.RemoveEntryListener(lh)

	require.NoError(t, l.SetEntryValue(l.GetEntry(inst, "/x"), value.MakeBoolean(false)))
	assert.Empty(t, drainEntries(t, l, p))
}

func TestLocal_CancelUnblocksPoll(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	p := l.CreateEntryListenerPoller(inst)

	done := make(chan error, 1)
	go func() {
		_, err := l.PollEntryListener(p)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	l.CancelPollEntryListener(p)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPollCancelled)
	case <-time.After(time.Second):
		t.Fatal("poll did not unblock")
	}
}

func TestLocal_DestroyInstanceInvalidatesPollers(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	p := l.CreateLoggerPoller(inst)
	l.AddPolledLogger(p, LogDebug4, LogCritical)

	done := make(chan error, 1)
	go func() {
		_, err := l.PollLogger(p)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	l.DestroyInstance(inst)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInvalidHandle)
	case <-time.After(time.Second):
		t.Fatal("poll did not unblock")
	}

	_, err := l.PollLogger(p)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.Zero(t, l.GetEntry(inst, "/x"))
}

func TestLocal_ServerClientPropagation(t *testing.T) {
	l := newTestLocal()
	srv := l.CreateInstance()
	cli := l.CreateInstance()
	l.SetNetworkIdentity(srv, "robot")
	l.SetNetworkIdentity(cli, "dashboard")

	require.NoError(t, l.SetEntryValue(l.GetEntry(srv, "/srv"), value.MakeDouble(1)))
	require.NoError(t, l.SetEntryValue(l.GetEntry(cli, "/cli"), value.MakeDouble(2)))

	srvConns := l.CreateConnectionListenerPoller(srv)
	l.AddPolledConnectionListener(srvConns, false)
	cliEntries := l.CreateEntryListenerPoller(cli)
	l.AddPolledEntryListener(cliEntries, "/", NotifyNew|NotifyUpdate)

	require.NoError(t, l.StartServer(srv, "", "", 0))
	require.NoError(t, l.StartClient(cli, []ServerPort{{Host: "localhost", Port: DefaultPort}}))

	assert.Equal(t, NetworkServer, l.NetworkMode(srv))
	assert.Equal(t, NetworkClient, l.NetworkMode(cli))
	assert.True(t, l.IsConnected(cli))
	require.Len(t, l.Connections(cli), 1)
	assert.Equal(t, "robot", l.Connections(cli)[0].RemoteID)
	assert.Equal(t, uint32(ProtocolVersion), l.Connections(cli)[0].ProtocolVersion)

	conns := drainConns(t, l, srvConns)
	require.Len(t, conns, 1)
	assert.True(t, conns[0].Connected)
	assert.Equal(t, "dashboard", conns[0].Conn.RemoteID)

	// Initial sync in both directions.
	assert.True(t, l.EntryValue(l.GetEntry(cli, "/srv")).Equal(value.MakeDouble(1)))
	assert.True(t, l.EntryValue(l.GetEntry(srv, "/cli")).Equal(value.MakeDouble(2)))

	got := drainEntries(t, l, cliEntries)
	require.Len(t, got, 1)
	assert.Equal(t, "/srv", got[0].Name)
	assert.Equal(t, NotifyNew, got[0].Flags, "remote changes carry no local flag")

	// Later writes reach the peer before the call returns.
	require.NoError(t, l.SetEntryValue(l.GetEntry(srv, "/srv"), value.MakeDouble(3)))
	got = drainEntries(t, l, cliEntries)
	require.Len(t, got, 1)
	assert.Equal(t, NotifyUpdate, got[0].Flags)

	l.StopServer(srv)
	assert.False(t, l.IsConnected(cli))
	assert.Equal(t, NetworkClient|NetworkStarting, l.NetworkMode(cli))
	conns = drainConns(t, l, srvConns)
	require.Len(t, conns, 1)
	assert.False(t, conns[0].Connected)
}

func TestLocal_ClientsReachEachOtherThroughServer(t *testing.T) {
	l := newTestLocal("srv", "a", "b")
	srv := l.CreateInstance()
	a := l.CreateInstance()
	b := l.CreateInstance()

	require.NoError(t, l.StartClient(a, []ServerPort{{Host: "127.0.0.1"}}))
	require.NoError(t, l.StartClient(b, []ServerPort{{Host: "127.0.0.1"}}))
	assert.False(t, l.IsConnected(a), "no server yet")

	require.NoError(t, l.StartServer(srv, "", "127.0.0.1", DefaultPort))
	assert.True(t, l.IsConnected(a), "pending clients connect when the server starts")
	assert.True(t, l.IsConnected(b))

	require.NoError(t, l.SetEntryValue(l.GetEntry(a, "/shared"), value.MakeString("hi")))
	assert.True(t, l.EntryValue(l.GetEntry(b, "/shared")).Equal(value.MakeString("hi")))

	l.DeleteEntry(l.GetEntry(b, "/shared"))
	assert.Equal(t, value.KindUnassigned, l.EntryType(l.GetEntry(a, "/shared")))
}

func TestLocal_StartServerAddressInUse(t *testing.T) {
	l := newTestLocal()
	first := l.CreateInstance()
	second := l.CreateInstance()

	require.NoError(t, l.StartServer(first, "", "", 5800))
	err := l.StartServer(second, "", "", 5800)
	assert.ErrorIs(t, err, ErrAddressInUse)
	assert.Equal(t, NetworkFailure, l.NetworkMode(second)&NetworkFailure)
}

func TestLocal_StartClientWithoutServers(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()

	err := l.StartClient(inst, nil)
	assert.ErrorIs(t, err, value.ErrInvalidArgument)

	l.SetServer(inst, []ServerPort{{Host: "localhost"}})
	require.NoError(t, l.StartClient(inst, nil))
	assert.Equal(t, NetworkClient|NetworkStarting, l.NetworkMode(inst))
}

func TestLocal_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "networktables.db")
	l := newTestLocal("saver")

	src := l.CreateInstance()
	p := l.GetEntry(src, "/cfg/gain")
	require.NoError(t, l.SetEntryValue(p, value.MakeDoubleArray(0.5, 1.5)))
	l.SetEntryFlags(p, FlagPersistent)
	require.NoError(t, l.SetEntryValue(l.GetEntry(src, "/volatile"), value.MakeBoolean(true)))

	require.NoError(t, l.SavePersistent(ctx, src, path))

	dst := l.CreateInstance()
	warnings, err := l.LoadPersistent(ctx, dst, path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	h := l.GetEntry(dst, "/cfg/gain")
	assert.True(t, l.EntryValue(h).Equal(value.MakeDoubleArray(0.5, 1.5)))
	assert.Equal(t, FlagPersistent, l.EntryFlags(h))
	assert.Equal(t, value.KindUnassigned, l.EntryType(l.GetEntry(dst, "/volatile")))
}

func TestLocal_SaveEntriesByPrefix(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entries.db")
	l := newTestLocal("saver")

	src := l.CreateInstance()
	require.NoError(t, l.SetEntryValue(l.GetEntry(src, "/a/x"), value.MakeDouble(1)))
	require.NoError(t, l.SetEntryValue(l.GetEntry(src, "/b/y"), value.MakeDouble(2)))
	require.NoError(t, l.SaveEntries(ctx, src, path, "/a/"))

	dst := l.CreateInstance()
	_, err := l.LoadEntries(ctx, dst, path, "")
	require.NoError(t, err)
	assert.Len(t, l.GetEntries(dst, "", value.AllKinds), 1)
	assert.Equal(t, EntryFlags(0), l.EntryFlags(l.GetEntry(dst, "/a/x")))
}

func TestLocal_LoadMissingFileIsPersistentError(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()

	_, err := l.LoadPersistent(context.Background(), inst, filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.True(t, store.IsPersistentError(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocal_StopServerSavesPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.db")
	l := newTestLocal("srv", "srv2")

	srv := l.CreateInstance()
	require.NoError(t, l.StartServer(srv, path, "", 0))
	h := l.GetEntry(srv, "/p")
	require.NoError(t, l.SetEntryValue(h, value.MakeString("kept")))
	l.SetEntryFlags(h, FlagPersistent)
	l.StopServer(srv)

	again := l.CreateInstance()
	require.NoError(t, l.StartServer(again, path, "", 0))
	assert.True(t, l.EntryValue(l.GetEntry(again, "/p")).Equal(value.MakeString("kept")))
	assert.Equal(t, FlagPersistent, l.EntryFlags(l.GetEntry(again, "/p")))
}

func TestLocal_Rpc(t *testing.T) {
	l := newTestLocal("srv", "cli")
	srv := l.CreateInstance()
	cli := l.CreateInstance()
	require.NoError(t, l.StartServer(srv, "", "", 0))
	require.NoError(t, l.StartClient(cli, []ServerPort{{Host: "localhost"}}))

	poller := l.CreateRpcCallPoller(srv)
	srvEntry := l.GetEntry(srv, "/rpc/add")
	require.NoError(t, l.CreatePolledRpc(srvEntry, []byte{1}, poller))
	assert.Equal(t, value.KindRpc, l.EntryType(l.GetEntry(cli, "/rpc/add")))

	cliEntry := l.GetEntry(cli, "/rpc/add")
	call, err := l.CallRpc(cliEntry, []byte{2, 3})
	require.NoError(t, err)

	answers, err := l.PollRpc(poller)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "/rpc/add", answers[0].Name)
	assert.Equal(t, []byte{2, 3}, answers[0].Params)
	assert.Equal(t, "cli", answers[0].Conn.RemoteID)

	assert.True(t, l.PostRpcResponse(answers[0].Entry, answers[0].Call, []byte{5}))
	assert.False(t, l.PostRpcResponse(answers[0].Entry, answers[0].Call, []byte{6}), "second answer is rejected")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := l.RpcResult(ctx, cliEntry, call)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, res)
}

func TestLocal_CallRpcWithoutServer(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	_, err := l.CallRpc(l.GetEntry(inst, "/nobody"), nil)
	assert.ErrorIs(t, err, ErrNoRpcServer)
}

func TestLocal_RpcResultHonorsContext(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	poller := l.CreateRpcCallPoller(inst)
	h := l.GetEntry(inst, "/rpc")
	require.NoError(t, l.CreatePolledRpc(h, nil, poller))

	call, err := l.CallRpc(h, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.RpcResult(ctx, h, call)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocal_LoggerLevels(t *testing.T) {
	l := newTestLocal()
	inst := l.CreateInstance()
	p := l.CreateLoggerPoller(inst)
	l.AddPolledLogger(p, LogInfo, LogCritical)

	require.NoError(t, l.StartServer(inst, "", "", 5900))
	l.Flush(inst) // debug level, filtered

	msgs, err := l.PollLogger(p)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, LogInfo, msgs[0].Level)
	assert.Contains(t, msgs[0].Message, "server listening on")
	assert.Equal(t, "local_network.go", msgs[0].Filename)
	assert.Positive(t, msgs[0].Line)
}

func TestTeamServers(t *testing.T) {
	servers := TeamServers(294, 0)
	require.Len(t, servers, 5)
	assert.Equal(t, ServerPort{Host: "10.2.94.2", Port: DefaultPort}, servers[0])
	assert.Equal(t, "roboRIO-294-FRC.local", servers[1].Host)
	assert.Equal(t, "172.22.11.2", servers[2].Host)
	assert.Equal(t, "roboRIO-294-FRC.lan", servers[3].Host)
	assert.Equal(t, "roboRIO-294-FRC.frc-field.local", servers[4].Host)
}

func TestNotifyFlagsString(t *testing.T) {
	assert.Equal(t, "none", NotifyNone.String())
	assert.Equal(t, "local|new", (NotifyNew | NotifyLocal).String())
	assert.Equal(t, "server", NetworkServer.String())
	assert.Equal(t, "client|starting", (NetworkClient | NetworkStarting).String())
	assert.Equal(t, "WARNING", LogWarning.String())
}
