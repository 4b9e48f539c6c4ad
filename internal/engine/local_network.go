package engine

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"

	"github.com/roach88/ntcore/internal/store"
	"github.com/roach88/ntcore/internal/value"
)

// DefaultDSPort is the driver station port StartDSClient uses when given 0.
const DefaultDSPort = 1742

type serverState struct {
	persistFile   string
	listenAddress string
	port          int
	key           string
}

type clientState struct {
	servers []ServerPort
}

// link is one side of a connection. info describes the remote side.
type link struct {
	peer InstanceHandle
	info ConnectionInfo
}

func listenKey(host string, port int) string {
	if host == "0.0.0.0" || host == "::" {
		host = ""
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// lookupServerLocked finds the instance serving sp, preferring an exact
// address match over a wildcard listener.
func (l *Local) lookupServerLocked(sp ServerPort) (*instance, bool) {
	for _, key := range []string{listenKey(sp.Host, sp.Port), listenKey("", sp.Port)} {
		if h, ok := l.servers[key]; ok {
			if in := l.instances[h]; in != nil {
				return in, true
			}
		}
	}
	return nil, false
}

// identityLocked returns the network identity of in, generating one the
// first time it is needed.
func (l *Local) identityLocked(in *instance) string {
	if in.identity == "" {
		in.identity = l.ids.Generate()
	}
	return in.identity
}

func (l *Local) SetNetworkIdentity(inst InstanceHandle, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in := l.instanceLocked(inst); in != nil {
		in.identity = name
	}
}

func (l *Local) NetworkMode(inst InstanceHandle) NetworkMode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in := l.instanceLocked(inst); in != nil {
		return in.mode
	}
	return NetworkNone
}

// StartServer starts serving on listenAddress:port. If persistFile names an
// existing file its entries are loaded first as persistent entries. Starting
// an instance that is already a server or client does nothing.
func (l *Local) StartServer(inst InstanceHandle, persistFile, listenAddress string, port int) error {
	if port == 0 {
		port = DefaultPort
	}

	var loaded *loadResult
	if persistFile != "" && store.Exists(persistFile) {
		res, err := readFile(context.Background(), persistFile, "")
		if err != nil {
			l.logf(inst, LogWarning, "could not load persistent file %s: %v", persistFile, err)
		} else {
			loaded = res
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return invalid("start server", inst)
	}
	if in.mode&(NetworkServer|NetworkClient) != 0 {
		return nil
	}
	key := listenKey(listenAddress, port)
	if _, taken := l.servers[key]; taken {
		in.mode |= NetworkFailure
		l.logLocked(in, LogError, "could not listen on %s: address in use", key)
		return fmt.Errorf("start server %s: %w", key, ErrAddressInUse)
	}

	if loaded != nil {
		for _, w := range loaded.warnings {
			l.logLocked(in, LogWarning, "%s: %s", persistFile, w)
		}
		l.applyRecordsLocked(in, loaded.records, true)
	}

	in.server = &serverState{
		persistFile:   persistFile,
		listenAddress: listenAddress,
		port:          port,
		key:           key,
	}
	in.mode = NetworkServer
	l.servers[key] = inst
	l.logLocked(in, LogInfo, "server listening on %s", key)

	l.connectPendingLocked()
	return nil
}

// StopServer disconnects every client and saves persistent entries to the
// persist file given to StartServer.
func (l *Local) StopServer(inst InstanceHandle) {
	l.mu.Lock()
	in := l.instanceLocked(inst)
	if in == nil {
		l.mu.Unlock()
		return
	}
	save := l.stopServerLocked(in)
	l.mu.Unlock()

	save.run(l)
}

// stopServerLocked tears the server down and returns the pending save.
func (l *Local) stopServerLocked(in *instance) pendingSave {
	if in.server == nil {
		return pendingSave{}
	}
	srv := in.server
	var save pendingSave
	if srv.persistFile != "" {
		save = pendingSave{
			inst:     in.handle,
			path:     srv.persistFile,
			identity: l.identityLocked(in),
			records:  snapshotLocked(in, "", true),
		}
	}
	l.disconnectAllLocked(in)
	delete(l.servers, srv.key)
	in.server = nil
	in.mode &^= NetworkServer | NetworkFailure
	l.logLocked(in, LogInfo, "server stopped on %s", srv.key)
	return save
}

// StartClient starts a client that connects to the first reachable server.
// With no servers, the list given to SetServer is used.
func (l *Local) StartClient(inst InstanceHandle, servers []ServerPort) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return invalid("start client", inst)
	}
	if in.mode&(NetworkServer|NetworkClient) != 0 {
		return nil
	}
	if len(servers) == 0 {
		servers = in.serverList
	}
	if len(servers) == 0 {
		return fmt.Errorf("start client: %w: no servers", value.ErrInvalidArgument)
	}
	in.client = &clientState{servers: withDefaultPorts(servers)}
	in.mode = NetworkClient | NetworkStarting
	l.logLocked(in, LogInfo, "client started")
	l.tryConnectLocked(in)
	return nil
}

// StartClientTeam starts a client trying the addresses of a team's robot.
func (l *Local) StartClientTeam(inst InstanceHandle, team, port int) error {
	return l.StartClient(inst, TeamServers(team, port))
}

func (l *Local) StopClient(inst InstanceHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in := l.instanceLocked(inst); in != nil {
		l.stopClientLocked(in)
	}
}

func (l *Local) stopClientLocked(in *instance) {
	if in.client == nil {
		return
	}
	l.disconnectAllLocked(in)
	in.client = nil
	in.mode &^= NetworkClient | NetworkStarting
	l.logLocked(in, LogInfo, "client stopped")
}

// SetServer replaces the server list. A running client that is not
// connected to a server in the new list reconnects.
func (l *Local) SetServer(inst InstanceHandle, servers []ServerPort) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return
	}
	servers = withDefaultPorts(servers)
	in.serverList = servers
	if in.client == nil {
		return
	}
	in.client.servers = servers

	for _, ln := range slices.Clone(in.peers) {
		peer := l.instances[ln.peer]
		if peer == nil || peer.server == nil || !servesAny(peer.server, servers) {
			l.disconnectLocked(in, ln.peer)
		}
	}
	if len(in.peers) == 0 {
		l.tryConnectLocked(in)
	}
}

func (l *Local) SetServerTeam(inst InstanceHandle, team, port int) {
	l.SetServer(inst, TeamServers(team, port))
}

func servesAny(srv *serverState, servers []ServerPort) bool {
	for _, sp := range servers {
		if sp.Port != srv.port {
			continue
		}
		if srv.key == listenKey("", srv.port) || listenKey(sp.Host, sp.Port) == srv.key {
			return true
		}
	}
	return false
}

func withDefaultPorts(servers []ServerPort) []ServerPort {
	out := make([]ServerPort, len(servers))
	for i, sp := range servers {
		if sp.Port == 0 {
			sp.Port = DefaultPort
		}
		out[i] = sp
	}
	return out
}

// StartDSClient records that the server address should be taken from the
// driver station. Local has no driver station to ask, so the current
// server list stays in effect.
func (l *Local) StartDSClient(inst InstanceHandle, port int) {
	if port == 0 {
		port = DefaultDSPort
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if in := l.instanceLocked(inst); in != nil {
		in.dsPort = port
		l.logLocked(in, LogInfo, "driver station client started on port %d", port)
	}
}

func (l *Local) StopDSClient(inst InstanceHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in := l.instanceLocked(inst); in != nil && in.dsPort != 0 {
		in.dsPort = 0
		l.logLocked(in, LogInfo, "driver station client stopped")
	}
}

// SetUpdateRate sets the flush interval in seconds, clamped to [0.01, 1.0].
func (l *Local) SetUpdateRate(inst InstanceHandle, interval float64) {
	interval = max(0.01, min(interval, 1.0))

	l.mu.Lock()
	defer l.mu.Unlock()

	if in := l.instanceLocked(inst); in != nil {
		in.updateRate = interval
		l.logLocked(in, LogDebug, "update rate set to %gs", interval)
	}
}

// Flush does nothing: writes reach linked instances before they return.
func (l *Local) Flush(inst InstanceHandle) {
	l.logf(inst, LogDebug4, "flush")
}

func (l *Local) Connections(inst InstanceHandle) []ConnectionInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return nil
	}
	out := make([]ConnectionInfo, 0, len(in.peers))
	for _, ln := range in.peers {
		out = append(out, ln.info)
	}
	return out
}

func (l *Local) IsConnected(inst InstanceHandle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	return in != nil && len(in.peers) > 0
}

// connectPendingLocked retries every started client without a connection.
func (l *Local) connectPendingLocked() {
	for _, h := range l.sortedInstanceHandles() {
		in := l.instances[h]
		if in.client != nil && len(in.peers) == 0 {
			l.tryConnectLocked(in)
		}
	}
}

func (l *Local) sortedInstanceHandles() []InstanceHandle {
	handles := make([]InstanceHandle, 0, len(l.instances))
	for h := range l.instances {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	return handles
}

func (l *Local) tryConnectLocked(in *instance) bool {
	for _, sp := range in.client.servers {
		srv, ok := l.lookupServerLocked(sp)
		if !ok || srv == in {
			continue
		}
		l.connectLocked(in, srv, sp)
		return true
	}
	l.logLocked(in, LogDebug, "no server reachable")
	return false
}

// connectLocked links client to srv and synchronizes their entries: the
// server's entries win, entries only the client has are sent to the server.
func (l *Local) connectLocked(client, srv *instance, sp ServerPort) {
	now := l.clock.Next()
	toServer := &link{peer: srv.handle, info: ConnectionInfo{
		RemoteID:        l.identityLocked(srv),
		RemoteIP:        sp.Host,
		RemotePort:      sp.Port,
		LastUpdate:      now,
		ProtocolVersion: ProtocolVersion,
	}}
	toClient := &link{peer: client.handle, info: ConnectionInfo{
		RemoteID:        l.identityLocked(client),
		RemoteIP:        "127.0.0.1",
		RemotePort:      int(client.handle),
		LastUpdate:      now,
		ProtocolVersion: ProtocolVersion,
	}}
	client.peers = append(client.peers, toServer)
	srv.peers = append(srv.peers, toClient)
	client.mode = NetworkClient

	l.logLocked(client, LogInfo, "connected to server %s (%s)", toServer.info.RemoteID, net.JoinHostPort(sp.Host, strconv.Itoa(sp.Port)))
	l.logLocked(srv, LogInfo, "client %s connected", toClient.info.RemoteID)
	l.notifyConnectionLocked(client, true, toServer.info)
	l.notifyConnectionLocked(srv, true, toClient.info)

	for _, e := range sortedEntries(srv, "", value.AllKinds) {
		ce := l.entryFor(client, e.name)
		l.storeLocked(client, ce, e.value, NotifyNone)
		l.setFlagsLocked(client, ce, e.flags, NotifyNone)
	}
	for _, e := range sortedEntries(client, "", value.AllKinds) {
		if se := srv.entries[e.name]; se != nil && se.exists() {
			continue
		}
		se := l.entryFor(srv, e.name)
		l.storeLocked(srv, se, e.value, NotifyNone)
		l.setFlagsLocked(srv, se, e.flags, NotifyNone)
		name, v, flags := e.name, e.value, e.flags
		l.propagateLocked(srv, func(peer *instance) {
			pe := l.entryFor(peer, name)
			l.storeLocked(peer, pe, v, NotifyNone)
			l.setFlagsLocked(peer, pe, flags, NotifyNone)
		})
	}
}

func (l *Local) disconnectAllLocked(in *instance) {
	for _, ln := range slices.Clone(in.peers) {
		l.disconnectLocked(in, ln.peer)
	}
}

// disconnectLocked removes the link between in and peer on both sides. A
// client losing its server goes back to starting and reconnects when a
// matching server appears.
func (l *Local) disconnectLocked(in *instance, peerHandle InstanceHandle) {
	peer := l.instances[peerHandle]
	var inInfo, peerInfo ConnectionInfo
	in.peers = slices.DeleteFunc(in.peers, func(ln *link) bool {
		if ln.peer == peerHandle {
			inInfo = ln.info
			return true
		}
		return false
	})
	l.notifyConnectionLocked(in, false, inInfo)
	l.logLocked(in, LogInfo, "disconnected from %s", inInfo.RemoteID)

	if peer == nil {
		return
	}
	peer.peers = slices.DeleteFunc(peer.peers, func(ln *link) bool {
		if ln.peer == in.handle {
			peerInfo = ln.info
			return true
		}
		return false
	})
	l.notifyConnectionLocked(peer, false, peerInfo)
	l.logLocked(peer, LogInfo, "disconnected from %s", peerInfo.RemoteID)

	for _, side := range []*instance{in, peer} {
		if side.client != nil && len(side.peers) == 0 {
			side.mode |= NetworkStarting
		}
	}
}
