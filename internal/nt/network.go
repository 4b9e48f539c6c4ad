package nt

import (
	"fmt"

	"github.com/roach88/ntcore/internal/value"
)

// SetNetworkIdentity sets the name this instance reports to peers.
func (i *Instance) SetNetworkIdentity(name string) {
	if i.isClosed() {
		return
	}
	i.eng.SetNetworkIdentity(i.handle, name)
}

// NetworkMode returns what the instance is doing on the network.
func (i *Instance) NetworkMode() NetworkMode {
	if i.isClosed() {
		return 0
	}
	return i.eng.NetworkMode(i.handle)
}

// ServerOption configures StartServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	persistFile   string
	listenAddress string
	port          int
}

// WithPersistFile sets the file persistent entries are loaded from on start
// and saved to on stop. Default: DefaultPersistFile. An empty name disables
// persistence.
func WithPersistFile(path string) ServerOption {
	return func(c *serverConfig) {
		c.persistFile = path
	}
}

// WithListenAddress sets the address to listen on. Default: all addresses.
func WithListenAddress(addr string) ServerOption {
	return func(c *serverConfig) {
		c.listenAddress = addr
	}
}

// WithPort sets the port to listen on. Default: DefaultPort.
func WithPort(port int) ServerOption {
	return func(c *serverConfig) {
		c.port = port
	}
}

// StartServer starts the instance as a server.
func (i *Instance) StartServer(opts ...ServerOption) error {
	cfg := serverConfig{persistFile: DefaultPersistFile, port: DefaultPort}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.port < 0 || cfg.port > 65535 {
		return &Error{Code: ErrCodeInvalidArgument, Op: "start server", Message: fmt.Sprintf("port %d out of range", cfg.port)}
	}
	if i.isClosed() {
		return errClosed("start server")
	}
	return wrapEngine("start server", i.eng.StartServer(i.handle, cfg.persistFile, cfg.listenAddress, cfg.port))
}

// StopServer stops the server, saving persistent entries.
func (i *Instance) StopServer() {
	if i.isClosed() {
		return
	}
	i.eng.StopServer(i.handle)
}

// StartClient starts the instance as a client of the first reachable
// server. With no servers, the list set by SetServer is used. A zero port
// means DefaultPort.
func (i *Instance) StartClient(servers ...ServerPort) error {
	if i.isClosed() {
		return errClosed("start client")
	}
	return wrapEngine("start client", i.eng.StartClient(i.handle, servers))
}

// StartClientTeam starts a client of the robot of the given team.
func (i *Instance) StartClientTeam(team, port int) error {
	if team <= 0 {
		return &Error{Code: ErrCodeInvalidArgument, Op: "start client team", Message: fmt.Sprintf("invalid team number %d", team)}
	}
	if i.isClosed() {
		return errClosed("start client team")
	}
	return wrapEngine("start client team", i.eng.StartClientTeam(i.handle, team, port))
}

// StopClient disconnects and stops the client.
func (i *Instance) StopClient() {
	if i.isClosed() {
		return
	}
	i.eng.StopClient(i.handle)
}

// SetServer replaces the list of servers the client connects to.
func (i *Instance) SetServer(servers ...ServerPort) {
	if i.isClosed() {
		return
	}
	i.eng.SetServer(i.handle, servers)
}

// SetServerTeam is SetServer with the addresses of a team's robot.
func (i *Instance) SetServerTeam(team, port int) {
	if i.isClosed() {
		return
	}
	i.eng.SetServerTeam(i.handle, team, port)
}

// StartDSClient takes the server address from the driver station.
func (i *Instance) StartDSClient(port int) {
	if i.isClosed() {
		return
	}
	i.eng.StartDSClient(i.handle, port)
}

func (i *Instance) StopDSClient() {
	if i.isClosed() {
		return
	}
	i.eng.StopDSClient(i.handle)
}

// SetUpdateRate sets the network flush interval in seconds. The engine
// clamps it to [0.01, 1.0].
func (i *Instance) SetUpdateRate(interval float64) {
	if i.isClosed() {
		return
	}
	i.eng.SetUpdateRate(i.handle, interval)
}

// Flush sends pending changes now instead of at the next update.
func (i *Instance) Flush() {
	if i.isClosed() {
		return
	}
	i.eng.Flush(i.handle)
}

// Connections describes the current peers.
func (i *Instance) Connections() []ConnectionInfo {
	if i.isClosed() {
		return nil
	}
	return i.eng.Connections(i.handle)
}

func (i *Instance) IsConnected() bool {
	if i.isClosed() {
		return false
	}
	return i.eng.IsConnected(i.handle)
}

// ParseServer parses "host" or "host:port" into a ServerPort.
func ParseServer(s string) (ServerPort, error) {
	host, port, err := splitHostPort(s)
	if err != nil {
		return ServerPort{}, &Error{Code: ErrCodeInvalidArgument, Op: "parse server", Err: fmt.Errorf("%w: %v", value.ErrInvalidArgument, err)}
	}
	return ServerPort{Host: host, Port: port}, nil
}
