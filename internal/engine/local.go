package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/ntcore/internal/value"
)

// category is the notification channel a poller or listener belongs to.
type category int

const (
	catEntry category = iota
	catConnection
	catRpc
	catLogger
	numCategories
)

var categoryNames = [numCategories]string{"entry", "connection", "rpc", "logger"}

func (c category) String() string { return categoryNames[c] }

// Local is an in-process Engine.
//
// All state lives behind mu. Methods never block while holding mu; the
// blocking Poll* and RpcResult methods look up their queue or call under the
// lock and wait after releasing it.
type Local struct {
	mu     sync.Mutex
	logger *slog.Logger
	ids    IdentityGenerator
	clock  *value.Clock
	next   uint32

	defaultInst InstanceHandle
	instances   map[InstanceHandle]*instance
	entries     map[EntryHandle]entryRef
	pollers     map[PollerHandle]*poller
	listeners   map[ListenerHandle]*listener
	calls       map[RpcCallHandle]*rpcCall
	servers     map[string]InstanceHandle // listen key -> serving instance
}

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithLogger sets the slog logger engine log messages are mirrored to.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// WithIdentityGenerator sets the source of default network identities.
// Default: UUIDv7Generator.
func WithIdentityGenerator(g IdentityGenerator) LocalOption {
	return func(l *Local) {
		l.ids = g
	}
}

// NewLocal creates an empty engine. The default instance is created on the
// first call to DefaultInstance.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
		clock:     value.NewClock(),
		instances: make(map[InstanceHandle]*instance),
		entries:   make(map[EntryHandle]entryRef),
		pollers:   make(map[PollerHandle]*poller),
		listeners: make(map[ListenerHandle]*listener),
		calls:     make(map[RpcCallHandle]*rpcCall),
		servers:   make(map[string]InstanceHandle),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type instance struct {
	handle     InstanceHandle
	identity   string
	mode       NetworkMode
	updateRate float64
	entries    map[string]*entry

	server     *serverState
	client     *clientState
	serverList []ServerPort // set by SetServer before a client starts
	dsPort     int

	peers     []*link
	pollers   []PollerHandle
	listeners [numCategories][]ListenerHandle // registration order
}

type entry struct {
	handle     EntryHandle
	name       string
	value      value.Value
	flags      EntryFlags
	lastChange int64
	rpcPoller  PollerHandle // nonzero while this instance serves the rpc
}

func (e *entry) exists() bool {
	return !e.value.IsUnassigned()
}

type entryRef struct {
	inst InstanceHandle
	name string
}

// nextHandle returns a fresh handle. Caller must hold l.mu.
func (l *Local) nextHandle() uint32 {
	l.next++
	return l.next
}

func (l *Local) newInstanceLocked() *instance {
	in := &instance{
		handle:     InstanceHandle(l.nextHandle()),
		updateRate: 0.1,
		entries:    make(map[string]*entry),
	}
	l.instances[in.handle] = in
	return in
}

// DefaultInstance returns the process default instance, creating it once.
func (l *Local) DefaultInstance() InstanceHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.defaultInst == 0 {
		l.defaultInst = l.newInstanceLocked().handle
	}
	return l.defaultInst
}

// CreateInstance creates an instance that must be destroyed by the caller.
func (l *Local) CreateInstance() InstanceHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.newInstanceLocked().handle
}

// DestroyInstance stops the instance's network activity, saves persistent
// entries of a running server, and invalidates its pollers so blocked polls
// return ErrInvalidHandle. The default instance is never destroyed.
func (l *Local) DestroyInstance(inst InstanceHandle) {
	l.mu.Lock()
	in := l.instances[inst]
	if in == nil || inst == l.defaultInst {
		l.mu.Unlock()
		return
	}

	save := l.stopServerLocked(in)
	l.stopClientLocked(in)

	for _, ph := range slices.Clone(in.pollers) {
		l.destroyPollerLocked(ph)
	}
	for h, c := range l.calls {
		if c.server == inst || c.caller == inst {
			c.abortOnce()
			delete(l.calls, h)
		}
	}
	for _, e := range in.entries {
		delete(l.entries, e.handle)
	}
	delete(l.instances, inst)
	l.mu.Unlock()

	save.run(l)
}

// instanceLocked returns the instance or nil. Caller must hold l.mu.
func (l *Local) instanceLocked(inst InstanceHandle) *instance {
	return l.instances[inst]
}

// entryLocked resolves an entry handle. Caller must hold l.mu.
func (l *Local) entryLocked(h EntryHandle) (*instance, *entry) {
	ref, ok := l.entries[h]
	if !ok {
		return nil, nil
	}
	in := l.instances[ref.inst]
	if in == nil {
		return nil, nil
	}
	return in, in.entries[ref.name]
}

// entryFor returns the named entry of in, creating an unassigned one.
// Caller must hold l.mu.
func (l *Local) entryFor(in *instance, name string) *entry {
	if e, ok := in.entries[name]; ok {
		return e
	}
	e := &entry{handle: EntryHandle(l.nextHandle()), name: name}
	in.entries[name] = e
	l.entries[e.handle] = entryRef{inst: in.handle, name: name}
	return e
}

// sortedEntries returns the assigned entries of in under prefix, by name.
// Caller must hold l.mu.
func sortedEntries(in *instance, prefix string, mask value.KindMask) []*entry {
	var out []*entry
	for name, e := range in.entries {
		if !e.exists() || !strings.HasPrefix(name, prefix) || !mask.Matches(e.value.Kind()) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (l *Local) GetEntry(inst InstanceHandle, name string) EntryHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return 0
	}
	return l.entryFor(in, name).handle
}

func (l *Local) GetEntries(inst InstanceHandle, prefix string, mask value.KindMask) []EntryHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return nil
	}
	var out []EntryHandle
	for _, e := range sortedEntries(in, prefix, mask) {
		out = append(out, e.handle)
	}
	return out
}

func (l *Local) GetEntryInfo(inst InstanceHandle, prefix string, mask value.KindMask) []EntryInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return nil
	}
	var out []EntryInfo
	for _, e := range sortedEntries(in, prefix, mask) {
		out = append(out, infoOf(e))
	}
	return out
}

func infoOf(e *entry) EntryInfo {
	return EntryInfo{
		Entry:      e.handle,
		Name:       e.name,
		Type:       e.value.Kind(),
		Flags:      e.flags,
		LastChange: e.lastChange,
	}
}

func (l *Local) EntryInfo(h EntryHandle) EntryInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, e := l.entryLocked(h)
	if e == nil {
		return EntryInfo{}
	}
	return infoOf(e)
}

func (l *Local) EntryName(h EntryHandle) string {
	return l.EntryInfo(h).Name
}

func (l *Local) EntryType(h EntryHandle) value.Kind {
	return l.EntryInfo(h).Type
}

func (l *Local) EntryFlags(h EntryHandle) EntryFlags {
	return l.EntryInfo(h).Flags
}

func (l *Local) EntryLastChange(h EntryHandle) int64 {
	return l.EntryInfo(h).LastChange
}

// EntryValue returns the stored value, Unassigned if the entry does not exist.
func (l *Local) EntryValue(h EntryHandle) value.Value {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, e := l.entryLocked(h)
	if e == nil {
		return value.Value{}
	}
	return e.value
}

// SetEntryValue stores v. An existing entry keeps its kind: a value of
// another kind is rejected with a *value.TypeMismatchError.
func (l *Local) SetEntryValue(h EntryHandle, v value.Value) error {
	if v.IsUnassigned() {
		return fmt.Errorf("set entry value: %w: unassigned value", value.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil {
		return invalid("set entry value", h)
	}
	if e.exists() && e.value.Kind() != v.Kind() {
		return &value.TypeMismatchError{Expected: e.value.Kind(), Actual: v.Kind()}
	}
	l.assignLocked(in, e, v)
	return nil
}

// SetDefaultEntryValue stores v only if the entry does not exist. It reports
// whether the entry now holds a value of v's kind.
func (l *Local) SetDefaultEntryValue(h EntryHandle, v value.Value) bool {
	if v.IsUnassigned() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil {
		return false
	}
	if e.exists() {
		return e.value.Kind() == v.Kind()
	}
	l.assignLocked(in, e, v)
	return true
}

// SetEntryTypeValue stores v, changing the entry's kind if needed.
func (l *Local) SetEntryTypeValue(h EntryHandle, v value.Value) error {
	if v.IsUnassigned() {
		return fmt.Errorf("set entry type value: %w: unassigned value", value.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil {
		return invalid("set entry type value", h)
	}
	l.assignLocked(in, e, v)
	return nil
}

// SetEntryFlags replaces the flags of an existing entry.
func (l *Local) SetEntryFlags(h EntryHandle, flags EntryFlags) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil || !e.exists() {
		return
	}
	l.replaceFlagsLocked(in, e, flags)
}

func (l *Local) ChangeEntryFlags(h EntryHandle, set, clear EntryFlags) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil || !e.exists() {
		return
	}
	l.replaceFlagsLocked(in, e, (e.flags|set)&^clear)
}

// replaceFlagsLocked stores flags on e, notifies local listeners and copies
// the change to connected peers.
func (l *Local) replaceFlagsLocked(in *instance, e *entry, flags EntryFlags) {
	if !l.setFlagsLocked(in, e, flags, NotifyLocal) {
		return
	}
	name := e.name
	l.propagateLocked(in, func(peer *instance) {
		pe := peer.entries[name]
		if pe != nil && pe.exists() {
			l.setFlagsLocked(peer, pe, flags, NotifyNone)
		}
	})
}

func (l *Local) DeleteEntry(h EntryHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in, e := l.entryLocked(h)
	if e == nil || !e.exists() {
		return
	}
	l.deleteLocked(in, e)
}

// DeleteAllEntries deletes every entry of the instance except persistent ones.
func (l *Local) DeleteAllEntries(inst InstanceHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return
	}
	for _, e := range sortedEntries(in, "", value.AllKinds) {
		if e.flags&FlagPersistent != 0 {
			continue
		}
		l.deleteLocked(in, e)
	}
}

// assignLocked stores v on in as a local change and propagates it to every
// linked instance. Caller must hold l.mu.
func (l *Local) assignLocked(in *instance, e *entry, v value.Value) {
	if !l.storeLocked(in, e, v, NotifyLocal) {
		return
	}
	name := e.name
	l.propagateLocked(in, func(peer *instance) {
		l.storeLocked(peer, l.entryFor(peer, name), v, NotifyNone)
	})
}

// deleteLocked removes e locally and on every linked instance.
func (l *Local) deleteLocked(in *instance, e *entry) {
	l.removeLocked(in, e, NotifyLocal)
	name := e.name
	l.propagateLocked(in, func(peer *instance) {
		if pe := peer.entries[name]; pe != nil && pe.exists() {
			l.removeLocked(peer, pe, NotifyNone)
		}
	})
}

// storeLocked writes v into e and notifies listeners of in. It reports
// whether anything changed; writing an equal value is not a change.
func (l *Local) storeLocked(in *instance, e *entry, v value.Value, origin NotifyFlags) bool {
	flags := origin
	switch {
	case !e.exists():
		flags |= NotifyNew
	case e.value.Equal(v):
		return false
	default:
		flags |= NotifyUpdate
	}
	e.value = v
	e.lastChange = l.clock.Next()
	l.notifyEntryLocked(in, e, v, flags)
	return true
}

func (l *Local) setFlagsLocked(in *instance, e *entry, flags EntryFlags, origin NotifyFlags) bool {
	if e.flags == flags {
		return false
	}
	e.flags = flags
	l.notifyEntryLocked(in, e, e.value, origin|NotifyFlagsChanged)
	return true
}

func (l *Local) removeLocked(in *instance, e *entry, origin NotifyFlags) {
	old := e.value
	e.value = value.Value{}
	e.flags = 0
	e.lastChange = l.clock.Next()
	l.notifyEntryLocked(in, e, old, origin|NotifyDelete)
}

// propagateLocked applies fn to every instance reachable from in over
// links, breadth first, excluding in itself.
func (l *Local) propagateLocked(in *instance, fn func(peer *instance)) {
	seen := map[InstanceHandle]bool{in.handle: true}
	queue := []*instance{in}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ln := range cur.peers {
			if seen[ln.peer] {
				continue
			}
			seen[ln.peer] = true
			peer := l.instances[ln.peer]
			if peer == nil {
				continue
			}
			fn(peer)
			queue = append(queue, peer)
		}
	}
}
