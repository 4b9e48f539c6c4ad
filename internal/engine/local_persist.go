package engine

import (
	"context"

	"github.com/roach88/ntcore/internal/store"
)

type loadResult struct {
	records  []store.Record
	warnings []string
}

// pendingSave is a save prepared under l.mu and written after releasing it.
// The zero value saves nothing.
type pendingSave struct {
	inst     InstanceHandle
	path     string
	identity string
	records  []store.Record
}

func (s pendingSave) run(l *Local) {
	if s.path == "" {
		return
	}
	if err := writeFile(context.Background(), s.path, s.identity, s.records); err != nil {
		l.logf(s.inst, LogError, "could not save persistent file: %v", err)
	}
}

// snapshotLocked returns the entries of in under prefix as store records.
// With persistentOnly, entries without FlagPersistent are skipped.
func snapshotLocked(in *instance, prefix string, persistentOnly bool) []store.Record {
	var recs []store.Record
	for _, e := range sortedEntries(in, prefix, 0) {
		if persistentOnly && e.flags&FlagPersistent == 0 {
			continue
		}
		recs = append(recs, store.Record{
			Name:  e.name,
			Value: e.value,
			Flags: uint32(e.flags),
		})
	}
	return recs
}

func writeFile(ctx context.Context, path, identity string, recs []store.Record) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.WriteEntries(ctx, recs); err != nil {
		return err
	}
	return s.WriteMeta(ctx, store.MetaIdentity, identity)
}

func readFile(ctx context.Context, path, prefix string) (*loadResult, error) {
	s, err := store.OpenExisting(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	recs, warnings, err := s.ReadEntries(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return &loadResult{records: recs, warnings: warnings}, nil
}

// applyRecordsLocked stores loaded records as local changes. With
// persistent, every record is marked FlagPersistent; otherwise the saved
// flags are restored.
func (l *Local) applyRecordsLocked(in *instance, recs []store.Record, persistent bool) {
	for _, rec := range recs {
		flags := EntryFlags(rec.Flags)
		if persistent {
			flags |= FlagPersistent
		}
		e := l.entryFor(in, rec.Name)
		l.assignLocked(in, e, rec.Value)
		if l.setFlagsLocked(in, e, flags, NotifyLocal) {
			name := rec.Name
			l.propagateLocked(in, func(peer *instance) {
				if pe := peer.entries[name]; pe != nil && pe.exists() {
					l.setFlagsLocked(peer, pe, flags, NotifyNone)
				}
			})
		}
	}
}

// SavePersistent writes every persistent entry to filename, replacing its
// previous content.
func (l *Local) SavePersistent(ctx context.Context, inst InstanceHandle, filename string) error {
	return l.save(ctx, inst, filename, "", true)
}

// SaveEntries writes every entry under prefix to filename, replacing its
// previous content.
func (l *Local) SaveEntries(ctx context.Context, inst InstanceHandle, filename, prefix string) error {
	return l.save(ctx, inst, filename, prefix, false)
}

func (l *Local) save(ctx context.Context, inst InstanceHandle, filename, prefix string, persistentOnly bool) error {
	l.mu.Lock()
	in := l.instanceLocked(inst)
	if in == nil {
		l.mu.Unlock()
		return invalid("save", inst)
	}
	recs := snapshotLocked(in, prefix, persistentOnly)
	identity := l.identityLocked(in)
	l.mu.Unlock()

	if err := writeFile(ctx, filename, identity, recs); err != nil {
		return err
	}
	l.logf(inst, LogDebug, "saved %d entries to %s", len(recs), filename)
	return nil
}

// LoadPersistent loads filename and marks every loaded entry persistent.
// Entries that cannot be decoded are skipped and returned as warnings.
func (l *Local) LoadPersistent(ctx context.Context, inst InstanceHandle, filename string) ([]string, error) {
	return l.load(ctx, inst, filename, "", true)
}

// LoadEntries loads the entries under prefix from filename with the flags
// they were saved with.
func (l *Local) LoadEntries(ctx context.Context, inst InstanceHandle, filename, prefix string) ([]string, error) {
	return l.load(ctx, inst, filename, prefix, false)
}

func (l *Local) load(ctx context.Context, inst InstanceHandle, filename, prefix string, persistent bool) ([]string, error) {
	res, err := readFile(ctx, filename, prefix)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.instanceLocked(inst)
	if in == nil {
		return nil, invalid("load", inst)
	}
	l.applyRecordsLocked(in, res.records, persistent)
	for _, w := range res.warnings {
		l.logLocked(in, LogWarning, "%s: %s", filename, w)
	}
	l.logLocked(in, LogDebug, "loaded %d entries from %s", len(res.records), filename)
	return res.warnings, nil
}

