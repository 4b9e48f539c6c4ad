package nt

import (
	"slices"
	"strings"

	"github.com/roach88/ntcore/internal/value"
)

// PathSeparator separates the segments of entry and table paths.
const PathSeparator = "/"

// Table is a view over the entries under one path. Tables are passive:
// they hold a path and resolve Entries through their Instance.
type Table struct {
	inst *Instance
	path string
}

// normalizeTableKey maps empty and blank keys to the root path "", keeps
// keys starting with the separator, and prefixes every other key with it.
func normalizeTableKey(key string) string {
	switch {
	case strings.TrimSpace(key) == "":
		return ""
	case strings.HasPrefix(key, PathSeparator):
		return key
	default:
		return PathSeparator + key
	}
}

// GetTable returns the table for key, creating it on first use. Every call
// with keys that normalize to the same path returns the same *Table, also
// under concurrent use.
func (i *Instance) GetTable(key string) *Table {
	path := normalizeTableKey(key)

	i.mu.Lock()
	defer i.mu.Unlock()

	if t, ok := i.tables[path]; ok {
		return t
	}
	t := &Table{inst: i, path: path}
	i.tables[path] = t
	return t
}

// Path returns the normalized path; the root table's path is "".
func (t *Table) Path() string {
	return t.path
}

// Instance returns the owning instance.
func (t *Table) Instance() *Instance {
	return t.inst
}

func (t *Table) prefix() string {
	return t.path + PathSeparator
}

// Entry returns the entry key directly under the table.
func (t *Table) Entry(key string) Entry {
	return t.inst.GetEntry(t.prefix() + key)
}

// SubTable returns the table key directly under this one.
func (t *Table) SubTable(key string) *Table {
	return t.inst.GetTable(t.prefix() + key)
}

// ContainsKey reports whether the entry key exists under the table.
func (t *Table) ContainsKey(key string) bool {
	return t.Entry(key).Exists()
}

// ContainsSubTable reports whether any entry exists below the subtable key.
func (t *Table) ContainsSubTable(key string) bool {
	return len(t.inst.GetEntryInfo(t.prefix()+key+PathSeparator, value.AllKinds)) > 0
}

// Keys returns the names of existing entries directly under the table, sorted.
func (t *Table) Keys(mask value.KindMask) []string {
	prefix := t.prefix()
	var keys []string
	for _, info := range t.inst.GetEntryInfo(prefix, mask) {
		rel := info.Name[len(prefix):]
		if !strings.Contains(rel, PathSeparator) {
			keys = append(keys, rel)
		}
	}
	return keys
}

// SubTables returns the names of subtables holding at least one entry, sorted.
func (t *Table) SubTables() []string {
	prefix := t.prefix()
	var subs []string
	for _, info := range t.inst.GetEntryInfo(prefix, value.AllKinds) {
		rel := info.Name[len(prefix):]
		name, _, deeper := strings.Cut(rel, PathSeparator)
		if deeper && !slices.Contains(subs, name) {
			subs = append(subs, name)
		}
	}
	slices.Sort(subs)
	return subs
}

// Delete removes the entry key directly under the table.
func (t *Table) Delete(key string) {
	t.Entry(key).Delete()
}

// AddEntryListener calls cb with the key of every change to an entry
// directly under the table.
func (t *Table) AddEntryListener(flags NotifyFlags, cb func(key string, ev EntryEvent)) (Listener, error) {
	prefix := t.prefix()
	return t.inst.AddEntryListener(prefix, flags, func(ev EntryEvent) {
		rel := strings.TrimPrefix(ev.Name, prefix)
		if strings.Contains(rel, PathSeparator) {
			return
		}
		cb(rel, ev)
	})
}
