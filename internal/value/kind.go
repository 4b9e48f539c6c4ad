package value

import (
	"fmt"
	"strings"
)

// Kind identifies the variant held by a Value.
// The bit values match the entry type mask used by the sync engine, so a
// Kind can be OR-ed directly into a KindMask.
type Kind uint32

const (
	KindUnassigned   Kind = 0x00
	KindBoolean      Kind = 0x01
	KindDouble       Kind = 0x02
	KindString       Kind = 0x04
	KindRaw          Kind = 0x08
	KindBooleanArray Kind = 0x10
	KindDoubleArray  Kind = 0x20
	KindStringArray  Kind = 0x40
	KindRpc          Kind = 0x80
)

// Kinds lists every assignable kind in mask-bit order.
var Kinds = []Kind{
	KindBoolean,
	KindDouble,
	KindString,
	KindRaw,
	KindBooleanArray,
	KindDoubleArray,
	KindStringArray,
	KindRpc,
}

var kindNames = map[Kind]string{
	KindUnassigned:   "unassigned",
	KindBoolean:      "boolean",
	KindDouble:       "double",
	KindString:       "string",
	KindRaw:          "raw",
	KindBooleanArray: "boolean_array",
	KindDoubleArray:  "double_array",
	KindStringArray:  "string_array",
	KindRpc:          "rpc",
}

// String returns the lower snake case name used in JSON, YAML and the CLI.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%02x)", uint32(k))
}

// ParseKind is the inverse of Kind.String. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return KindUnassigned, fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, s)
}

// KindMask is a bitset of kinds used to filter entry lookups.
// The zero mask matches every kind.
type KindMask uint32

// AllKinds matches entries of any kind.
const AllKinds KindMask = 0

// Mask builds a KindMask from individual kinds.
func Mask(kinds ...Kind) KindMask {
	var m KindMask
	for _, k := range kinds {
		m |= KindMask(k)
	}
	return m
}

// Matches reports whether k is selected by the mask.
func (m KindMask) Matches(k Kind) bool {
	return m == AllKinds || m&KindMask(k) != 0
}
