package value

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"slices"
)

// Equal reports structural equality. Kinds must match; scalars compare by
// value, bytes byte-by-byte and arrays element-by-element. Doubles use
// IEEE comparison, so NaN never equals NaN. Creation stamps are ignored.
func (v Value) Equal(o Value) bool {
	switch a := v.p.(type) {
	case nil:
		return o.p == nil
	case boolPayload:
		b, ok := o.p.(boolPayload)
		return ok && a == b
	case doublePayload:
		b, ok := o.p.(doublePayload)
		return ok && a == b
	case stringPayload:
		b, ok := o.p.(stringPayload)
		return ok && a == b
	case rawPayload:
		b, ok := o.p.(rawPayload)
		return ok && bytes.Equal(a, b)
	case rpcPayload:
		b, ok := o.p.(rpcPayload)
		return ok && bytes.Equal(a, b)
	case boolArrayPayload:
		b, ok := o.p.(boolArrayPayload)
		return ok && slices.Equal(a, b)
	case doubleArrayPayload:
		b, ok := o.p.(doubleArrayPayload)
		return ok && slices.Equal(a, b)
	case stringArrayPayload:
		b, ok := o.p.(stringArrayPayload)
		return ok && slices.Equal(a, b)
	default:
		return false
	}
}

// DomainValue separates value hashes from any other hash in the system.
const DomainValue = "ntcore/value/v1"

// Hash returns a structural hash consistent with Equal for every kind,
// arrays included. It is SHA256(domain + 0x00 + kind + payload) truncated
// to 64 bits. Values with equal payloads hash equally regardless of stamp.
func (v Value) Hash() uint64 {
	h := sha256.New()
	h.Write([]byte(DomainValue))
	h.Write([]byte{0x00})

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(v.Kind()))
	h.Write(buf[:4])

	writeLen := func(n int) {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	writeFloat := func(f float64) {
		if f == 0 {
			f = 0 // fold -0 into +0
		}
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	writeBool := func(b bool) {
		if b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	switch p := v.p.(type) {
	case boolPayload:
		writeBool(bool(p))
	case doublePayload:
		writeFloat(float64(p))
	case stringPayload:
		writeLen(len(p))
		h.Write([]byte(p))
	case rawPayload:
		writeLen(len(p))
		h.Write(p)
	case rpcPayload:
		writeLen(len(p))
		h.Write(p)
	case boolArrayPayload:
		writeLen(len(p))
		for _, b := range p {
			writeBool(b)
		}
	case doubleArrayPayload:
		writeLen(len(p))
		for _, f := range p {
			writeFloat(f)
		}
	case stringArrayPayload:
		writeLen(len(p))
		for _, s := range p {
			writeLen(len(s))
			h.Write([]byte(s))
		}
	}

	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}
