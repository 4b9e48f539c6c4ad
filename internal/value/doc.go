// Package value provides the tagged value model shared by every entry,
// notification and persisted record.
//
// A Value holds exactly one of nine kinds: Unassigned, Boolean, Double,
// String, Raw, Rpc, BooleanArray, DoubleArray and StringArray. The payload
// is a sealed interface, so the set of kinds is closed and every dispatch
// over it is an exhaustive type switch.
//
// Key invariants:
//   - Values are immutable. Byte and array payloads are copied on
//     construction and again on every read, so no caller ever shares a
//     backing array with a Value.
//   - The kind fully determines the valid accessor. Typed accessors return
//     a *TypeMismatchError for any other kind; TryGet reports failure with
//     a boolean instead.
//   - Equality is structural and ignores the creation stamp.
//
// This package imports nothing internal. The engine, store and nt packages
// build on it.
package value
