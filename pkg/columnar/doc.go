// Package columnar implements the in-memory block representation that the
// squashing engine, the format readers and the format writers share.
//
// # Overview
//
// A Block is an ordered list of named, typed columns that all hold the same
// number of rows. Columns are typed slices (Int64, Float64, Bool, DateTime,
// Bytes, and String with automatic dictionary encoding) behind the Column
// interface, which exposes the bulk AppendRange operation the engine merges
// with.
//
// # Ownership
//
// Every BlockColumn holds a Ref: a reference-counted handle with
// copy-on-write semantics. Block.Share hands out a second view of the same
// storage without copying; the first writer to call Ref.Mutate on a shared
// column gets a private clone, so readers of the other view never observe
// the change.
//
//	pending := incoming.Share()
//	col := pending.ColumnAt(0).Data.Mutate() // clones, incoming is untouched
//	_ = col.AppendRange(next.ColumnAt(0).Data.Column(), 0, 10)
//
// # Empty blocks
//
// A nil *Block and a block without columns are both empty: the engine
// treats them as the end-of-stream marker. A block with columns and zero
// rows is a regular block.
//
// # Building blocks
//
// Builder appends rows against a fixed Schema and emits blocks; InferType
// and InferSchema pick column types for textual input. AppendColumn and
// ReadColumn provide the compact binary column encoding used by the Native
// format.
package columnar
