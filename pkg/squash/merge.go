package squash

import (
	"fmt"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

// Merge appends the rows of from onto into and returns the result.
//
// An empty into is replaced by from without copying. Otherwise every column
// of into is made exclusive (cloned if shared) and the matching column of
// from is range-appended to it. Ownership of from passes to Merge in both
// cases.
//
// Blocks that differ in structure, or that hold unset columns, are rejected
// before anything is modified. If an append fails part way, into is cleared
// rather than left half merged, and the failure is returned as
// ErrorTypeAppendFailure.
func Merge(into, from *columnar.Block) (merged *columnar.Block, err error) {
	if into.Empty() {
		return from, nil
	}
	if !into.SameStructure(from) {
		return into, errors.New(errors.ErrorTypeStructuralMismatch, "block structure differs from pending block").
			WithDetail("pending", into.Schema().String()).
			WithDetail("incoming", from.Schema().String())
	}
	for i := 0; i < into.NumColumns(); i++ {
		if into.ColumnAt(i).Data.Column() == nil || from.ColumnAt(i).Data.Column() == nil {
			return into, errors.New(errors.ErrorTypeInvalidColumn, "invalid column in merge").
				WithDetail("column", into.ColumnAt(i).Name).
				WithDetail("position", i)
		}
	}

	position := 0
	defer func() {
		if r := recover(); r != nil {
			err = appendFailure(into, from, position, fmt.Errorf("panic: %v", r))
			merged = nil
		}
	}()

	for position = 0; position < into.NumColumns(); position++ {
		src := from.ColumnAt(position).Data.Column()
		dst := into.ColumnAt(position).Data.Mutate()
		if err := dst.AppendRange(src, 0, src.Len()); err != nil {
			return nil, appendFailure(into, from, position, err)
		}
	}
	from.Release()
	return into, nil
}

// appendFailure clears both blocks and reports cause. position may be past
// the last column when the failure came after every column was appended.
func appendFailure(into, from *columnar.Block, position int, cause error) error {
	err := errors.Wrap(cause, errors.ErrorTypeAppendFailure, "append into pending block failed").
		WithDetail("position", position)
	if position >= 0 && position < into.NumColumns() {
		err = err.WithDetail("column", into.ColumnAt(position).Name)
	}
	into.Clear()
	from.Release()
	return err
}
