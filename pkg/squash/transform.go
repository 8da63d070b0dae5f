package squash

import (
	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

// Stats counts what a Transform has done since it was created
type Stats struct {
	Pushes        uint64 // non-empty blocks pushed
	Flushes       uint64 // end-of-stream pushes, including Flush
	Emitted       uint64 // blocks returned
	PassedThrough uint64 // blocks returned as pushed, without buffering
	Swaps         uint64 // pending block returned and replaced by the incoming one
	Merges        uint64 // incoming blocks merged into the pending block
	MergeFailures uint64 // merges that discarded the pending block
}

// Transform squashes a stream of blocks into fewer, larger blocks.
//
// It holds at most one pending block. Every Push either returns nothing and
// keeps buffering, or returns one block for the caller to write. Flush
// returns whatever is still pending. Blocks come out in the order their rows
// went in.
//
// A Transform is not safe for concurrent use; use one per stream.
type Transform struct {
	policy      Policy
	accumulated *columnar.Block
	stats       Stats
}

// New creates a Transform emitting blocks of at least minRows rows or
// minBytes bytes. Zero disables a threshold.
func New(minRows, minBytes uint64) *Transform {
	return NewWithPolicy(Policy{MinRows: minRows, MinBytes: minBytes})
}

// NewWithPolicy creates a Transform with the given policy
func NewWithPolicy(policy Policy) *Transform {
	return &Transform{policy: policy}
}

// Push hands block to the transform and returns a block ready for output,
// or nil. The transform takes ownership of block. A nil or column-less
// block marks the end of the stream and drains the pending block.
//
// Rules, first match wins:
//
//  1. block is empty: return the pending block.
//  2. block is large enough and nothing is pending: return block.
//  3. block is large enough: return the pending block, keep block pending.
//  4. the pending block is large enough: return it, keep block pending.
//  5. merge block into the pending block and return the result once it is
//     large enough.
//
// Rules 3 and 4 hold back a large enough block for one call so that older
// rows are never overtaken by newer ones. The held block comes out on the
// next Push or on Flush.
//
// A size check error leaves the pending block as it was. An
// ErrorTypeAppendFailure error means the pending block was discarded; blocks
// returned earlier are unaffected and the transform remains usable.
func (t *Transform) Push(block *columnar.Block) (*columnar.Block, error) {
	if block.Empty() {
		t.stats.Flushes++
		return t.take(), nil
	}
	t.stats.Pushes++

	enough, err := t.policy.EnoughBlock(block)
	if err != nil {
		return nil, err
	}
	if enough {
		if t.accumulated.Empty() {
			t.stats.PassedThrough++
			return t.emit(block), nil
		}
		return t.swap(block), nil
	}

	if !t.accumulated.Empty() {
		ready, err := t.policy.EnoughBlock(t.accumulated)
		if err != nil {
			return nil, err
		}
		if ready {
			return t.swap(block), nil
		}
	}

	merged, err := Merge(t.accumulated, block)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeAppendFailure) {
			t.accumulated = nil
			t.stats.MergeFailures++
		}
		return nil, err
	}
	if !t.accumulated.Empty() {
		t.stats.Merges++
	}
	t.accumulated = merged

	ready, err := t.policy.EnoughBlock(t.accumulated)
	if err != nil {
		return nil, err
	}
	if ready {
		return t.take(), nil
	}
	return nil, nil
}

// Flush returns the pending block, or nil if nothing is pending. The
// returned block may be below the thresholds. The transform can be reused
// afterwards.
func (t *Transform) Flush() (*columnar.Block, error) {
	return t.Push(nil)
}

// Policy returns the thresholds the transform was created with
func (t *Transform) Policy() Policy { return t.policy }

// HasPending reports whether a block is buffered
func (t *Transform) HasPending() bool { return !t.accumulated.Empty() }

// PendingRows returns the row count of the buffered block
func (t *Transform) PendingRows() int {
	rows, err := t.accumulated.Rows()
	if err != nil {
		return 0
	}
	return rows
}

// Stats returns a snapshot of the counters
func (t *Transform) Stats() Stats { return t.stats }

func (t *Transform) take() *columnar.Block {
	out := t.accumulated
	t.accumulated = nil
	if out.Empty() {
		return nil
	}
	return t.emit(out)
}

func (t *Transform) swap(block *columnar.Block) *columnar.Block {
	out := t.accumulated
	t.accumulated = block
	t.stats.Swaps++
	return t.emit(out)
}

func (t *Transform) emit(block *columnar.Block) *columnar.Block {
	t.stats.Emitted++
	return block
}
