// Package budget enforces the per-question retrieval chunk budget. The
// assistant may fetch additional context mid-answer, but the total number of
// chunks retrieved while answering one question is capped so a
// retrieval-happy model cannot grow the context without bound.
package budget

const (
	// DefaultMaxChunks is the total chunk budget for one question, initial
	// retrieval included. Override via config.
	DefaultMaxChunks = 20

	// DefaultRequestChunks is the batch size used when a retrieval request
	// does not say how many chunks it wants.
	DefaultRequestChunks = 5

	// MinRequestChunks and MaxRequestChunks bound a single additional
	// retrieval request. Requests outside the range are clamped, not
	// rejected, so a sloppy model still makes progress.
	MinRequestChunks = 1
	MaxRequestChunks = 15
)

// Budget tracks chunk spending for a single question. It is not safe for
// concurrent use; each question owns one Budget.
type Budget struct {
	max   int
	spent int
}

// New returns a Budget capped at max total chunks. Non-positive max falls
// back to DefaultMaxChunks.
func New(max int) *Budget {
	if max <= 0 {
		max = DefaultMaxChunks
	}
	return &Budget{max: max}
}

// Max returns the total chunk cap.
func (b *Budget) Max() int { return b.max }

// Spent returns the number of chunks consumed so far.
func (b *Budget) Spent() int { return b.spent }

// Remaining returns how many chunks may still be retrieved.
func (b *Budget) Remaining() int {
	if r := b.max - b.spent; r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether no further retrieval is possible.
func (b *Budget) Exhausted() bool { return b.Remaining() == 0 }

// Grant resolves an additional-retrieval request for n chunks against the
// budget. Zero or negative n asks for the default batch. The request is
// clamped into [MinRequestChunks, MaxRequestChunks] and then to the
// remaining budget. It returns the number of chunks the caller may fetch,
// or 0 when the budget is exhausted.
func (b *Budget) Grant(n int) int {
	if n <= 0 {
		n = DefaultRequestChunks
	}
	if n < MinRequestChunks {
		n = MinRequestChunks
	}
	if n > MaxRequestChunks {
		n = MaxRequestChunks
	}
	if r := b.Remaining(); n > r {
		n = r
	}
	return n
}

// Spend records that n chunks were actually retrieved. Spending is recorded
// for real results only; a granted request that returned nothing costs
// nothing.
func (b *Budget) Spend(n int) {
	if n > 0 {
		b.spent += n
	}
}
