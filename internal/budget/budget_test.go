package budget

import (
	"testing"
)

func Test_New_DefaultCap(t *testing.T) {
	t.Parallel()
	if got := New(0).Max(); got != DefaultMaxChunks {
		t.Errorf("New(0).Max() = %d, want %d", got, DefaultMaxChunks)
	}
	if got := New(-3).Max(); got != DefaultMaxChunks {
		t.Errorf("New(-3).Max() = %d, want %d", got, DefaultMaxChunks)
	}
	if got := New(30).Max(); got != 30 {
		t.Errorf("New(30).Max() = %d, want 30", got)
	}
}

func Test_Grant_Clamping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		request int
		want    int
	}{
		{"zero asks for the default batch", 0, DefaultRequestChunks},
		{"negative asks for the default batch", -2, DefaultRequestChunks},
		{"in range passes through", 8, 8},
		{"above the per-request cap", 50, MaxRequestChunks},
		{"at the minimum", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := New(DefaultMaxChunks)
			if got := b.Grant(tc.request); got != tc.want {
				t.Errorf("Grant(%d) = %d, want %d", tc.request, got, tc.want)
			}
		})
	}
}

func Test_Grant_ClampsToRemainder(t *testing.T) {
	t.Parallel()
	b := New(20)
	b.Spend(17)
	if got := b.Grant(10); got != 3 {
		t.Errorf("Grant(10) with 3 remaining = %d, want 3", got)
	}
}

func Test_Grant_ZeroWhenExhausted(t *testing.T) {
	t.Parallel()
	b := New(20)
	b.Spend(20)
	if !b.Exhausted() {
		t.Error("budget should be exhausted")
	}
	if got := b.Grant(5); got != 0 {
		t.Errorf("Grant on exhausted budget = %d, want 0", got)
	}
}

func Test_Spend_IgnoresNonPositive(t *testing.T) {
	t.Parallel()
	b := New(20)
	b.Spend(-1)
	b.Spend(0)
	if b.Spent() != 0 {
		t.Errorf("Spent = %d, want 0", b.Spent())
	}
}

func Test_Budget_NeverGoesNegative(t *testing.T) {
	t.Parallel()
	b := New(10)
	b.Spend(8)
	b.Spend(8) // over-spend past the cap
	if got := b.Remaining(); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	if got := b.Grant(5); got != 0 {
		t.Errorf("Grant after over-spend = %d, want 0", got)
	}
}

// Total spending across any sequence of grant/spend rounds never exceeds the
// cap when callers spend at most what was granted.
func Test_Budget_CapHoldsAcrossRounds(t *testing.T) {
	t.Parallel()
	b := New(20)
	total := 0
	for i := 0; i < 10; i++ {
		n := b.Grant(7)
		b.Spend(n)
		total += n
	}
	if total > 20 {
		t.Errorf("total granted %d exceeds the cap", total)
	}
	if !b.Exhausted() {
		t.Errorf("repeated full spending should exhaust the budget, spent %d", b.Spent())
	}
}
