package progress

import (
	"context"
	"testing"
)

type recorder struct {
	events [][2]int
}

func (r *recorder) Report(_ context.Context, completed, total int) {
	r.events = append(r.events, [2]int{completed, total})
}

func TestTracker_Monotonic(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, 2)
	ctx := context.Background()

	tr.Start(ctx)
	tr.Step(ctx)
	tr.Set(ctx, 0) // ignored
	tr.Set(ctx, 1) // ignored, not an increase
	tr.Step(ctx)
	tr.Step(ctx) // clamped to total, no report

	want := [][2]int{{0, 2}, {1, 2}, {2, 2}}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("events[%d] = %v, want %v", i, rec.events[i], want[i])
		}
	}
	if tr.Completed() != 2 {
		t.Errorf("Completed() = %d, want 2", tr.Completed())
	}
}

func TestTracker_NilReporter(t *testing.T) {
	tr := NewTracker(nil, 3)
	tr.Start(context.Background())
	tr.Step(context.Background())
	if tr.Completed() != 1 || tr.Total() != 3 {
		t.Errorf("state = %d/%d, want 1/3", tr.Completed(), tr.Total())
	}
}

func TestFunc(t *testing.T) {
	var got [2]int
	var r Reporter = Func(func(_ context.Context, c, total int) { got = [2]int{c, total} })
	r.Report(context.Background(), 1, 4)
	if got != [2]int{1, 4} {
		t.Errorf("got %v, want [1 4]", got)
	}
}
