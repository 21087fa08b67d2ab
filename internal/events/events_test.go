package events

import "testing"

func TestLogEmitAppendsAndNotifiesListener(t *testing.T) {
	var l Log
	var seen []Event
	l.SetListener(func(e Event) { seen = append(seen, e) })

	l.Emit(KindPlanning, "planning started", nil)
	l.Emit(KindDone, "run complete", map[string]interface{}{"violations": 3})

	hist := l.Events()
	if len(hist) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(hist))
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(seen))
	}
	if hist[1].Stage != KindDone || hist[1].Payload["violations"] != 3 {
		t.Errorf("unexpected second event: %+v", hist[1])
	}
}

func TestLogClearDropsHistoryNotListener(t *testing.T) {
	var l Log
	calls := 0
	l.SetListener(func(Event) { calls++ })
	l.Emit(KindPlanning, "x", nil)
	l.Clear()
	if len(l.Events()) != 0 {
		t.Fatal("expected history cleared")
	}
	l.Emit(KindDone, "y", nil)
	if calls != 2 {
		t.Fatalf("expected listener still installed after Clear, got %d calls", calls)
	}
}

func TestLogWithoutListenerDoesNotPanic(t *testing.T) {
	var l Log
	l.Emit(KindPlanning, "no listener", nil)
	if len(l.Events()) != 1 {
		t.Fatal("expected event retained even with no listener")
	}
}
