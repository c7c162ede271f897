package roompush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chiptally/internal/roompush/platforms"

	"github.com/coder/quartz"
)

type fakeAdapter struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	forceFail bool
	messages  []platforms.Message
	forgotten []string
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Send(_ context.Context, _ string, _ string, msg platforms.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, msg)
	if f.forceFail || f.calls <= f.failFirst {
		return errors.New("fail")
	}
	return nil
}

func (f *fakeAdapter) ForgetPanel(_ string, panelKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, panelKey)
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) Messages() []platforms.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platforms.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeAdapter) Forgotten() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.forgotten...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var testTarget = PushTarget{Platform: "fake", Endpoint: "https://example.com/hook", RoomID: "ABCDEF", Enabled: true}

func newWorkerManager(t *testing.T, cfg Config, fake *fakeAdapter) (*Manager, *quartz.Mock, context.Context) {
	t.Helper()
	clock := quartz.NewMock(t)
	m := NewManager(cfg, nil, WithClock(clock))
	m.adapters = map[string]platforms.Adapter{"fake": fake}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.worker(ctx)
	return m, clock, ctx
}

func TestRetryThenSuccess(t *testing.T) {
	fake := &fakeAdapter{failFirst: 1}
	m, clock, ctx := newWorkerManager(t, Config{RetryMax: 2, RetryBase: 5 * time.Millisecond}, fake)

	if !m.enqueue(pushJob{Target: testTarget, Formatted: FormattedMessage{Title: "x"}}) {
		t.Fatal("enqueue failed")
	}
	waitFor(t, "first attempt", func() bool { return fake.Calls() == 1 })
	waitFor(t, "retry scheduled", func() bool { return m.retryQ.Pending() == 1 })
	clock.Advance(5 * time.Millisecond).MustWait(ctx)
	waitFor(t, "second attempt", func() bool { return fake.Calls() == 2 })
	if m.retryQ.Pending() != 0 {
		t.Fatalf("no retry should be pending after success")
	}
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	fake := &fakeAdapter{forceFail: true}
	m, clock, ctx := newWorkerManager(t, Config{RetryMax: 1, RetryBase: 5 * time.Millisecond}, fake)
	dropped := metricPushRetryDroppedTotal.Value()

	if !m.enqueue(pushJob{Target: testTarget, Formatted: FormattedMessage{Title: "x"}}) {
		t.Fatal("enqueue failed")
	}
	waitFor(t, "retry scheduled", func() bool { return m.retryQ.Pending() == 1 })
	clock.Advance(5 * time.Millisecond).MustWait(ctx)
	waitFor(t, "retry dropped", func() bool { return metricPushRetryDroppedTotal.Value() == dropped+1 })
	if got := fake.Calls(); got != 2 {
		t.Fatalf("expected 2 calls (initial + 1 retry), got %d", got)
	}
	if m.retryQ.Pending() != 0 {
		t.Fatalf("dropped job must not be rescheduled")
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeAdapter{forceFail: true}
	cfg := Config{RetryMax: 0, FailureThreshold: 2, CircuitOpenDuration: time.Minute}
	m, clock, ctx := newWorkerManager(t, cfg, fake)
	opened := metricPushCircuitOpenTotal.Value()

	for i := 1; i <= 2; i++ {
		m.enqueue(pushJob{Target: testTarget})
		waitFor(t, "failed send", func() bool { return fake.Calls() == i })
	}
	m.enqueue(pushJob{Target: testTarget})
	waitFor(t, "circuit rejection", func() bool { return metricPushCircuitOpenTotal.Value() == opened+1 })
	if fake.Calls() != 2 {
		t.Fatalf("open circuit must not call the adapter, calls=%d", fake.Calls())
	}

	clock.Advance(time.Minute).MustWait(ctx)
	m.enqueue(pushJob{Target: testTarget})
	waitFor(t, "send after cooldown", func() bool { return fake.Calls() == 3 })
}

func TestTerminalPanelForgetsMessage(t *testing.T) {
	fake := &fakeAdapter{}
	m, _, _ := newWorkerManager(t, Config{}, fake)

	m.enqueue(pushJob{Target: testTarget, Formatted: FormattedMessage{PanelKey: "room:ABCDEF"}})
	m.enqueue(pushJob{Target: testTarget, Formatted: FormattedMessage{PanelKey: "room:ABCDEF"}, PanelTerminal: true})
	waitFor(t, "forget", func() bool { return len(fake.Forgotten()) == 1 })
	if got := fake.Forgotten()[0]; got != "room:ABCDEF" {
		t.Fatalf("forgot %q", got)
	}
}
