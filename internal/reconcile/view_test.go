package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingObserver struct {
	mu        sync.Mutex
	results   map[string]int
	coalesced int
	stale     int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{results: make(map[string]int)}
}

func (o *countingObserver) LoadFinished(_ string, result string, _ time.Duration) {
	o.mu.Lock()
	o.results[result]++
	o.mu.Unlock()
}

func (o *countingObserver) Coalesced(string) {
	o.mu.Lock()
	o.coalesced++
	o.mu.Unlock()
}

func (o *countingObserver) Stale(string) {
	o.mu.Lock()
	o.stale++
	o.mu.Unlock()
}

func (o *countingObserver) staleCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stale
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestViewInitialLoadPublishes(t *testing.T) {
	v := New(func(context.Context) (int, error) { return 42, nil }, Options[int]{Name: "test"})
	defer v.Close()

	if _, ok := v.Current(); ok {
		t.Fatalf("expected no snapshot before first load")
	}
	if err := v.Reload(waitCtx(t)); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	p, ok := v.Current()
	if !ok || p.Value != 42 || p.Version != 1 {
		t.Fatalf("current=%+v ok=%v", p, ok)
	}
	if v.State() != StateIdle {
		t.Fatalf("state=%s, want idle", v.State())
	}
}

func TestViewCoalescesTriggersIntoOneFollowUp(t *testing.T) {
	var calls int32
	gate := make(chan struct{})
	started := make(chan struct{}, 4)
	obs := newCountingObserver()

	v := New(func(context.Context) (int32, error) {
		n := atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		if n == 1 {
			<-gate
		}
		return n, nil
	}, Options[int32]{Name: "test", Observer: obs})
	defer v.Close()

	v.Trigger()
	<-started
	// 加载中到达的多次变更
	v.Trigger()
	v.Trigger()
	v.Trigger()
	close(gate)

	if err := v.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("loads=%d, want 2", got)
	}
	p, _ := v.Current()
	if p.Value != 2 || p.Version != 2 {
		t.Fatalf("current=%+v, want value 2 version 2", p)
	}
	if obs.coalesced != 3 {
		t.Fatalf("coalesced=%d, want 3", obs.coalesced)
	}
}

func TestViewFailureKeepsPreviousState(t *testing.T) {
	fail := errors.New("boom")
	var n int32
	v := New(func(context.Context) (string, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			return "first", nil
		}
		return "", fail
	}, Options[string]{Name: "test"})
	defer v.Close()

	if err := v.Reload(waitCtx(t)); err != nil {
		t.Fatalf("first reload: %v", err)
	}
	if err := v.Reload(waitCtx(t)); !errors.Is(err, fail) {
		t.Fatalf("second reload err=%v, want %v", err, fail)
	}
	p, ok := v.Current()
	if !ok || p.Value != "first" || p.Version != 1 {
		t.Fatalf("current=%+v, want previous state", p)
	}
	if v.State() != StateIdle {
		t.Fatalf("state=%s, want idle after failure", v.State())
	}
}

func TestViewAbandonedFetchNeverOverwritesNewer(t *testing.T) {
	release := make(chan struct{})
	lateDone := make(chan struct{})
	var n int32
	obs := newCountingObserver()

	v := New(func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			// 忽略 ctx 的慢加载
			<-release
			defer close(lateDone)
			return "old", nil
		}
		return "new", nil
	}, Options[string]{Name: "test", LoadTimeout: 30 * time.Millisecond, Observer: obs})
	defer v.Close()

	if err := v.Reload(waitCtx(t)); !errors.Is(err, ErrLoadTimeout) {
		t.Fatalf("first reload err=%v, want ErrLoadTimeout", err)
	}
	if err := v.Reload(waitCtx(t)); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	close(release)
	<-lateDone

	deadline := time.Now().Add(time.Second)
	for obs.staleCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if obs.staleCount() != 1 {
		t.Fatalf("stale=%d, want 1", obs.staleCount())
	}
	p, _ := v.Current()
	if p.Value != "new" || p.Generation != 2 {
		t.Fatalf("current=%+v, want new from generation 2", p)
	}
}

func TestViewOnPublishOrderedAndCloned(t *testing.T) {
	var n int32
	v := New(func(context.Context) ([]int, error) {
		return []int{int(atomic.AddInt32(&n, 1))}, nil
	}, Options[[]int]{
		Name:  "test",
		Clone: func(in []int) []int { return append([]int(nil), in...) },
	})
	defer v.Close()

	var mu sync.Mutex
	var versions []uint64
	v.OnPublish(func(p Published[[]int]) {
		p.Value[0] = -1
		mu.Lock()
		versions = append(versions, p.Version)
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		if err := v.Reload(waitCtx(t)); err != nil {
			t.Fatalf("reload: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("versions not increasing: %v", versions)
		}
	}
	p, _ := v.Current()
	if p.Value[0] != 3 {
		t.Fatalf("listener mutated shared snapshot: %v", p.Value)
	}
}

func TestViewCloseCancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	v := New(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 1, ctx.Err()
	}, Options[int]{Name: "test"})

	v.Trigger()
	v.Close()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("in-flight load not cancelled")
	}
	if err := v.Wait(waitCtx(t)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Wait err=%v, want ErrClosed", err)
	}
	v.Trigger()
	if v.State() != StateClosed {
		t.Fatalf("state=%s, want closed", v.State())
	}
	if _, ok := v.Current(); ok {
		t.Fatalf("closed view published a result")
	}
}
