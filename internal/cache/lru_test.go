package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("march", 1)
	c.Set("april", 2)
	c.Get("march")
	c.Set("may", 3)

	if _, ok := c.Get("april"); ok {
		t.Fatal("april should have been evicted")
	}
	if v, ok := c.Get("march"); !ok || v != 1 {
		t.Fatalf("march = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("a", "x")
	c.Set("b", "y")
	time.Sleep(20 * time.Millisecond)

	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", n)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry returned")
	}
}

func TestLRUCache_ClearAndStats(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("zzz")

	st := c.Stats()
	if st.Size != 2 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("Stats() = %+v", st)
	}
	if n := c.Clear(); n != 2 {
		t.Fatalf("Clear() = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Fatalf("Size() after Clear = %d", c.Size())
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	var calls atomic.Int32
	load := func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad() = %d, %v", v, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("loader called %d times, want 1", calls.Load())
	}

	boom := errors.New("store down")
	if _, err := c.GetOrLoad(context.Background(), "bad", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrLoad() error = %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatal("errors must not be cached")
	}
}

func TestLRUCache_GetOrLoadCoalesces(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("loader called %d times, want 1", calls.Load())
	}
}

func TestLRUCache_ClearDuringLoadDropsResult(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
		c.Clear()
		return 1, nil
	})
	if err != nil || v != 1 {
		t.Fatalf("GetOrLoad() = %d, %v", v, err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("value loaded before Clear must not be stored")
	}
}

func TestLRUCache_GetOrLoadSurvivesFirstCallerCancel(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr error

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(first, "march", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			loadErr = ctx.Err()
			return 9, nil
		})
		firstDone <- err
	}()
	<-started

	secondDone := make(chan int, 1)
	go func() {
		v, err := c.GetOrLoad(context.Background(), "march", func(context.Context) (int, error) {
			t.Error("second caller must join the running load")
			return 0, nil
		})
		if err != nil {
			t.Errorf("second caller: %v", err)
		}
		secondDone <- v
	}()

	cancel()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)

	if v := <-secondDone; v != 9 {
		t.Fatalf("second caller got %d, want 9", v)
	}
	if loadErr != nil {
		t.Fatalf("shared load saw cancellation: %v", loadErr)
	}
	if v, ok := c.Get("march"); !ok || v != 9 {
		t.Fatalf("loaded value not cached: %d, %v", v, ok)
	}
}

func TestManager(t *testing.T) {
	a := NewLRUCache[int](10, time.Millisecond)
	b := NewLRUCache[int](10, time.Hour)
	a.Set("x", 1)
	b.Set("y", 2)

	m := NewManager()
	m.Register(a)
	m.Register(b)

	time.Sleep(5 * time.Millisecond)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if n := m.ClearAll(); n != 1 {
		t.Fatalf("ClearAll() = %d, want 1", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
