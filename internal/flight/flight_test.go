package flight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestClaimThenJoin(t *testing.T) {
	g := NewGroup[string]()

	h1, claimed := g.Claim("k")
	if !claimed {
		t.Fatal("first Claim should win")
	}
	h2, claimed := g.Claim("k")
	if claimed {
		t.Fatal("second Claim should join, not claim")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := h2.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait: %v", err)
			return
		}
		if !res.Ok || res.Val != "v" {
			t.Errorf("res = %+v", res)
		}
	}()

	h1.Complete(Result[string]{Val: "v", Ok: true})
	wg.Wait()
}

func TestCompleteRemovesKey(t *testing.T) {
	g := NewGroup[int]()
	h, _ := g.Claim("k")
	h.Complete(Result[int]{Val: 1, Ok: true})

	// a fresh claim must start a new computation
	if _, claimed := g.Claim("k"); !claimed {
		t.Fatal("key should be claimable again after Complete")
	}
}

func TestErrorPropagatesToWaiters(t *testing.T) {
	g := NewGroup[int]()
	boom := errors.New("boom")

	h1, _ := g.Claim("k")
	h2, _ := g.Claim("k")

	done := make(chan Result[int], 1)
	go func() {
		res, _ := h2.Wait(context.Background())
		done <- res
	}()

	h1.Complete(Result[int]{Err: boom})
	res := <-done
	if !errors.Is(res.Err, boom) {
		t.Fatalf("res.Err = %v, want boom", res.Err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	g := NewGroup[int]()
	g.Claim("k") // never completed

	h, claimed := g.Claim("k")
	if claimed {
		t.Fatal("expected join")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
