package batching

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult_WaitDeliversOutcome(t *testing.T) {
	res := NewResult()
	if res.Resolved() {
		t.Fatal("fresh handle reports resolved")
	}

	go res.resolve(Response{Content: []byte("done")}, nil)

	resp, err := res.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() returned error: %v", err)
	}
	if string(resp.Content) != "done" {
		t.Errorf("content = %q, want %q", resp.Content, "done")
	}
	if !res.Resolved() {
		t.Error("Resolved() = false after delivery")
	}

	// The outcome must survive repeated waits.
	resp, err = res.Wait(context.Background())
	if err != nil || string(resp.Content) != "done" {
		t.Errorf("second Wait() = (%q, %v), want outcome preserved", resp.Content, err)
	}
}

func TestResult_WaitHonoursContext(t *testing.T) {
	res := NewResult()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := res.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
	if res.Resolved() {
		t.Error("context expiry marked the handle resolved")
	}

	// A late resolution still reaches a later Wait.
	res.resolve(Response{}, ErrCancelled)
	if _, err := res.Wait(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("late Wait() error = %v, want ErrCancelled", err)
	}
}

func TestResult_DoubleResolvePanics(t *testing.T) {
	res := NewResult()
	res.resolve(Response{}, nil)

	defer func() {
		if recover() == nil {
			t.Error("second resolve did not panic")
		}
	}()
	res.resolve(Response{}, nil)
}
