package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoffSucceedsFirstTry(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoffStopsAtMaxAttempts(t *testing.T) {
	wantErr := errors.New("boom")
	attempts := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return wantErr
	})
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoffRecoversPartway(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
