package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/onelens/backend/pkg/errs"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoRetriesTransientProviderErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("%w: connection reset", errs.ErrTransientProvider)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoFailsFastOnNonTransientErrors(t *testing.T) {
	attempts := 0
	wantErr := errs.Validationf("bad input")

	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return wantErr
	})

	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Do = %v, want validation error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for non-transient error", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return fmt.Errorf("%w: still down", errs.ErrTransientProvider)
	})

	if !errors.Is(err, errs.ErrTransientProvider) {
		t.Fatalf("Do = %v, want transient provider error", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoHonorsRetryableOverride(t *testing.T) {
	sentinel := errors.New("flaky disk")
	cfg := fastConfig()
	cfg.RetryableErrors = []error{sentinel}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 2 {
			return sentinel
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		t.Fatal("operation should not run with canceled context")
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do = %v, want context.Canceled", err)
	}
}
