package cli

import (
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalHandler(t *testing.T) {
	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Fatal("context canceled before any signal")
	default:
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("sending signal: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after SIGTERM")
	}
}

func TestWaitForShutdown(t *testing.T) {
	sigChan := WaitForShutdown()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("sending signal: %v", err)
	}

	select {
	case sig := <-sigChan:
		if sig != syscall.SIGTERM {
			t.Errorf("got signal %v, want SIGTERM", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signal received")
	}
}
