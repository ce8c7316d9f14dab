package display

import (
	"errors"
	"testing"
)

func TestFakeSignalSetNotifies(t *testing.T) {
	f := NewFakeSignal(false)

	on, err := f.IsAnyDisplayOn()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if on {
		t.Error("expected initial state off")
	}

	f.Set(true)
	select {
	case <-f.Changes():
	default:
		t.Fatal("expected a change notification")
	}

	on, _ = f.IsAnyDisplayOn()
	if !on {
		t.Error("expected state on after Set(true)")
	}
}

func TestFakeSignalCoalescesNotifications(t *testing.T) {
	f := NewFakeSignal(false)
	f.Set(true)
	f.Set(false)
	f.Set(true)

	<-f.Changes()
	select {
	case <-f.Changes():
		t.Error("expected notifications to coalesce into one")
	default:
	}
}

func TestFakeSignalReadError(t *testing.T) {
	f := NewFakeSignal(true)
	f.ReadError = errors.New("simulated error")

	if _, err := f.IsAnyDisplayOn(); err == nil {
		t.Error("expected error to be returned")
	}
}

func TestFakeSignalClose(t *testing.T) {
	f := NewFakeSignal(true)
	if f.Closed() {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed() {
		t.Error("should be closed after Close()")
	}
	if _, err := f.IsAnyDisplayOn(); err == nil {
		t.Error("expected error after Close()")
	}
}
