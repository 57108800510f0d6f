package domain

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestRegistry_CloseNewestFirst(t *testing.T) {
	reg := NewRegistry()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		reg.Register(CloserFunc(func() error {
			order = append(order, i)
			return nil
		}))
	}
	reg.Register(nil)

	if reg.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", reg.Len())
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("close order = %v, want [3 2 1]", order)
	}
	if reg.Len() != 0 {
		t.Error("registry should be drained")
	}
	if err := reg.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if len(order) != 3 {
		t.Error("second Close should not close again")
	}
}

func TestRegistry_CloseJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	closed := 0

	reg := NewRegistry()
	reg.Register(CloserFunc(func() error { closed++; return errA }))
	reg.Register(CloserFunc(func() error { closed++; return nil }))
	reg.Register(CloserFunc(func() error { closed++; return errB }))

	err := reg.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() = %v, want both errors", err)
	}
	if closed != 3 {
		t.Errorf("closed = %d, want 3", closed)
	}
}

func TestRegisterForDisposal(t *testing.T) {
	bare := httptest.NewRequest("GET", "/", nil)
	var stateErr *InvalidStateError
	if err := RegisterForDisposal(bare, CloserFunc(func() error { return nil })); !errors.As(err, &stateErr) {
		t.Errorf("RegisterForDisposal() = %v, want *InvalidStateError", err)
	}
	if ResourcesForDisposal(bare) != nil {
		t.Error("bare request should have no resources")
	}

	req, _ := EnsureProperties(bare)
	c := CloserFunc(func() error { return nil })
	if err := RegisterForDisposal(req, c); err != nil {
		t.Fatalf("RegisterForDisposal() error = %v", err)
	}
	if got := ResourcesForDisposal(req); len(got) != 1 {
		t.Errorf("ResourcesForDisposal() = %d entries, want 1", len(got))
	}
}
