package domain

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	legal := []struct {
		from, to Status
	}{
		{StatusPending, StatusPreparing},
		{StatusPreparing, StatusReady},
		{StatusReady, StatusDelivered},
		{StatusPending, StatusCancelled},
		{StatusPreparing, StatusCancelled},
		{StatusReady, StatusCancelled},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct {
		from, to Status
	}{
		{StatusPending, StatusReady},
		{StatusPending, StatusDelivered},
		{StatusPreparing, StatusPending},
		{StatusPreparing, StatusDelivered},
		{StatusReady, StatusPending},
		{StatusReady, StatusPreparing},
		{StatusDelivered, StatusCancelled},
		{StatusDelivered, StatusPending},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusDelivered},
		{StatusPending, StatusPending},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	for _, st := range []Status{StatusDelivered, StatusCancelled} {
		if !st.Terminal() {
			t.Errorf("expected %s to be terminal", st)
		}
	}
	for _, st := range []Status{StatusPending, StatusPreparing, StatusReady} {
		if st.Terminal() {
			t.Errorf("expected %s to be non-terminal", st)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	if _, err := ParseStatus("preparing"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Fatal("expected error for empty status")
	}
}
