package transient

import (
	"errors"
	"testing"
)

func TestIs(t *testing.T) {
	if !Is(errors.New("dial tcp: connection refused")) {
		t.Fatalf("expected connection refused to be transient")
	}
	if !Is(errors.New("context deadline exceeded: i/o timeout")) {
		t.Fatalf("expected timeout to be transient")
	}
	if Is(errors.New("permission denied")) {
		t.Fatalf("did not expect permission denied to be transient")
	}
	if Is(nil) {
		t.Fatalf("nil should not be transient")
	}
}
