package ext4

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := notFound("inode %d missing", 5)
	kind, ok := KindOf(err)
	if !ok || kind != NotFound {
		t.Fatalf("KindOf(%v) = (%v, %v), want (NotFound, true)", err, kind, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Errorf("KindOf(plain error) reported ok = true, want false")
	}
}

func TestWrapfPreservesKind(t *testing.T) {
	base := assumptionFailed("checksum mismatch")
	wrapped := wrapf(base, "inode %d", 7)
	kind, ok := KindOf(wrapped)
	if !ok || kind != AssumptionFailed {
		t.Fatalf("wrapf() kind = (%v, %v), want (AssumptionFailed, true)", kind, ok)
	}
	if got := wrapped.Error(); got == "" {
		t.Errorf("wrapf() produced empty error string")
	}
}

func TestWrapfNilIsNil(t *testing.T) {
	if wrapf(nil, "context") != nil {
		t.Errorf("wrapf(nil, ...) != nil")
	}
}
