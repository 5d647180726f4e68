package runlock

import (
	"errors"
	"testing"
)

func TestAcquireIsExclusivePerName(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "games")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = first.Release() })

	if _, err := Acquire(dir, "games"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire = %v, want ErrLocked", err)
	}

	other, err := Acquire(dir, "music")
	if err != nil {
		t.Fatalf("Acquire other target: %v", err)
	}
	if err := other.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	l, err := Acquire(dir, "books")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	again, err := Acquire(dir, "books")
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	_ = again.Release()
	if again.Path() != Path(dir, "books") {
		t.Fatalf("Path = %q", again.Path())
	}
}
