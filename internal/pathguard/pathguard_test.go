package pathguard

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"
)

func TestAcquireIsExclusive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.tif")
	lease, err := Acquire(dest)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := Acquire(dest); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire error = %v, want ErrBusy", err)
	}
	if _, err := os.Stat(dest + ".lock"); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}

	if err := lease.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lease.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	again, err := Acquire(dest)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again.Release()
}

func TestLockFileOutlivesRelease(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "kept.tif")
	lease, err := Acquire(dest)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	lockPath := dest + ".lock"
	before, err := os.Stat(lockPath)
	if err != nil {
		t.Fatalf("stat lock file: %v", err)
	}
	if err := lease.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	after, err := os.Stat(lockPath)
	if err != nil {
		t.Fatalf("lock file removed on release: %v", err)
	}
	if !os.SameFile(before, after) {
		t.Fatal("lock file replaced on release")
	}

	// Another process locking the same inode is excluded while we hold it.
	other := flock.New(lockPath)
	again, err := Acquire(dest)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if ok, err := other.TryLock(); err != nil || ok {
		t.Fatalf("TryLock on held lock file = %v, %v; want false", ok, err)
	}
	if err := again.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock after release = %v, %v; want true", ok, err)
	}
	_ = other.Unlock()
}

func TestRelativeAndAbsolutePathsShareGuard(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	lease, err := Acquire("scene.tif")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release()
	if _, err := Acquire(filepath.Join(dir, "scene.tif")); !errors.Is(err, ErrBusy) {
		t.Fatalf("error = %v, want ErrBusy", err)
	}
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "race.tif")
	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		leases []*Lease
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lease, err := Acquire(dest); err == nil {
				mu.Lock()
				leases = append(leases, lease)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(leases) != 1 {
		t.Fatalf("%d goroutines acquired the guard, want 1", len(leases))
	}
	_ = leases[0].Release()
}
