//go:build linux

/*
Copyright 2025 The Kubernetes Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package shm

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"k8s.io/shmfutex/pkg/futex"
)

const (
	helperEnv     = "SHMFUTEX_TEST_HELPER"
	helperDirEnv  = "SHMFUTEX_TEST_DIR"
	helperNameEnv = "SHMFUTEX_TEST_SEGMENT"
	helperIterEnv = "SHMFUTEX_TEST_ITERATIONS"
)

func testSegmentName() string {
	return "shmfutex-test-" + uuid.New().String()
}

func TestCreateSeedsUnlocked(t *testing.T) {
	dir := t.TempDir()
	name := testSegmentName()

	seg, err := Create(name, WithDir(dir))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer seg.Close()

	if got := seg.Mutex().State(); got != futex.Unlocked {
		t.Errorf("new segment state = %v, want %v", got, futex.Unlocked)
	}
	if seg.Size() != DefaultSize {
		t.Errorf("size = %d, want %d", seg.Size(), DefaultSize)
	}
	if want := filepath.Join(dir, name); seg.Path() != want {
		t.Errorf("path = %q, want %q", seg.Path(), want)
	}
	fi, err := os.Stat(seg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != DefaultMode {
		t.Errorf("mode = %v, want %v", fi.Mode().Perm(), DefaultMode)
	}
}

func TestCreateExistingKeepsValue(t *testing.T) {
	dir := t.TempDir()
	name := testSegmentName()

	first, err := Create(name, WithDir(dir), WithSize(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer first.Close()
	if first.Size() != LayoutSize {
		t.Errorf("size = %d, want it raised to %d", first.Size(), LayoutSize)
	}
	first.Mutex().Lock()

	second, err := Create(name, WithDir(dir))
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	defer second.Close()
	if got := second.Mutex().State(); got != futex.LockedNoWaiters {
		t.Errorf("re-created segment state = %v, want the held lock to survive", got)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		_, err := Open(testSegmentName(), WithDir(dir))
		if !errors.Is(err, ErrNotExist) {
			t.Errorf("Open on a missing segment = %v, want ErrNotExist", err)
		}
	})

	t.Run("TooSmall", func(t *testing.T) {
		name := testSegmentName()
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0, 0}, 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := Open(name, WithDir(dir))
		if !errors.Is(err, ErrTooSmall) {
			t.Errorf("Open on a short file = %v, want ErrTooSmall", err)
		}
	})

	t.Run("InvalidName", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "a/b"} {
			if _, err := Open(name, WithDir(dir)); err == nil {
				t.Errorf("Open(%q) succeeded", name)
			}
		}
	})

	t.Run("SharesMemory", func(t *testing.T) {
		name := testSegmentName()
		a, err := Create(name, WithDir(dir))
		if err != nil {
			t.Fatal(err)
		}
		defer a.Close()
		b, err := Open(name, WithDir(dir))
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()

		a.Mutex().SetValue(2)
		if got := b.Mutex().Value(); got != 2 {
			t.Errorf("value seen through second mapping = %d, want 2", got)
		}
		a.SetHolder(1234)
		if pid, ok := b.Holder(); !ok || pid != 1234 {
			t.Errorf("Holder() = %d, %v; want 1234, true", pid, ok)
		}
		b.ClearHolder()
		if _, ok := a.Holder(); ok {
			t.Errorf("holder still recorded after ClearHolder")
		}
		*a.Counter() = 99
		if got := *b.Counter(); got != 99 {
			t.Errorf("counter seen through second mapping = %d, want 99", got)
		}
	})
}

func TestOpenWait(t *testing.T) {
	dir := t.TempDir()
	name := testSegmentName()

	created := make(chan error, 1)
	go func() {
		time.Sleep(300 * time.Millisecond)
		seg, err := Create(name, WithDir(dir))
		if err == nil {
			err = seg.Close()
		}
		created <- err
	}()

	seg, err := OpenWait(name, 10*time.Second, WithDir(dir))
	if err != nil {
		t.Fatalf("OpenWait: %v", err)
	}
	defer seg.Close()
	if err := <-created; err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := OpenWait("a/b", time.Second, WithDir(dir)); err == nil {
		t.Errorf("OpenWait with an invalid name succeeded")
	}
}

func TestCloseAndRemove(t *testing.T) {
	dir := t.TempDir()
	name := testSegmentName()
	seg, err := Create(name, WithDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := Remove(name, WithDir(dir)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := Remove(name, WithDir(dir)); !errors.Is(err, ErrNotExist) {
		t.Errorf("second Remove = %v, want ErrNotExist", err)
	}
}

func TestCreateConcurrent(t *testing.T) {
	dir := t.TempDir()
	name := testSegmentName()

	var g errgroup.Group
	segs := make([]*Segment, 8)
	for i := range segs {
		i := i
		g.Go(func() error {
			s, err := Create(name, WithDir(dir))
			segs[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	segs[0].Mutex().Lock()
	for _, s := range segs {
		if got := s.Mutex().State(); got != futex.LockedNoWaiters {
			t.Errorf("state through %p = %v, want every mapping to see the same word", s, got)
		}
		s.Close()
	}
}

// TestHelperProcess is run in child processes by the cross-process tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) == "" {
		t.Skip("only runs as a helper process")
	}
	if err := runHelper(os.Getenv(helperEnv)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func runHelper(mode string) error {
	seg, err := OpenWait(os.Getenv(helperNameEnv), 10*time.Second, WithDir(os.Getenv(helperDirEnv)))
	if err != nil {
		return err
	}
	defer seg.Close()
	m := seg.Mutex()

	switch mode {
	case "count":
		n, err := strconv.Atoi(os.Getenv(helperIterEnv))
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			m.Lock()
			seg.SetHolder(os.Getpid())
			*seg.Counter()++
			seg.ClearHolder()
			m.Unlock(1)
		}
	case "lock-once":
		m.Lock()
		seg.SetHolder(os.Getpid())
		seg.ClearHolder()
		m.Unlock(1)
	default:
		return errors.Errorf("unknown helper mode %q", mode)
	}
	return nil
}

func helperCommand(t *testing.T, mode, dir, name string, iterations int) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(),
		helperEnv+"="+mode,
		helperDirEnv+"="+dir,
		helperNameEnv+"="+name,
		helperIterEnv+"="+strconv.Itoa(iterations),
	)
	cmd.Stderr = os.Stderr
	return cmd
}

func TestCrossProcessMutualExclusion(t *testing.T) {
	const (
		children   = 2
		iterations = 10000
	)
	dir := t.TempDir()
	name := testSegmentName()
	seg, err := Create(name, WithDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer seg.Close()

	var g errgroup.Group
	for i := 0; i < children; i++ {
		cmd := helperCommand(t, "count", dir, name, iterations)
		g.Go(cmd.Run)
	}
	m := seg.Mutex()
	for i := 0; i < iterations; i++ {
		m.Lock()
		*seg.Counter()++
		m.Unlock(1)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("helper process failed: %v", err)
	}

	if got, want := *seg.Counter(), uint64((children+1)*iterations); got != want {
		t.Errorf("counter = %d, want %d", got, want)
	}
	if got := m.State(); got != futex.Unlocked {
		t.Errorf("state = %v after every holder released, want %v", got, futex.Unlocked)
	}
}

func TestCrossProcessHandoff(t *testing.T) {
	dir := t.TempDir()
	name := testSegmentName()
	seg, err := Create(name, WithDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer seg.Close()
	m := seg.Mutex()
	m.SetValue(uint32(futex.LockedNoWaiters))

	cmd := helperCommand(t, "lock-once", dir, name, 0)
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	deadline := time.Now().Add(10 * time.Second)
	for m.State() != futex.LockedWaiters {
		if time.Now().After(deadline) {
			t.Fatalf("child never contended for the lock, word = %d", m.Value())
		}
		select {
		case err := <-done:
			t.Fatalf("child exited while the lock was held: %v", err)
		case <-time.After(time.Millisecond):
		}
	}

	m.Unlock(1)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("child failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("child did not acquire the lock after Unlock")
	}
	if got := m.State(); got != futex.Unlocked {
		t.Errorf("state = %v, want %v", got, futex.Unlocked)
	}
}
