//go:build unix

package platform

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestAcquirePidLock_ContentionAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catd.pid")

	lock1, err := AcquirePidLock(path)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pidfile: %v", err)
	}
	if got := strings.TrimSpace(string(content)); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pidfile content: got %q, want own pid %d", got, os.Getpid())
	}

	lock2, err := AcquirePidLock(path)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected %v, got %v", ErrAlreadyRunning, err)
	}
	if lock2 != nil {
		t.Fatalf("expected second lock to be nil, got %#v", lock2)
	}
	if !strings.Contains(err.Error(), strconv.Itoa(os.Getpid())) {
		t.Fatalf("expected holder pid in contention error, got %q", err.Error())
	}

	if err := lock1.Release(); err != nil {
		t.Fatalf("release first lock: %v", err)
	}

	lock3, err := AcquirePidLock(path)
	if err != nil {
		t.Fatalf("acquire lock after release: %v", err)
	}
	if err := lock3.Release(); err != nil {
		t.Fatalf("release third lock: %v", err)
	}
	if err := lock3.Release(); err != nil {
		t.Fatalf("double release should be a no-op: %v", err)
	}
}

func TestAcquirePidLock_CreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "catd", "catd.pid")

	lock, err := AcquirePidLock(path)
	if err != nil {
		t.Fatalf("acquire lock in fresh dir: %v", err)
	}
	defer func() { _ = lock.Release() }()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected pidfile on disk: %v", err)
	}
}

func TestAcquirePidLock_ReleasesOnProcessExit(t *testing.T) {
	if os.Getenv("GO_WANT_PID_LOCK_HELPER") == "1" {
		runPidLockHelperProcess()
		return
	}

	path := filepath.Join(t.TempDir(), "catd.pid")

	// #nosec G204 -- test launches the current test binary with fixed arguments.
	cmd := exec.Command(os.Args[0], "-test.run", "^TestAcquirePidLock_ReleasesOnProcessExit$")
	cmd.Env = append(os.Environ(),
		"GO_WANT_PID_LOCK_HELPER=1",
		"PID_LOCK_HELPER_PATH="+path,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}

	ready := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if scanner.Text() == "locked" {
				close(ready)
				return
			}
		}
	}()

	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		t.Fatalf("timeout waiting for helper to take the lock")
	}

	if _, err := AcquirePidLock(path); !errors.Is(err, ErrAlreadyRunning) {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		t.Fatalf("expected contention while helper runs, got %v", err)
	}

	if err := cmd.Process.Kill(); err != nil {
		t.Fatalf("kill helper: %v", err)
	}
	_ = cmd.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		lock, err := AcquirePidLock(path)
		if err == nil {
			if relErr := lock.Release(); relErr != nil {
				t.Fatalf("release lock after helper exit: %v", relErr)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("lock remained held after helper process exit")
}

func runPidLockHelperProcess() {
	lock, err := AcquirePidLock(os.Getenv("PID_LOCK_HELPER_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "helper acquire: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = lock.Release() }()
	fmt.Println("locked")
	time.Sleep(time.Minute)
}
