package process

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/reconctl/reconctl/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestManagerTracksAndUntracksChildren(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	r := &Runner{Manager: m}
	tk := newTestTask(t, dir, "echo", []string{"hi"}, time.Second)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), tk)
		close(done)
	}()
	<-done

	assert.Equal(t, 0, m.Count(), "completed child should be untracked")
}

func TestNilManagerIsSafe(t *testing.T) {
	dir := t.TempDir()
	var m *Manager
	r := &Runner{Manager: m}
	tk := newTestTask(t, dir, "echo", []string{"hi"}, time.Second)
	result := r.Run(context.Background(), tk)
	assert.Equal(t, task.StateCompleted, result.Status.State)
}

func TestManagerCloseSignalsLiveChildren(t *testing.T) {
	m := NewManager()
	dir := filepath.Join(t.TempDir())
	r := &Runner{Manager: m, KillGrace: 200 * time.Millisecond}
	tk := newTestTask(t, dir, "sleep", []string{"5"}, 5*time.Second)

	resultCh := make(chan struct{})
	go func() {
		r.Run(context.Background(), tk)
		close(resultCh)
	}()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, m.Count())
	m.Close()

	select {
	case <-resultCh:
	case <-time.After(3 * time.Second):
		t.Fatal("Manager.Close should have terminated the sleeping child")
	}
}
