package progress

import (
	"bytes"
	"sync"
	"testing"
)

func TestNew_DisabledIsNoOp(t *testing.T) {
	m := New(false)
	if m.IsInteractive() {
		t.Error("disabled manager must not be interactive")
	}
	task := m.StartTask("scanning", 3)
	task.Increment(1)
	task.Describe("a.docx")
	task.Complete()
	m.Close()
}

func TestBarManager_ConcurrentIncrement(t *testing.T) {
	var buf bytes.Buffer
	m := NewWithWriter(&buf)
	if !m.IsInteractive() {
		t.Error("bar manager must be interactive")
	}

	task := m.StartTask("scanning", 50)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.Increment(1)
		}()
	}
	wg.Wait()
	task.Complete()
	m.Close()

	if buf.Len() == 0 {
		t.Error("expected progress output")
	}
}
