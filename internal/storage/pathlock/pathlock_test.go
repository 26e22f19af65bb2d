package pathlock

import (
	"sync"
	"testing"
	"time"
)

func TestExclusiveLockSerializes(t *testing.T) {
	m := NewManager()

	release := m.Lock("a/b")

	acquired := make(chan struct{})
	go func() {
		r := m.Lock("a/b")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second writer acquired the lock while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second writer never acquired the lock after release")
	}
}

func TestReadersShare(t *testing.T) {
	m := NewManager()

	r1 := m.RLock("a/b")
	r2 := m.RLock("a/b")
	r1()
	r2()
}

func TestIndependentPathsDoNotBlock(t *testing.T) {
	m := NewManager()

	r1 := m.Lock("a")
	done := make(chan struct{})
	go func() {
		r2 := m.Lock("b")
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated path blocked")
	}
	r1()
}

func TestConcurrentChurn(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.Lock("shared")
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50 (lost update under lock)", counter)
	}
}
