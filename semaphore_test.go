package uexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore_PVBasic(t *testing.T) {
	cluster := newTestCluster(t, 2)
	s := NewSemaphore(1)

	done := make(chan struct{})
	task := NewTask(cluster, "pv", func(task *Task) {
		assert.Equal(t, 1, s.Count())
		s.P(task)
		assert.Equal(t, 0, s.Count())
		s.V(task)
		assert.Equal(t, 1, s.Count())
		close(done)
	})
	task.Start()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
}

func TestSemaphore_TryPNeverBlocks(t *testing.T) {
	cluster := newTestCluster(t, 1)
	s := NewSemaphore(0)

	results := make(chan bool, 2)
	task := NewTask(cluster, "tryp", func(task *Task) {
		results <- s.TryP(task)
		s.V(task)
		results <- s.TryP(task)
	})
	task.Start()

	select {
	case first := <-results:
		assert.False(t, first, "TryP on an empty semaphore must not block and must fail")
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
	select {
	case second := <-results:
		assert.True(t, second, "TryP after a V must succeed")
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
}

// TestSemaphore_TimedP_RaceAgainstV covers spec scenario 4: a P(d) racing a
// concurrent V arriving well inside the deadline must observe the signalled
// outcome, and the counter must never go negative.
func TestSemaphore_TimedP_RaceAgainstV(t *testing.T) {
	cluster := newTestCluster(t, 4)
	s := NewSemaphore(0)

	woke := make(chan bool, 1)
	waiter := NewTask(cluster, "waiter", func(task *Task) {
		woke <- s.TimedP(task, 2*time.Second)
	})
	waiter.Start()

	time.Sleep(20 * time.Millisecond)
	signaller := NewTask(cluster, "signaller", func(task *Task) {
		s.V(task)
	})
	signaller.Start()

	select {
	case ok := <-woke:
		assert.True(t, ok, "a V arriving well before the deadline must win")
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
	assert.GreaterOrEqual(t, s.Count(), 0)
}

func TestSemaphore_TimedP_ExpiresWithoutV(t *testing.T) {
	cluster := newTestCluster(t, 2)
	s := NewSemaphore(0)

	woke := make(chan bool, 1)
	task := NewTask(cluster, "waiter", func(task *Task) {
		woke <- s.TimedP(task, 40*time.Millisecond)
	})
	task.Start()

	select {
	case ok := <-woke:
		assert.False(t, ok, "TimedP must report the timeout when no V arrives")
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
	assert.Equal(t, 0, s.Count(), "a timed-out P must not have decremented the counter")
}

func TestOwnerLock_Reentrant(t *testing.T) {
	cluster := newTestCluster(t, 2)
	l := NewOwnerLock()

	done := make(chan struct{})
	task := NewTask(cluster, "owner", func(task *Task) {
		l.Acquire(task)
		l.Acquire(task)
		assert.True(t, l.HeldBy(task))
		l.Release(task)
		assert.True(t, l.HeldBy(task), "still held at depth 1")
		l.Release(task)
		assert.False(t, l.HeldBy(task))
		close(done)
	})
	task.Start()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
}

func TestOwnerLock_SerializesOtherTasks(t *testing.T) {
	cluster := newTestCluster(t, 4)
	l := NewOwnerLock()
	counter := 0

	const workers = 6
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		task := NewTask(cluster, "worker", func(task *Task) {
			l.Acquire(task)
			counter++
			l.Release(task)
			done <- struct{}{}
		})
		task.Start()
	}
	for i := 0; i < workers; i++ {
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Fatal("timed out")
		}
	}
	require.Equal(t, workers, counter)
}

func TestRWLock_MultipleReadersConcurrent(t *testing.T) {
	cluster := newTestCluster(t, 4)
	l := NewRWLock()

	release := make(chan struct{})
	bothIn := make(chan struct{}, 2)
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		task := NewTask(cluster, "reader", func(task *Task) {
			l.RLock(task)
			bothIn <- struct{}{}
			<-release
			l.RUnlock(task)
			done <- struct{}{}
		})
		task.Start()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-bothIn:
		case <-time.After(testTimeout):
			t.Fatal("readers failed to run concurrently")
		}
	}
	close(release)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Fatal("timed out")
		}
	}
}

func TestRWLock_WriterExcludesReaders(t *testing.T) {
	cluster := newTestCluster(t, 4)
	l := NewRWLock()

	writerIn := make(chan struct{})
	writerOut := make(chan struct{})
	readerTried := make(chan struct{})
	readerIn := make(chan struct{})

	writer := NewTask(cluster, "writer", func(task *Task) {
		l.Lock(task)
		close(writerIn)
		<-readerTried
		time.Sleep(20 * time.Millisecond)
		l.Unlock(task)
		close(writerOut)
	})
	writer.Start()

	<-writerIn
	reader := NewTask(cluster, "reader", func(task *Task) {
		close(readerTried)
		l.RLock(task)
		close(readerIn)
		l.RUnlock(task)
	})
	reader.Start()

	select {
	case <-readerIn:
		t.Fatal("reader acquired the lock while the writer still held it")
	case <-writerOut:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for writer to release")
	}
	select {
	case <-readerIn:
	case <-time.After(testTimeout):
		t.Fatal("reader never acquired the lock after the writer released")
	}
}

func TestBarrier_ReleasesAllRoundsTogether(t *testing.T) {
	cluster := newTestCluster(t, 4)
	const n = 5
	b := NewBarrier(n)

	const rounds = 3
	arrived := make(chan int, n*rounds)
	for i := 0; i < n; i++ {
		id := i
		task := NewTask(cluster, "barrier-participant", func(task *Task) {
			for r := 0; r < rounds; r++ {
				b.Wait(task)
				arrived <- id*rounds + r
			}
		})
		task.Start()
	}

	deadline := time.After(testTimeout)
	count := 0
	for count < n*rounds {
		select {
		case <-arrived:
			count++
		case <-deadline:
			t.Fatalf("timed out after %d/%d arrivals", count, n*rounds)
		}
	}
}
