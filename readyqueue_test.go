package uexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskFor(cluster *Cluster, name string) *Task {
	return NewTask(cluster, name, func(*Task) {})
}

func TestFIFOQueue_OrderAndRemove(t *testing.T) {
	c := NewCluster()
	q := NewFIFOQueue()
	a, b, cc := taskFor(c, "a"), taskFor(c, "b"), taskFor(c, "c")
	q.Add(a)
	q.Add(b)
	q.Add(cc)

	assert.True(t, q.Remove(b))
	assert.False(t, q.Remove(b), "removing twice must fail")

	assert.Same(t, a, q.Drop())
	assert.Same(t, cc, q.Drop())
	assert.Nil(t, q.Drop())
	assert.True(t, q.Empty())
}

func TestLIFOQueue_Order(t *testing.T) {
	q := NewLIFOQueue()
	c := NewCluster()
	a, b, cc := taskFor(c, "a"), taskFor(c, "b"), taskFor(c, "c")
	q.Add(a)
	q.Add(b)
	q.Add(cc)

	assert.Same(t, cc, q.Drop())
	assert.Same(t, b, q.Drop())
	assert.Same(t, a, q.Drop())
}

func TestStaticPriorityQueue_HigherNumberRunsFirst(t *testing.T) {
	q := NewStaticPriorityQueue()
	c := NewCluster()
	low := taskFor(c, "low")
	low.setActivePriority(1)
	mid := taskFor(c, "mid")
	mid.setActivePriority(5)
	high := taskFor(c, "high")
	high.setActivePriority(9)

	q.Add(low)
	q.Add(mid)
	q.Add(high)

	assert.Same(t, high, q.Drop(), "highest numeric priority must run first")
	assert.Same(t, mid, q.Drop())
	assert.Same(t, low, q.Drop())
}

func TestStaticPriorityQueue_FIFOWithinBand(t *testing.T) {
	q := NewStaticPriorityQueue()
	c := NewCluster()
	a := taskFor(c, "a")
	a.setActivePriority(3)
	b := taskFor(c, "b")
	b.setActivePriority(3)

	q.Add(a)
	q.Add(b)

	assert.Same(t, a, q.Drop())
	assert.Same(t, b, q.Drop())
}

func TestDeadlineMonotonicQueue_EarlierDeadlineFirst(t *testing.T) {
	q := NewDeadlineMonotonicQueue()
	c := NewCluster()
	now := time.Now()
	late := taskFor(c, "late")
	late.SetDeadline(now.Add(time.Hour))
	early := taskFor(c, "early")
	early.SetDeadline(now.Add(time.Minute))

	q.Add(late)
	q.Add(early)

	assert.Same(t, early, q.Drop())
	assert.Same(t, late, q.Drop())
}

func TestCeilingQueue_RaisesAndRestoresPriority(t *testing.T) {
	c := NewCluster()
	owner := taskFor(c, "owner")
	owner.basePriority = 2
	owner.setActivePriority(2)

	q := NewCeilingQueue(NewFIFOQueue(), 50)
	q.OnAcquire(owner)
	require.EqualValues(t, 50, owner.ActivePriority())

	q.OnRelease(owner)
	require.EqualValues(t, 2, owner.ActivePriority())
}
