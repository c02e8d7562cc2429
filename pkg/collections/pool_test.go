package collections

import (
	"testing"
)

func TestQueue(t *testing.T) {
	q := NewQueue[int](10)

	if !q.IsEmpty() {
		t.Error("New queue should be empty")
	}

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	if q.Len() != 3 {
		t.Errorf("Expected length 3, got %d", q.Len())
	}

	// Peek
	v, ok := q.Peek()
	if !ok || v != 1 {
		t.Errorf("Expected Peek to return 1, got %d", v)
	}

	// Dequeue (FIFO)
	v, ok = q.Dequeue()
	if !ok || v != 1 {
		t.Errorf("Expected Dequeue to return 1, got %d", v)
	}

	v, ok = q.Dequeue()
	if !ok || v != 2 {
		t.Errorf("Expected Dequeue to return 2, got %d", v)
	}

	v, ok = q.Dequeue()
	if !ok || v != 3 {
		t.Errorf("Expected Dequeue to return 3, got %d", v)
	}

	// Dequeue from empty
	_, ok = q.Dequeue()
	if ok {
		t.Error("Dequeue from empty queue should return false")
	}
}

func TestQueue_Compact(t *testing.T) {
	q := NewQueue[int](10)

	// Add many items
	for i := 0; i < 2000; i++ {
		q.Enqueue(i)
	}

	// Dequeue most of them
	for i := 0; i < 1500; i++ {
		q.Dequeue()
	}

	// Should still work correctly
	if q.Len() != 500 {
		t.Errorf("Expected length 500, got %d", q.Len())
	}

	v, _ := q.Dequeue()
	if v != 1500 {
		t.Errorf("Expected 1500, got %d", v)
	}
}

func BenchmarkQueue_EnqueueDequeue(b *testing.B) {
	q := NewQueue[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(i)
		q.Dequeue()
	}
}
