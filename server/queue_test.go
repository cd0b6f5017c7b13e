package server

import (
	"testing"
	"time"

	"relaychat/models"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	for _, id := range []string{"m1", "m2", "m3"} {
		q.push(&models.ChatMessage{ID: id})
	}

	for _, want := range []string{"m1", "m2", "m3"} {
		msg, ok := q.pop()
		if !ok {
			t.Fatal("Queue closed unexpectedly")
		}
		if msg.(*models.ChatMessage).ID != want {
			t.Errorf("Expected %s, got %s", want, msg.(*models.ChatMessage).ID)
		}
	}
}

func TestQueueDetachWakesPop(t *testing.T) {
	q := newQueue()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	// Let the goroutine block on the empty queue first.
	time.Sleep(20 * time.Millisecond)
	q.detach()

	select {
	case ok := <-done:
		if ok {
			t.Error("Expected pop to report closed")
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on detach")
	}
}

func TestQueueDetachReturnsPending(t *testing.T) {
	q := newQueue()
	q.push(&models.ChatMessage{ID: "m1"})
	q.push(&models.ChatMessage{ID: "m2"})

	pending := q.detach()
	if len(pending) != 2 || pending[0].(*models.ChatMessage).ID != "m1" {
		t.Errorf("Expected pending [m1 m2], got %v", pending)
	}

	// Closed queue drops further pushes and yields nothing.
	q.push(&models.ChatMessage{ID: "m3"})
	if _, ok := q.pop(); ok {
		t.Error("Expected pop on detached queue to report closed")
	}
}
