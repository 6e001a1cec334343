package progress

import "testing"

func TestPollReturnsFalseWhenNoCommandQueued(t *testing.T) {
	worker, _ := NewChannelPair()
	if _, ok := worker.Poll(); ok {
		t.Fatal("expected no command queued")
	}
}

func TestCancelIsObservedByPoll(t *testing.T) {
	worker, driver := NewChannelPair()
	driver.Cancel()

	cmd, ok := worker.Poll()
	if !ok {
		t.Fatal("expected Cancel to be queued")
	}
	if cmd != Cancel {
		t.Fatalf("expected Cancel, got %v", cmd)
	}
}

func TestEmitIsObservedByDriver(t *testing.T) {
	worker, driver := NewChannelPair()
	worker.Emit(Event{Kind: EventFileDone, Filename: "a.txt"})

	select {
	case e := <-driver.Events():
		if e.Kind != EventFileDone || e.Filename != "a.txt" {
			t.Fatalf("unexpected event: %+v", e)
		}
	default:
		t.Fatal("expected an event to be available")
	}
}

func TestEmitNeverBlocksWhenBacklogFull(t *testing.T) {
	worker, _ := NewChannelPair()
	for i := 0; i < eventBacklog+10; i++ {
		worker.Emit(Event{Kind: EventChunkTransferred, ChunkSize: uint64(i)})
	}
}
