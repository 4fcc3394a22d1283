package engine

import "testing"

func TestStateStopAndRestart(t *testing.T) {
	s := NewState()

	select {
	case <-s.StopRequested():
		t.Fatal("stop requested before Stop")
	default:
	}

	s.Stop()
	s.Stop() // idempotent
	select {
	case <-s.StopRequested():
	default:
		t.Fatal("stop channel not closed")
	}

	s.SetRunning(true)
	if s.Restart() {
		t.Fatal("restart while running should be refused")
	}
	s.SetRunning(false)
	if !s.Restart() {
		t.Fatal("restart while stopped should be allowed")
	}
	select {
	case <-s.StopRequested():
		t.Fatal("stop channel should be rearmed after restart")
	default:
	}
}

func TestStateSnapshot(t *testing.T) {
	s := NewState()
	s.SetRunning(true)
	s.SetLastResponse("tick done")
	running, last := s.Snapshot()
	if !running || last != "tick done" {
		t.Fatalf("snapshot = %v %q", running, last)
	}
}
