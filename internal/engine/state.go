package engine

import "sync"

// State is the shared view the control API has of the background loop. The
// loop publishes its last result here and polls StopRequested between
// iterations.
type State struct {
	mu           sync.Mutex
	running      bool
	lastResponse string
	stopped      bool
	stop         chan struct{}
}

func NewState() *State {
	return &State{
		lastResponse: "loop not started",
		stop:         make(chan struct{}),
	}
}

func (s *State) SetRunning(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = v
}

func (s *State) SetLastResponse(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResponse = msg
}

// Snapshot returns the running flag and last published loop result.
func (s *State) Snapshot() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastResponse
}

// Stop asks the loop to exit after its current iteration. Idempotent.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
}

// Restart rearms the stop channel so a new loop can run. Returns false when
// the loop is still running and nothing should be started.
func (s *State) Restart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	if s.stopped {
		s.stopped = false
		s.stop = make(chan struct{})
	}
	return true
}

// Stopped reports whether a stop is in effect and no Restart has rearmed it.
func (s *State) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// StopRequested is closed once Stop has been called.
func (s *State) StopRequested() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}
