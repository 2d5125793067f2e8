package avsession

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avsession/engine"
)

// SessionState is the controller's mirrored view of a call with one peer.
type SessionState uint8

const (
	// SessionNone indicates no known call with the peer.
	SessionNone SessionState = iota
	// SessionRinging indicates a call has been requested but not accepted.
	SessionRinging
	// SessionActive indicates media is flowing in at least one direction.
	SessionActive
	// SessionFinished indicates the call ended normally.
	SessionFinished
	// SessionError indicates the call ended with an engine error.
	SessionError
)

// String returns the state name used in logs.
func (s SessionState) String() string {
	switch s {
	case SessionNone:
		return "none"
	case SessionRinging:
		return "ringing"
	case SessionActive:
		return "active"
	case SessionFinished:
		return "finished"
	case SessionError:
		return "error"
	default:
		return "unknown"
	}
}

// session mirrors one peer's call lifecycle. The native engine is
// authoritative: transitions the state machine cannot reach legally are
// force-applied rather than rejected.
type session struct {
	peer    uint32
	machine *fsm.FSM

	audioEnabled bool
	videoEnabled bool
}

func newSession(peer uint32) *session {
	return &session{
		peer: peer,
		machine: fsm.NewFSM(
			SessionNone.String(),
			fsm.Events{
				{Name: "ring", Src: []string{"none"}, Dst: "ringing"},
				{Name: "accept", Src: []string{"none", "ringing"}, Dst: "active"},
				{Name: "finish", Src: []string{"ringing", "active"}, Dst: "finished"},
				{Name: "fail", Src: []string{"none", "ringing", "active"}, Dst: "error"},
			},
			fsm.Callbacks{},
		),
	}
}

func (s *session) state() SessionState {
	switch s.machine.Current() {
	case "ringing":
		return SessionRinging
	case "active":
		return SessionActive
	case "finished":
		return SessionFinished
	case "error":
		return SessionError
	default:
		return SessionNone
	}
}

// transition attempts an FSM event and falls back to force-setting the
// destination when the transition is not legal from the current state.
// Returns true when the state actually changed.
func (s *session) transition(log *logrus.Entry, name, dst string) bool {
	before := s.machine.Current()
	if before == dst {
		return false
	}
	if err := s.machine.Event(context.Background(), name); err != nil {
		log.WithFields(logrus.Fields{
			"peer":       s.peer,
			"from_state": before,
			"to_state":   dst,
		}).Debug("Forcing session state, engine is authoritative")
		s.machine.SetState(dst)
	}
	return true
}

// SessionState reports the mirrored call state for a peer. The mirror
// reflects local operations always, and remote transitions whenever the
// call-request/call-state capabilities are being observed.
func (c *Controller) SessionState(peer uint32) SessionState {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	s, ok := c.sessions[peer]
	if !ok {
		return SessionNone
	}
	return s.state()
}

// ActiveSessions reports how many sessions are currently ringing or active.
func (c *Controller) ActiveSessions() int {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	return c.countActiveLocked()
}

func (c *Controller) countActiveLocked() int {
	n := 0
	for _, s := range c.sessions {
		switch s.state() {
		case SessionRinging, SessionActive:
			n++
		}
	}
	return n
}

func (c *Controller) sessionLocked(peer uint32) *session {
	s, ok := c.sessions[peer]
	if !ok {
		s = newSession(peer)
		c.sessions[peer] = s
	}
	return s
}

// mirrorRing records a requested call, incoming or outgoing.
func (c *Controller) mirrorRing(peer uint32, audioEnabled, videoEnabled bool) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	s := c.sessionLocked(peer)
	// A fresh request after a finished call starts a new session entry.
	if st := s.state(); st == SessionFinished || st == SessionError {
		s = newSession(peer)
		c.sessions[peer] = s
	}
	s.audioEnabled = audioEnabled
	s.videoEnabled = videoEnabled
	s.transition(c.log, "ring", "ringing")
	c.metrics.sessionsActive.Set(float64(c.countActiveLocked()))
}

// mirrorActive records an accepted call.
func (c *Controller) mirrorActive(peer uint32) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	s := c.sessionLocked(peer)
	s.transition(c.log, "accept", "active")
	c.metrics.sessionsActive.Set(float64(c.countActiveLocked()))
}

// mirrorFinish records a locally ended call.
func (c *Controller) mirrorFinish(peer uint32) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	s, ok := c.sessions[peer]
	if !ok {
		return
	}
	s.transition(c.log, "finish", "finished")
	c.metrics.sessionsActive.Set(float64(c.countActiveLocked()))
}

// mirrorNative applies a call state reported by the engine.
func (c *Controller) mirrorNative(peer uint32, state engine.CallState) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	switch {
	case state&engine.CallStateError != 0:
		s := c.sessionLocked(peer)
		s.transition(c.log, "fail", "error")
	case state&engine.CallStateFinished != 0:
		s, ok := c.sessions[peer]
		if ok {
			s.transition(c.log, "finish", "finished")
		}
	case state == engine.CallStateNone:
		delete(c.sessions, peer)
	default:
		// Some combination of sending/accepting bits: media is flowing.
		s := c.sessionLocked(peer)
		s.audioEnabled = state&(engine.CallStateSendingAudio|engine.CallStateAcceptingAudio) != 0
		s.videoEnabled = state&(engine.CallStateSendingVideo|engine.CallStateAcceptingVideo) != 0
		s.transition(c.log, "accept", "active")
	}
	c.metrics.sessionsActive.Set(float64(c.countActiveLocked()))
}
