// Package core tracks the live WebRTC sessions the pipeline's telemetry
// sink fans spectrum and histogram frames out to.
package core

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Session is one subscriber's WebRTC leg: a peer connection plus the
// outbound data channel carrying pipeline frames.
type Session struct {
	ID string // the offer's session ID, or a google/uuid string when the offer has none

	PC *webrtc.PeerConnection
	DC *webrtc.DataChannel
}

// SessionManager tracks sessions by ID.
type SessionManager struct {
	mu   sync.RWMutex
	sess map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sess: make(map[string]*Session)}
}

// Put registers a new session under id, replacing any prior entry.
func (m *SessionManager) Put(id string, pc *webrtc.PeerConnection) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{ID: id, PC: pc}
	m.sess[id] = s
	return s
}

func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess[id]
}

func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, id)
}

// All returns a snapshot of every live session, for fan-out sends.
func (m *SessionManager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sess))
	for _, s := range m.sess {
		out = append(out, s)
	}
	return out
}
