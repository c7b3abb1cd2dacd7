// Package session keeps per-conversation history in memory.
package session

import (
	"fmt"
	"strings"
	"sync"
)

// message is one exchanged turn.
type message struct {
	role    string // "User" or "Assistant"
	content string
}

// Manager creates sessions and tracks their recent exchanges. Each session
// retains at most maxHistory question/answer pairs; older turns are
// discarded. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	maxHistory int
	counter    int
	sessions   map[string][]message
}

// NewManager creates a Manager keeping maxHistory exchanges per session.
func NewManager(maxHistory int) *Manager {
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]message),
	}
}

// Create allocates a new session and returns its ID. IDs are sequential
// for the lifetime of the manager: session_1, session_2, and so on.
func (m *Manager) Create() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	id := fmt.Sprintf("session_%d", m.counter)
	m.sessions[id] = nil
	return id
}

// AddMessage records a single turn for the given role. Unknown session IDs
// are created implicitly, and history is trimmed after every insert, so a
// user turn can be stored before the matching assistant reply exists.
func (m *Manager) AddMessage(id, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(id, message{role: role, content: content})
}

// AddExchange records one user question and the assistant's answer.
// Unknown session IDs are created implicitly.
func (m *Manager) AddExchange(id, userMessage, assistantMessage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(id, message{role: "User", content: userMessage})
	m.appendLocked(id, message{role: "Assistant", content: assistantMessage})
}

// appendLocked adds one turn and trims the session to the retention
// window. Callers must hold mu.
func (m *Manager) appendLocked(id string, msg message) {
	msgs := append(m.sessions[id], msg)

	// Two messages per retained exchange.
	if limit := m.maxHistory * 2; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	m.sessions[id] = msgs
}

// History returns the session's recent turns formatted for prompt
// injection, one "Role: content" line per turn. Returns "" for unknown or
// empty sessions.
func (m *Manager) History(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.sessions[id]
	if len(msgs) == 0 {
		return ""
	}

	lines := make([]string, len(msgs))
	for i, msg := range msgs {
		lines[i] = fmt.Sprintf("%s: %s", msg.role, msg.content)
	}
	return strings.Join(lines, "\n")
}

// Clear removes all history for a session while keeping the ID valid.
// Unknown IDs are left alone.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		m.sessions[id] = nil
	}
}
