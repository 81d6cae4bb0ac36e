package session

import (
	"sync"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
)

// Store keeps per-user conversation history and the id of the placeholder
// message currently being edited. It is the only shared state besides the
// timer registry; both are keyed by user id, so users never interfere.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*state
	timers   *TimerRegistry
}

type state struct {
	history          []gemini.Content
	lastBotMessageID int64
}

// NewStore returns an empty store. timers may be nil; when set, Clear also
// cancels the user's pending inactivity timer.
func NewStore(timers *TimerRegistry) *Store {
	return &Store{
		sessions: make(map[int64]*state),
		timers:   timers,
	}
}

// Get returns a copy of the user's history in chronological order, or nil
// if no session exists.
func (s *Store) Get(userID int64) []gemini.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]gemini.Content, len(st.history))
	copy(out, st.history)
	return out
}

// Append adds one turn to the user's history, creating the session if it
// does not exist yet. History is append-only.
func (s *Store) Append(userID int64, role string, parts []gemini.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(userID)
	st.history = append(st.history, gemini.Content{Role: role, Parts: parts})
}

// Clear drops the user's history and placeholder id and cancels any pending
// inactivity timer. Idempotent.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	if s.timers != nil {
		s.timers.Cancel(userID)
	}
}

// SetLastBotMessage records the placeholder message id for the in-flight
// response. A new response cycle supersedes the previous id.
func (s *Store) SetLastBotMessage(userID, messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(userID)
	st.lastBotMessageID = messageID
}

func (s *Store) LastBotMessage(userID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[userID]
	if !ok || st.lastBotMessageID == 0 {
		return 0, false
	}
	return st.lastBotMessageID, true
}

// LastUserText returns the text of the newest turn when that turn belongs
// to the user and begins with a text part; otherwise "".
func (s *Store) LastUserText(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[userID]
	if !ok || len(st.history) == 0 {
		return ""
	}
	last := st.history[len(st.history)-1]
	if last.Role != gemini.RoleUser || len(last.Parts) == 0 {
		return ""
	}
	return last.Parts[0].Text
}

func (s *Store) ensureLocked(userID int64) *state {
	st, ok := s.sessions[userID]
	if !ok {
		st = &state{}
		s.sessions[userID] = st
	}
	return st
}
