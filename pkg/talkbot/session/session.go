// Package session implements per-user conversational state: one lazily
// created UserSession per user id, a bounded FIFO history, the interaction
// mode state machine, and the prompt builder for the completion backend.
//
// Concurrency contract: the Store map is guarded by its own RWMutex; each
// session carries two locks. The inner mutex protects field access; the event
// mutex is held by the router for the whole dispatch of one inbound event, so
// two rapid messages from the same user can never interleave their mutations,
// while different users proceed fully in parallel.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// Role tags one turn of conversation history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message. The JSON tags match the wire format of
// OpenAI-compatible chat completion endpoints, so prompts marshal directly.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Mode is the per-user interaction mode.
type Mode int

const (
	// ModeIdle is the normal chat mode.
	ModeIdle Mode = iota

	// ModeAwaitingImagePrompt means the next text message is an image
	// generation prompt, not a chat message.
	ModeAwaitingImagePrompt
)

// String returns the mode name for logs and /status.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAwaitingImagePrompt:
		return "awaiting_image_prompt"
	default:
		return "unknown"
	}
}

// UserSession is the full mutable state kept for one user. All access goes
// through the Store or through Snapshot; nothing outside this package touches
// the fields directly.
type UserSession struct {
	UserID int64

	modelID   string
	voiceID   string
	voiceMode bool
	mode      Mode
	history   []Turn

	CreatedAt    time.Time
	lastActiveAt time.Time

	// mu guards the mutable fields above.
	mu sync.Mutex

	// eventMu serializes whole-event handling for this user.
	eventMu sync.Mutex
}

// Acquire blocks until no other event for this user is in flight.
func (s *UserSession) Acquire() { s.eventMu.Lock() }

// Release frees the event slot taken by Acquire.
func (s *UserSession) Release() { s.eventMu.Unlock() }

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	UserID       int64
	ModelID      string
	VoiceID      string
	VoiceMode    bool
	Mode         Mode
	History      []Turn
	LastActiveAt time.Time
}

// Snapshot returns a consistent copy of the session state.
func (s *UserSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := make([]Turn, len(s.history))
	copy(hist, s.history)

	return Snapshot{
		UserID:       s.UserID,
		ModelID:      s.modelID,
		VoiceID:      s.voiceID,
		VoiceMode:    s.voiceMode,
		Mode:         s.mode,
		History:      hist,
		LastActiveAt: s.lastActiveAt,
	}
}

// Config holds the static inputs of a Store.
type Config struct {
	// Models is the model registry; selection validates against it.
	Models map[string]ModelProfile

	// Voices is the voice registry.
	Voices map[string]VoiceProfile

	// DefaultModel is assigned to new sessions. Must be a Models key.
	DefaultModel string

	// DefaultVoice is assigned to new sessions. Must be a Voices key.
	DefaultVoice string

	// HistoryLimit is the maximum number of turns kept per session. When an
	// append exceeds it, the oldest turn is evicted.
	HistoryLimit int

	// SystemPrompt is prepended to every completion request. It is never
	// stored in history and never counted against HistoryLimit.
	SystemPrompt string
}

// Store owns every UserSession, keyed by user id. Sessions are created
// lazily, live for the process lifetime and are never persisted.
type Store struct {
	cfg      Config
	sessions map[int64]*UserSession
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewStore creates a session store over the given registries.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}
	return &Store{
		cfg:      cfg,
		sessions: make(map[int64]*UserSession),
		logger:   logger,
	}
}

// GetOrCreate returns the session for userID, creating a default one if the
// user has never interacted before.
func (st *Store) GetOrCreate(userID int64) *UserSession {
	st.mu.RLock()
	if s, ok := st.sessions[userID]; ok {
		st.mu.RUnlock()
		return s
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring the write lock.
	if s, ok := st.sessions[userID]; ok {
		return s
	}

	now := time.Now()
	s := &UserSession{
		UserID:       userID,
		modelID:      st.cfg.DefaultModel,
		voiceID:      st.cfg.DefaultVoice,
		mode:         ModeIdle,
		CreatedAt:    now,
		lastActiveAt: now,
	}
	st.sessions[userID] = s

	st.logger.Info("session created", "user_id", userID, "model", s.modelID)
	return s
}

// SetModel switches the user's completion model. Returns false and leaves the
// session unchanged when modelID is not registered.
func (st *Store) SetModel(userID int64, modelID string) bool {
	if _, ok := st.cfg.Models[modelID]; !ok {
		return false
	}
	s := st.GetOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelID = modelID
	s.lastActiveAt = time.Now()
	return true
}

// SetVoice switches the user's synthesis voice. Returns false and leaves the
// session unchanged when voiceID is not registered.
func (st *Store) SetVoice(userID int64, voiceID string) bool {
	if _, ok := st.cfg.Voices[voiceID]; !ok {
		return false
	}
	s := st.GetOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceID = voiceID
	s.lastActiveAt = time.Now()
	return true
}

// SetVoiceMode toggles voice replies for the user.
func (st *Store) SetVoiceMode(userID int64, enabled bool) {
	s := st.GetOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceMode = enabled
	s.lastActiveAt = time.Now()
}

// SetMode sets the interaction mode.
func (st *Store) SetMode(userID int64, m Mode) {
	s := st.GetOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// ClearHistory drops the conversation history, keeping the selected model,
// voice and mode. Safe to call repeatedly.
func (st *Store) ClearHistory(userID int64) {
	s := st.GetOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	st.logger.Info("history cleared", "user_id", userID)
}

// AppendTurn adds one turn to the history, evicting the oldest turn when the
// bound is exceeded. The system prompt is never part of the history, so it
// can never be evicted here.
func (st *Store) AppendTurn(userID int64, role Role, content string) {
	s := st.GetOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Turn{Role: role, Content: content})
	if len(s.history) > st.cfg.HistoryLimit {
		s.history = s.history[1:]
	}
	s.lastActiveAt = time.Now()
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Model looks up a model profile by id.
func (st *Store) Model(id string) (ModelProfile, bool) {
	p, ok := st.cfg.Models[id]
	if ok {
		p.ID = id
	}
	return p, ok
}

// Voice looks up a voice profile by id.
func (st *Store) Voice(id string) (VoiceProfile, bool) {
	p, ok := st.cfg.Voices[id]
	if ok {
		p.ID = id
	}
	return p, ok
}

// Models returns all model profiles sorted by id.
func (st *Store) Models() []ModelProfile {
	out := make([]ModelProfile, 0, len(st.cfg.Models))
	for _, id := range sortedIDs(st.cfg.Models) {
		p := st.cfg.Models[id]
		p.ID = id
		out = append(out, p)
	}
	return out
}

// Voices returns all voice profiles sorted by id.
func (st *Store) Voices() []VoiceProfile {
	out := make([]VoiceProfile, 0, len(st.cfg.Voices))
	for _, id := range sortedIDs(st.cfg.Voices) {
		p := st.cfg.Voices[id]
		p.ID = id
		out = append(out, p)
	}
	return out
}

// HistoryLimit exposes the configured bound, mostly for /status.
func (st *Store) HistoryLimit() int { return st.cfg.HistoryLimit }
