// Package memory holds conversation history for the TARS assistant.
// Each conversation is one JSON document on disk; a bounded in-memory
// window keeps prompts from growing without limit.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tars/internal/logging"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single utterance within a conversation.
type Message struct {
	ID        string                 `json:"id,omitempty"`
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation is an ordered message sequence with its own identity.
type Conversation struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Messages  []Message              `json:"messages"`
}

// Summary describes a conversation without its message bodies.
type Summary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Options configures a Store.
type Options struct {
	PersistDir  string // empty disables persistence
	MaxMessages int    // per-conversation cap, default 50
	AutoSave    bool   // write after every append
}

// Store manages conversations and their durable JSON records.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	activeID      string
	persistDir    string
	maxMessages   int
	autoSave      bool
	log           *logging.Logger
}

// NewStore creates a Store and loads any previously persisted conversations.
func NewStore(opts Options) (*Store, error) {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 50
	}

	s := &Store{
		conversations: make(map[string]*Conversation),
		persistDir:    opts.PersistDir,
		maxMessages:   opts.MaxMessages,
		autoSave:      opts.AutoSave,
		log:           logging.Get(logging.CategoryMemory),
	}

	if s.persistDir != "" {
		if err := os.MkdirAll(s.persistDir, 0755); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
		s.loadAll()
	}

	return s, nil
}

// loadAll reads every persisted conversation. Files that fail to parse are
// logged and skipped so one bad record never blocks startup.
func (s *Store) loadAll() {
	entries, err := os.ReadDir(s.persistDir)
	if err != nil {
		s.log.Error("read memory directory: %v", err)
		return
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.persistDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Error("read conversation %s: %v", e.Name(), err)
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			s.log.Error("skipping malformed conversation %s: %v", e.Name(), err)
			continue
		}
		if conv.ID == "" {
			s.log.Error("skipping conversation %s: empty id", e.Name())
			continue
		}
		s.conversations[conv.ID] = &conv
		loaded++
	}
	s.log.Info("loaded %d persisted conversations", loaded)
}

// CreateConversation starts a new conversation and makes it active.
func (s *Store) CreateConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() *Conversation {
	now := time.Now()
	id := "conv_" + now.Format("20060102_150405")
	// Same-second creations get a short suffix to stay unique
	for i := 2; ; i++ {
		if _, exists := s.conversations[id]; !exists {
			break
		}
		id = fmt.Sprintf("conv_%s_%d", now.Format("20060102_150405"), i)
	}

	conv := &Conversation{
		ID:        id,
		CreatedAt: now,
		Metadata:  map[string]interface{}{},
	}
	s.conversations[id] = conv
	s.activeID = id
	s.log.Info("created conversation %s", id)
	return conv
}

// GetOrCreateActive returns the active conversation, creating one if needed.
func (s *Store) GetOrCreateActive() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		if conv, ok := s.conversations[s.activeID]; ok {
			return conv
		}
	}
	return s.createLocked()
}

// ActiveID returns the current active conversation id, or "".
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// SetActive switches the active conversation.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("unknown conversation %q", id)
	}
	s.activeID = id
	return nil
}

// AddMessage appends a message to a conversation, trimming the oldest
// entries beyond the cap. Persistence failures are logged, not returned:
// the in-memory record stays authoritative for the session.
func (s *Store) AddMessage(convID string, role Role, content string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return fmt.Errorf("unknown conversation %q", convID)
	}

	conv.Messages = append(conv.Messages, Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})

	if over := len(conv.Messages) - s.maxMessages; over > 0 {
		conv.Messages = conv.Messages[over:]
		s.log.Debug("conversation %s trimmed %d oldest messages", convID, over)
	}

	if s.autoSave {
		if err := s.saveLocked(conv); err != nil {
			s.log.Error("persist conversation %s: %v", convID, err)
		}
	}
	return nil
}

// GetHistory returns up to limit most recent messages in chronological
// order. limit <= 0 returns everything.
func (s *Store) GetHistory(convID string, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil
	}

	msgs := conv.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// ClearConversation empties a conversation's messages but keeps its identity.
func (s *Store) ClearConversation(convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return fmt.Errorf("unknown conversation %q", convID)
	}
	conv.Messages = nil
	if s.autoSave {
		if err := s.saveLocked(conv); err != nil {
			s.log.Error("persist conversation %s: %v", convID, err)
		}
	}
	s.log.Info("cleared conversation %s", convID)
	return nil
}

// DeleteConversation removes a conversation and its durable record.
func (s *Store) DeleteConversation(convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[convID]; !ok {
		return fmt.Errorf("unknown conversation %q", convID)
	}
	delete(s.conversations, convID)
	if s.activeID == convID {
		s.activeID = ""
	}

	if s.persistDir != "" {
		path := filepath.Join(s.persistDir, convID+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Error("delete conversation file %s: %v", path, err)
		}
	}
	return nil
}

// ListConversations returns summaries sorted newest first.
func (s *Store) ListConversations() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, Summary{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			MessageCount: len(conv.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Save forces a durable write of one conversation.
func (s *Store) Save(convID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return fmt.Errorf("unknown conversation %q", convID)
	}
	return s.saveLocked(conv)
}

func (s *Store) saveLocked(conv *Conversation) error {
	if s.persistDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	path := filepath.Join(s.persistDir, conv.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}
	return nil
}
