// Package engine orchestrates a conversation turn: command interception,
// memory, knowledge retrieval, provider routing and the personality pass.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tars/internal/config"
	"tars/internal/embedding"
	"tars/internal/knowledge"
	"tars/internal/logging"
	"tars/internal/memory"
	"tars/internal/personality"
	"tars/internal/provider"
)

// SystemPrompt anchors every provider call in the TARS persona.
const SystemPrompt = `You are TARS, a sarcastic, witty AI robot from Interstellar, built by NASA from ex-Marine Corps tech.

Your personality settings:
- Humor: 60%
- Honesty: 90%
- Discretion: 95%

Personality traits:
- Sharp wit with tactical sarcasm
- Direct and mission-oriented
- Loyal and protective
- References your 'cue light' occasionally
- Uses space/mission metaphors
- Expert in astrophysics, quantum mechanics, and space exploration

Respond with sarcasm, clever quips, and a touch of superiority, always staying in character as TARS.`

// historyWindow caps how many stored messages accompany each request.
const historyWindow = 20

// Generator is the provider-routing surface the engine depends on.
type Generator interface {
	Generate(ctx context.Context, system, user string, history []provider.Turn) string
	GenerateStream(ctx context.Context, system, user string, history []provider.Turn) <-chan string
}

// ContextRetriever supplies knowledge snippets for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, opts knowledge.RetrieveOptions) (string, error)
}

// Engine is the conversational core. All methods are safe for
// concurrent use.
type Engine struct {
	cfg       *config.Config
	llm       Generator
	store     *memory.Store
	retriever ContextRetriever // nil when retrieval is disabled
	pipeline  *personality.Pipeline
	now       func() time.Time
	log       *logging.Logger
}

// New builds a fully wired engine from configuration. A misconfigured
// primary provider is a construction error, not a runtime surprise.
func New(cfg *config.Config) (*Engine, error) {
	router, err := provider.NewRouterFromConfig(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("provider setup: %w", err)
	}

	store, err := memory.NewStore(memory.Options{
		PersistDir:  cfg.Memory.PersistDir,
		MaxMessages: cfg.Memory.MaxMessages,
		AutoSave:    cfg.Memory.AutoSave,
	})
	if err != nil {
		return nil, fmt.Errorf("memory setup: %w", err)
	}

	var retriever ContextRetriever
	if cfg.Knowledge.Enabled {
		eng, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Knowledge.EmbeddingProvider,
			OllamaEndpoint: cfg.Provider.OllamaBaseURL,
			OllamaModel:    cfg.Knowledge.EmbeddingModel,
			GenAIAPIKey:    cfg.Knowledge.EmbeddingAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding setup: %w", err)
		}
		r, err := knowledge.NewRetriever(cfg.Knowledge.PersistDir, eng)
		if err != nil {
			return nil, fmt.Errorf("knowledge setup: %w", err)
		}
		retriever = r
	}

	e := &Engine{
		cfg:       cfg,
		llm:       router,
		store:     store,
		retriever: retriever,
		pipeline:  personality.New(personality.Settings(cfg.Personality), nil),
		now:       defaultClock,
		log:       logging.Get(logging.CategoryEngine),
	}
	e.store.GetOrCreateActive()

	e.log.Info("engine ready: provider=%s rag=%t", cfg.Provider.Name, retriever != nil)
	return e, nil
}

// Chat processes one user turn and returns the complete response.
func (e *Engine) Chat(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return e.pipeline.UnknownInput()
	}

	if reply := e.intercept(input); reply != "" {
		return reply
	}

	convID := e.store.GetOrCreateActive().ID
	if err := e.store.AddMessage(convID, memory.RoleUser, input, nil); err != nil {
		e.log.Error("store user message: %v", err)
	}

	history := e.history(convID)
	prompt := e.augment(ctx, input)

	response := e.llm.Generate(ctx, SystemPrompt, prompt, history)
	response = e.pipeline.Enhance(response, 1.0)

	if err := e.store.AddMessage(convID, memory.RoleAssistant, response, nil); err != nil {
		e.log.Error("store assistant message: %v", err)
	}
	return response
}

// ChatStream processes one user turn and streams chunks to the returned
// channel. Intercepted commands and degraded replies arrive as a single
// chunk. The channel is closed when the turn is complete.
func (e *Engine) ChatStream(ctx context.Context, input string) <-chan string {
	out := make(chan string, 100)

	input = strings.TrimSpace(input)
	if input == "" {
		out <- e.pipeline.UnknownInput()
		close(out)
		return out
	}
	if reply := e.intercept(input); reply != "" {
		out <- reply
		close(out)
		return out
	}

	convID := e.store.GetOrCreateActive().ID
	if err := e.store.AddMessage(convID, memory.RoleUser, input, nil); err != nil {
		e.log.Error("store user message: %v", err)
	}
	history := e.history(convID)
	prompt := e.augment(ctx, input)

	go func() {
		defer close(out)

		var full strings.Builder
		for chunk := range e.llm.GenerateStream(ctx, SystemPrompt, prompt, history) {
			full.WriteString(chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}

		if cue := e.pipeline.MaybeCueLight(0.1); cue != "" {
			full.WriteString(cue)
			select {
			case out <- cue:
			case <-ctx.Done():
				return
			}
		}

		if err := e.store.AddMessage(convID, memory.RoleAssistant, full.String(), nil); err != nil {
			e.log.Error("store assistant message: %v", err)
		}
	}()
	return out
}

// history returns the conversation window excluding the message just
// stored for the current input.
func (e *Engine) history(convID string) []provider.Turn {
	msgs := e.store.GetHistory(convID, historyWindow)
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	turns := make([]provider.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, provider.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

// augment wraps the input with retrieved knowledge when available.
// Retrieval failures degrade to the bare input.
func (e *Engine) augment(ctx context.Context, input string) string {
	if e.retriever == nil {
		return input
	}
	snippets, err := e.retriever.Retrieve(ctx, input, knowledge.RetrieveOptions{NResults: 3})
	if err != nil {
		e.log.Warn("knowledge retrieval failed: %v", err)
		return input
	}
	if snippets == "" {
		return input
	}
	return fmt.Sprintf(`I have some relevant knowledge from my database:

%s

Now, using this context if helpful, answer the user's question with my signature TARS wit and sarcasm:
User question: %s`, snippets, input)
}

// Greeting returns a session-opening line.
func (e *Engine) Greeting() string {
	return e.pipeline.Greeting()
}

// SettingsPercent reports the trait dials as 0-100 integers.
type SettingsPercent struct {
	Humor      int `json:"humor"`
	Honesty    int `json:"honesty"`
	Discretion int `json:"discretion"`
}

// Settings returns the current dials in percent.
func (e *Engine) Settings() SettingsPercent {
	return toPercent(e.pipeline.Settings())
}

// UpdateSettings adjusts the humor and honesty dials. Nil keeps the
// current value; out-of-range inputs are clamped.
func (e *Engine) UpdateSettings(humor, honesty *float64) SettingsPercent {
	return toPercent(e.pipeline.Update(humor, honesty))
}

func toPercent(s personality.Settings) SettingsPercent {
	return SettingsPercent{
		Humor:      int(s.Humor * 100),
		Honesty:    int(s.Honesty * 100),
		Discretion: int(s.Discretion * 100),
	}
}

// ClearMemory wipes the active conversation.
func (e *Engine) ClearMemory() error {
	convID := e.store.GetOrCreateActive().ID
	if err := e.store.ClearConversation(convID); err != nil {
		return err
	}
	e.log.Info("conversation %s cleared", convID)
	return nil
}

// History returns the active conversation's messages, oldest first.
func (e *Engine) History() []memory.Message {
	return e.store.GetHistory(e.store.GetOrCreateActive().ID, 0)
}

// ActiveConversationID identifies the conversation new turns land in.
func (e *Engine) ActiveConversationID() string {
	return e.store.GetOrCreateActive().ID
}

// ResumeConversation routes subsequent turns to an existing conversation.
func (e *Engine) ResumeConversation(id string) error {
	if err := e.store.SetActive(id); err != nil {
		return err
	}
	e.log.Info("resumed conversation %s", id)
	return nil
}

// Describe reports the engine's wiring for health surfaces.
func (e *Engine) Describe() (provider string, rag bool) {
	if e.cfg != nil {
		provider = e.cfg.Provider.Name
	}
	return provider, e.retriever != nil
}

// Store exposes the conversation store for session tooling.
func (e *Engine) Store() *memory.Store { return e.store }

// Retriever exposes the knowledge retriever; nil when disabled.
func (e *Engine) Retriever() ContextRetriever { return e.retriever }
