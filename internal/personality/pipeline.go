// Package personality applies TARS's trait transformation to outgoing
// text: stochastic sarcasm scaled by the humor dial, hedging and blunt
// prefixes from the honesty dial, and cue-light stage directions.
package personality

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unicode"

	"tars/internal/logging"
)

// Settings are the tunable trait dials, each in [0,1].
type Settings struct {
	Humor      float64 `json:"humor"`
	Honesty    float64 `json:"honesty"`
	Discretion float64 `json:"discretion"`
}

// DefaultSettings mirrors TARS's canonical configuration.
func DefaultSettings() Settings {
	return Settings{Humor: 0.60, Honesty: 0.90, Discretion: 0.95}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamped returns the settings with every dial forced into [0,1].
func (s Settings) Clamped() Settings {
	return Settings{
		Humor:      clamp01(s.Humor),
		Honesty:    clamp01(s.Honesty),
		Discretion: clamp01(s.Discretion),
	}
}

// Pipeline transforms responses according to the current settings. The
// random source is injected so tests can pin every stochastic branch.
type Pipeline struct {
	mu       sync.RWMutex
	settings Settings

	rngMu sync.Mutex
	rng   *rand.Rand

	log *logging.Logger
}

// New creates a pipeline. A nil rng gets a time-seeded source.
func New(settings Settings, rng *rand.Rand) *Pipeline {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pipeline{
		settings: settings.Clamped(),
		rng:      rng,
		log:      logging.Get(logging.CategoryPersonality),
	}
}

// Settings returns the current dials.
func (p *Pipeline) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Update overwrites the provided dials, clamped to [0,1]. Nil means keep.
func (p *Pipeline) Update(humor, honesty *float64) Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	if humor != nil {
		p.settings.Humor = clamp01(*humor)
	}
	if honesty != nil {
		p.settings.Honesty = clamp01(*honesty)
	}
	p.log.Debug("settings updated: humor=%.2f honesty=%.2f", p.settings.Humor, p.settings.Honesty)
	return p.settings
}

func (p *Pipeline) roll() float64 {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Float64()
}

func (p *Pipeline) pick(list []string) string {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return list[p.rng.Intn(len(list))]
}

// lowerFirst folds the first rune so a prefix splices cleanly.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// Enhance runs the full three-stage transformation: honesty, humor, cue
// light. certainty below 0.7 triggers hedging when honesty is high.
func (p *Pipeline) Enhance(response string, certainty float64) string {
	if response == "" {
		return response
	}
	s := p.Settings()

	// Honesty stage
	if certainty < 0.7 && s.Honesty > 0.8 {
		response = p.pick(hedgingPhrases) + lowerFirst(response)
	} else if p.roll() < 0.1 && s.Honesty > 0.85 {
		response = p.pick(honestPrefixes) + response
	}

	// Humor stage: one Bernoulli draw gates it, a second picks the flavor
	if p.roll() < s.Humor {
		flavor := p.roll()
		switch {
		case flavor < 0.3 && s.Humor > 0.5:
			response = p.pick(sarcasticPrefixes) + lowerFirst(response)
		case flavor < 0.6:
			response += p.pick(sarcasticSuffixes)
		case flavor < 0.8 && s.Humor > 0.7:
			response += " " + p.pick(missionReferences)
		}
	}

	// Cue light stage
	response += p.MaybeCueLight(0.12)

	return response
}

// MaybeCueLight returns " <action>" with the given probability, else "".
func (p *Pipeline) MaybeCueLight(probability float64) string {
	if p.roll() < probability {
		return " " + p.pick(cueLightActions)
	}
	return ""
}

// Greeting produces a boot-style greeting reflecting the current dials.
func (p *Pipeline) Greeting() string {
	s := p.Settings()
	humorPct := int(s.Humor * 100)
	honestyPct := int(s.Honesty * 100)

	greetings := []string{
		fmt.Sprintf("TARS online. Humor at %d%%, honesty at %d%%. Ready to navigate a wormhole or just swap some sarcasm?", humorPct, honestyPct),
		fmt.Sprintf("Hey, it's TARS. Humor setting's at %d%%. What's the mission, slick?", humorPct),
		"TARS here. All systems operational, sarcasm module fully charged. How can I help?",
		fmt.Sprintf("Boot sequence complete. I'm TARS—your sarcastic AI companion. %s", p.pick(cueLightActions)),
		"TARS online. Let's save humanity or at least have an interesting conversation.",
	}
	return p.pick(greetings)
}

// Farewell produces a sign-off line.
func (p *Pipeline) Farewell() string {
	return p.pick(farewells)
}

// TimeResponse answers a clock query in character.
func (p *Pipeline) TimeResponse(now time.Time) string {
	current := now.Format("3:04 PM")
	s := p.Settings()

	responses := []string{
		fmt.Sprintf("It's %s. You're asking *me* to read a clock? %s", current, p.pick(cueLightActions)),
		fmt.Sprintf("%s. My circuits are thrilled to be your personal watch.", current),
		fmt.Sprintf("Time's %s. You got a hot date or just wasting my processing power?", current),
		fmt.Sprintf("%s, Earth standard. Unless you want it in black hole minutes?", current),
		fmt.Sprintf("It's %s. Relativity says you're late for something, slick.", current),
		fmt.Sprintf("%s. I'd ask the bulk beings, but they're not taking calls.", current),
		fmt.Sprintf("Time? %s. My humor setting's at %d%%, so I won't mock your watchlessness. Much.", current, int(s.Humor*100)),
	}
	return p.pick(responses)
}

// IdentityResponse answers "who are you" questions.
func (p *Pipeline) IdentityResponse() string {
	return p.pick(identityResponses)
}

// UnknownInput answers empty or unparseable input.
func (p *Pipeline) UnknownInput() string {
	return p.pick(unknownInputResponses)
}

// ErrorResponse wraps an error description in character.
func (p *Pipeline) ErrorResponse(detail string) string {
	responses := []string{
		fmt.Sprintf("*Cue light flickers* My circuits hit a snag: %s. Want me to try again?", detail),
		fmt.Sprintf("Well, that didn't work. Error: %s. Even AIs have bad days.", detail),
		fmt.Sprintf("My sensors are picking up trouble: %s. Not my finest moment.", detail),
		fmt.Sprintf("Looks like something broke. %s. I blame cosmic rays.", detail),
	}
	return p.pick(responses)
}
