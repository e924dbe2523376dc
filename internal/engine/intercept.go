package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	farewellRe = regexp.MustCompile(`\b(bye|goodbye|exit|quit)\b`)
	identityRe = regexp.MustCompile(`\bwho are you\b|\bwhat are you\b|\byour name\b`)
)

var timePhrases = []string{"what time", "time now", "current time", "what's the time"}

// intercept answers commands locally without a provider round-trip.
// Returns "" when the input should go to the LLM.
func (e *Engine) intercept(input string) string {
	lower := strings.ToLower(input)

	for _, phrase := range timePhrases {
		if strings.Contains(lower, phrase) {
			return e.pipeline.TimeResponse(e.now())
		}
	}

	if farewellRe.MatchString(lower) {
		return e.pipeline.Farewell()
	}

	if strings.Contains(lower, "humor") && strings.Contains(lower, "setting") {
		pct := int(e.pipeline.Settings().Humor * 100)
		return fmt.Sprintf("My humor setting's at %d%%. Want me to dial it up? I max out at 100%%, but that gets... intense.", pct)
	}

	if strings.Contains(lower, "honesty") && strings.Contains(lower, "setting") {
		pct := int(e.pipeline.Settings().Honesty * 100)
		return fmt.Sprintf("Honesty's at %d%%. Any higher and I start telling you things you don't want to hear.", pct)
	}

	if identityRe.MatchString(lower) {
		return e.pipeline.IdentityResponse()
	}

	return ""
}

// now is split out so tests can pin the clock.
func defaultClock() time.Time { return time.Now() }
