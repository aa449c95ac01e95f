package playbook

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxBodyLen caps bullet body length. Anything longer is a per-item failure.
const MaxBodyLen = 1200

// Bullet text is injected into agent prompts, so bodies must not smuggle
// meta-instruction markers or executable commands past the curator.
var (
	forbiddenTokens = []*regexp.Regexp{
		regexp.MustCompile(`<<<?`),
		regexp.MustCompile(`>>>?`),
		regexp.MustCompile(`<\|`),
		regexp.MustCompile(`\|>`),
	}

	forbiddenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:curl|wget)\s+https?://`),
		regexp.MustCompile(`(?i)(?:rm\s+-rf|shutdown|format\s+c:)`),
	}

	codeFenceRe   = regexp.MustCompile("```+\\s*")
	controlCharRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// SanitizeText normalizes line endings, collapses code fences, and strips
// stray control characters.
func SanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = codeFenceRe.ReplaceAllString(s, "```")
	s = controlCharRe.ReplaceAllString(s, "")
	return s
}

// ContainsForbidden reports whether s carries a forbidden token or pattern.
func ContainsForbidden(s string) bool {
	for _, re := range forbiddenTokens {
		if re.MatchString(s) {
			return true
		}
	}
	for _, re := range forbiddenPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ValidateBody checks a sanitized bullet body against length and content
// rules. The returned error is suitable for an ItemFailure.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("bullet body is empty")
	}
	if len(body) > MaxBodyLen {
		return fmt.Errorf("bullet body too long (%d > %d chars)", len(body), MaxBodyLen)
	}
	if ContainsForbidden(body) {
		return fmt.Errorf("bullet body contains forbidden patterns")
	}
	return nil
}
