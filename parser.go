package favour

import (
	"regexp"
	"strconv"
	"strings"
)

// The tag grammar is deliberately forgiving: the model may reorder fields,
// vary case, use fullwidth brackets or colons, or emit several competing tags
// in one response. Precedence is never ambiguous: the last valid tag in
// document order wins, and repetition is an advertised part of the protocol.
var (
	// affinityTagPattern matches a bracketed span whose interior mentions
	// affinity/favour without nesting further brackets.
	affinityTagPattern = regexp.MustCompile(`(?is)[\[［][^\[\]［］]*?(?:affinity|favou?r)[^\[\]［］]*?[\]］]`)

	increasePattern  = regexp.MustCompile(`(?i)increase\s*[:：]?\s*(-?\d+)`)
	decreasePattern  = regexp.MustCompile(`(?i)decrease\s*[:：]?\s*(\d+)`)
	unchangedPattern = regexp.MustCompile(`(?i)unchanged`)

	// relationshipTagPattern matches the confirmation tag:
	// [user requests relationship confirmation:<name>:<granted>[:<unique>]]
	// The "user requests" prefix is optional; the unique field defaults to
	// false when absent.
	relationshipTagPattern = regexp.MustCompile(`(?i)[\[［]\s*(?:user\s+requests\s+)?relationship\s+confirmation\s*[:：]\s*([^:：\[\]［］]*?)\s*[:：]\s*(true|false)(?:\s*[:：]\s*(true|false))?\s*[\]］]`)

	trailingSpacePattern = regexp.MustCompile(`[ \t]+\n`)
	blankRunPattern      = regexp.MustCompile(`\n{3,}`)
)

// Parser extracts affinity and relationship signals from model output.
// It is pure: methods never fail and never mutate shared state.
type Parser struct {
	increase Bounds
	decrease Bounds
}

// NewParser builds a parser with the configured magnitude ranges.
func NewParser(cfg Config) *Parser {
	return &Parser{
		increase: Bounds{Min: cfg.IncreaseMin, Max: cfg.IncreaseMax},
		decrease: Bounds{Min: cfg.DecreaseMin, Max: cfg.DecreaseMax},
	}
}

// Parse extracts at most one affinity delta and one relationship event from
// free-form model text.
//
// Among affinity tags, only the last valid one counts: a tag carrying a
// directional keyword with an unparseable or missing magnitude is skipped
// entirely, and a tag mentioning affinity without any directional keyword is
// ignored for delta purposes (it still marks the response as tagged, and
// Strip removes it). Malformed tags are never errors.
func (p *Parser) Parse(text string) ParseResult {
	var result ParseResult

	matches := affinityTagPattern.FindAllString(text, -1)
	result.HasAffinityTag = len(matches) > 0
	for _, tag := range matches {
		if delta, ok := p.parseDelta(tag); ok {
			result.Delta = delta
		}
	}

	result.Relationship = parseRelationship(text)
	return result
}

// parseDelta interprets a single affinity tag interior. The second return is
// false when the tag carries no valid directional signal.
func (p *Parser) parseDelta(tag string) (int, bool) {
	switch {
	case decreasePattern.MatchString(tag):
		m := decreasePattern.FindStringSubmatch(tag)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return -p.decrease.Clamp(n), true
	case increasePattern.MatchString(tag):
		m := increasePattern.FindStringSubmatch(tag)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		if n < 0 {
			n = -n
		}
		return p.increase.Clamp(n), true
	case unchangedPattern.MatchString(tag):
		// "unchanged" wins even if a stray number follows it.
		return 0, true
	default:
		return 0, false
	}
}

// parseRelationship returns the event encoded by the last relationship tag,
// or nil. Only granted requests with a non-empty name produce an event.
func parseRelationship(text string) *RelationshipEvent {
	matches := relationshipTagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	last := matches[len(matches)-1]
	name := strings.TrimSpace(last[1])
	granted := strings.EqualFold(last[2], "true")
	if !granted || name == "" {
		return nil
	}
	unique := strings.EqualFold(last[3], "true")
	return &RelationshipEvent{Name: name, Unique: unique}
}

// Strip removes every recognized tag span (affinity and relationship, not
// just the winning ones) and tidies the remaining whitespace. It is
// idempotent and leaves unrecognized bracketed text untouched.
func (p *Parser) Strip(text string) string {
	out := affinityTagPattern.ReplaceAllString(text, "")
	out = relationshipTagPattern.ReplaceAllString(out, "")
	out = trailingSpacePattern.ReplaceAllString(out, "\n")
	out = blankRunPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
