package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxSuggestions caps the follow-ups attached to a single response.
const MaxSuggestions = 3

// SuggestionSource records which path produced a suggestion list.
type SuggestionSource string

const (
	SourceStructured SuggestionSource = "structured"
	SourceFallback   SuggestionSource = "fallback"
)

var (
	suggestionBlockRE = regexp.MustCompile(`(?is)<suggestions>(.*?)</suggestions>`)

	profileTopicRE    = regexp.MustCompile(`(?i)\b(profiles?|bio|bios|photos?|pictures?|pics?)\b`)
	messageTopicRE    = regexp.MustCompile(`(?i)\b(messag\w*|texting|texted|text(?:s)?\s+(?:him|her|them|back)|write|writing|wrote|say|saying)\b`)
	dateTopicRE       = regexp.MustCompile(`(?i)\b(dates?|meet|meeting|meetup|meet-up)\b`)
	confidenceTopicRE = regexp.MustCompile(`(?i)\b(confiden\w*|nervous|anxi\w*|fears?|afraid|scared)\b`)
)

type suggestionSeed struct {
	text        string
	description string
}

// topicSuggestions pairs each fallback topic with its fixed follow-ups. The
// strategy topic has no entry: it only surfaces through genericSuggestions.
var topicSuggestions = []struct {
	pattern *regexp.Regexp
	seeds   []suggestionSeed
}{
	{profileTopicRE, []suggestionSeed{
		{"Review my dating profile", "Get honest feedback on how your profile comes across"},
		{"Pick my best photos", "Learn which pictures make the strongest first impression"},
	}},
	{messageTopicRE, []suggestionSeed{
		{"Help me write a first message", "Craft an opener that actually gets replies"},
		{"Turn a dry text into a conversation", "Keep the chat flowing without overthinking it"},
	}},
	{dateTopicRE, []suggestionSeed{
		{"Plan a great first date", "Ideas that are low-pressure and easy to enjoy"},
		{"Where should we meet?", "Pick a spot that fits both of your interests"},
	}},
	{confidenceTopicRE, []suggestionSeed{
		{"Build my confidence", "Practical habits for feeling more self-assured"},
		{"Get past my fear of rejection", "Reframe rejection so it stops holding you back"},
	}},
}

var genericSuggestions = []suggestionSeed{
	{"Tell me about your goals", "Share what you're looking for so advice fits you"},
	{"What's your biggest challenge?", "Pinpoint the one thing that would help most right now"},
}

// ClassifyIcon picks an icon from the suggestion's own text. Keywords are
// checked in priority order with a case-insensitive substring test.
func ClassifyIcon(text string) Icon {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "profile", "bio", "photo"):
		return IconProfile
	case containsAny(lower, "message", "text", "write"):
		return IconMessage
	case containsAny(lower, "date", "meet"):
		return IconDate
	case containsAny(lower, "confidence", "nervous", "fear"):
		return IconConfidence
	default:
		return IconStrategy
	}
}

// ExtractSuggestions derives follow-up suggestions for a reply. A
// <suggestions> JSON block in response wins; otherwise the heuristic
// fallback runs against trigger, the user text that prompted the reply.
// It never fails and returns at most MaxSuggestions entries.
func ExtractSuggestions(response, trigger string) []FollowUpSuggestion {
	out, _ := extractSuggestions(response, trigger)
	return out
}

func extractSuggestions(response, trigger string) (out []FollowUpSuggestion, source SuggestionSource) {
	defer func() {
		if r := recover(); r != nil {
			out, source = buildSuggestions(genericSuggestions), SourceFallback
		}
	}()

	if parsed, err := parseSuggestionBlock(response); err == nil {
		return limitSuggestions(parsed), SourceStructured
	}
	return limitSuggestions(fallbackSuggestions(trigger)), SourceFallback
}

var errNoSuggestionBlock = errors.New("coach: no suggestion block")

func parseSuggestionBlock(response string) ([]FollowUpSuggestion, error) {
	match := suggestionBlockRE.FindStringSubmatch(response)
	if match == nil {
		return nil, errNoSuggestionBlock
	}

	raw := strings.TrimSpace(match[1])
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var records []struct {
		Text        string `json:"text"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("coach: decode suggestion block: %w", err)
	}

	seeds := make([]suggestionSeed, 0, len(records))
	for _, rec := range records {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}
		seeds = append(seeds, suggestionSeed{text: text, description: strings.TrimSpace(rec.Description)})
	}
	if len(seeds) == 0 {
		return nil, errors.New("coach: suggestion block had no usable entries")
	}
	return buildSuggestions(seeds), nil
}

func fallbackSuggestions(trigger string) []FollowUpSuggestion {
	seeds := make([]suggestionSeed, 0, 4)
	for _, topic := range topicSuggestions {
		if topic.pattern.MatchString(trigger) {
			seeds = append(seeds, topic.seeds...)
		}
	}
	if len(seeds) < 2 {
		seeds = append(seeds, genericSuggestions...)
	}
	return buildSuggestions(seeds)
}

func buildSuggestions(seeds []suggestionSeed) []FollowUpSuggestion {
	out := make([]FollowUpSuggestion, 0, len(seeds))
	for i, seed := range seeds {
		out = append(out, FollowUpSuggestion{
			ID:          fmt.Sprintf("suggestion-%d", i+1),
			Text:        seed.text,
			Description: seed.description,
			Icon:        ClassifyIcon(seed.text),
		})
	}
	return out
}

func limitSuggestions(in []FollowUpSuggestion) []FollowUpSuggestion {
	if len(in) > MaxSuggestions {
		return in[:MaxSuggestions]
	}
	return in
}

// StripSuggestions removes the suggestion block so the reply can be shown
// as plain prose. The raw text is returned if nothing else remains.
func StripSuggestions(response string) string {
	stripped := strings.TrimSpace(suggestionBlockRE.ReplaceAllString(response, ""))
	if stripped == "" {
		return strings.TrimSpace(response)
	}
	return stripped
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
