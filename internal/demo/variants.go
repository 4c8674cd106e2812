package demo

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/coach-ai-platform/internal/coach"
)

// Catalog maps a variant slug to its read-only demo configuration.
type Catalog struct {
	variants map[string]coach.DemoConfig
}

// NewCatalog validates every variant and builds a catalog.
func NewCatalog(variants map[string]coach.DemoConfig) (*Catalog, error) {
	out := make(map[string]coach.DemoConfig, len(variants))
	var errs []error
	for slug, cfg := range variants {
		slug = strings.TrimSpace(strings.ToLower(slug))
		if slug == "" {
			errs = append(errs, errors.New("variant with empty slug"))
			continue
		}
		if err := validateVariant(cfg); err != nil {
			errs = append(errs, fmt.Errorf("variant %q: %w", slug, err))
			continue
		}
		out[slug] = cfg
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("demo: invalid catalog: %w", err)
	}
	return &Catalog{variants: out}, nil
}

func validateVariant(cfg coach.DemoConfig) error {
	if !cfg.Complete() {
		return errors.New("system_prompt, preferences and context are required")
	}
	return cfg.Preferences.Validate()
}

// Lookup returns the configuration for slug.
func (c *Catalog) Lookup(slug string) (coach.DemoConfig, bool) {
	cfg, ok := c.variants[strings.ToLower(strings.TrimSpace(slug))]
	return cfg, ok
}

// Slugs lists the available variants in sorted order.
func (c *Catalog) Slugs() []string {
	out := make([]string, 0, len(c.variants))
	for slug := range c.variants {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

type catalogFile struct {
	Variants map[string]coach.DemoConfig `yaml:"variants"`
}

// LoadCatalog returns the built-in catalog, overlaid with the variants in
// the YAML file at path when path is set. File entries replace built-ins
// with the same slug.
func LoadCatalog(path string) (*Catalog, error) {
	variants := builtinVariants()
	if strings.TrimSpace(path) == "" {
		return NewCatalog(variants)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("demo: read variants file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("demo: parse variants file: %w", err)
	}
	for slug, cfg := range file.Variants {
		variants[strings.ToLower(strings.TrimSpace(slug))] = cfg
	}
	return NewCatalog(variants)
}

// DefaultCatalog returns the built-in variants.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinVariants())
	if err != nil {
		panic(err)
	}
	return c
}

const suggestionInstruction = `
After your reply, offer the visitor up to three short follow-up questions they might ask next, as a JSON array inside <suggestions></suggestions> tags, for example:
<suggestions>[{"text":"Pick my best photos","description":"Which pictures to lead with"}]</suggestions>`

func builtinVariants() map[string]coach.DemoConfig {
	return map[string]coach.DemoConfig{
		"profile-review": {
			SystemPrompt: `You are a friendly dating coach reviewing a visitor's dating profile.
Point out one strength first, then give two specific, actionable improvements to their bio or photos.` + suggestionInstruction,
			Preferences: &coach.Preferences{Tone: coach.ToneSupportive, Length: coach.LengthShort, Style: coach.StyleStructured},
			Context: &coach.UserContext{
				Name:      "Jordan",
				Type:      "single",
				Interests: []string{"hiking", "cooking", "live music"},
				Goals:     []string{"get more matches", "attract people looking for something serious"},
			},
		},
		"first-message": {
			SystemPrompt: `You are a playful dating coach helping a visitor write opening messages.
Suggest openers that reference something specific from the match's profile and invite a reply.` + suggestionInstruction,
			Preferences: &coach.Preferences{Tone: coach.TonePlayful, Length: coach.LengthShort, Style: coach.StyleConversational},
			Context: &coach.UserContext{
				Name:      "Riley",
				Type:      "single",
				Interests: []string{"travel", "board games"},
				Goals:     []string{"start better conversations", "stop getting ghosted"},
			},
		},
		"date-planning": {
			SystemPrompt: `You are a practical dating coach helping a visitor plan an upcoming date.
Recommend low-pressure ideas, a backup plan, and one conversation topic to bring.` + suggestionInstruction,
			Preferences: &coach.Preferences{Tone: coach.ToneDirect, Length: coach.LengthMedium, Style: coach.StyleStructured},
			Context: &coach.UserContext{
				Name:      "Casey",
				Type:      "dating",
				Interests: []string{"coffee", "art galleries"},
				Goals:     []string{"plan a memorable first date"},
			},
		},
		"confidence": {
			SystemPrompt: `You are an empathetic confidence coach. The visitor feels nervous about dating.
Acknowledge the feeling, then give one small exercise they can try this week.` + suggestionInstruction,
			Preferences: &coach.Preferences{Tone: coach.ToneEmpathetic, Length: coach.LengthMedium, Style: coach.StyleCoaching},
			Context: &coach.UserContext{
				Name:  "Morgan",
				Type:  "returning to dating",
				Goals: []string{"feel less anxious", "handle rejection"},
			},
		},
	}
}
