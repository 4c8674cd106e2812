package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/internal/coach"
	"github.com/wolfman30/coach-ai-platform/internal/observability/metrics"
)

type deadlineClient struct {
	deadline time.Time
	hasDL    bool
}

func (d *deadlineClient) Complete(ctx context.Context, _ LLMRequest) (LLMResponse, error) {
	d.deadline, d.hasDL = ctx.Deadline()
	return LLMResponse{Text: "ok"}, nil
}

func TestCoachCompleter_BuildsProviderRequest(t *testing.T) {
	client := &scriptedClient{resp: LLMResponse{
		Text:     "Try a question about their photos.",
		Provider: "bedrock",
		Usage:    TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}
	reg := prometheus.NewRegistry()
	completer := NewCoachCompleter(client, "claude-haiku", quietLogger(), WithLLMMetrics(metrics.NewLLMMetrics(reg)))

	text, err := completer.Complete(context.Background(), coach.CompletionRequest{
		Messages: []coach.ChatMessage{
			{Role: coach.RoleSystem, Content: "You are a coach."},
			{Role: coach.RoleUser, Content: "hi"},
			{Role: coach.RoleAssistant, Content: "hello"},
			{Role: coach.RoleUser, Content: "what now?"},
		},
		Preferences: &coach.Preferences{Tone: coach.ToneDirect, Length: coach.LengthShort, Style: coach.StyleStructured},
	})
	require.NoError(t, err)
	assert.Equal(t, "Try a question about their photos.", text)

	req := client.last
	assert.Equal(t, "claude-haiku", req.Model)
	require.Len(t, req.System, 2)
	assert.Equal(t, "You are a coach.", req.System[0])
	assert.Contains(t, req.System[1], "Be candid")
	assert.Contains(t, req.System[1], "<suggestions>")
	require.Len(t, req.Messages, 3)
	assert.Equal(t, ChatRoleUser, req.Messages[0].Role)
	assert.Equal(t, int32(300), req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 0.0001)

	count, err := testutil.GatherAndCount(reg, "coach_llm_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(reg, "coach_llm_tokens_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCoachCompleter_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		resp LLMResponse
		err  error
		want chaterr.Kind
	}{
		{"deadline", LLMResponse{}, context.DeadlineExceeded, chaterr.KindTimeout},
		{"vendor text", LLMResponse{}, errors.New("429 Too Many Requests"), chaterr.KindRateLimitExceeded},
		{"blank text", LLMResponse{Text: "  \n"}, nil, chaterr.KindEmptyResponse},
		{"empty completion", LLMResponse{}, ErrEmptyCompletion, chaterr.KindEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := NewCoachCompleter(&scriptedClient{resp: tt.resp, err: tt.err}, "m", quietLogger())
			_, err := completer.Complete(context.Background(), coach.CompletionRequest{
				Messages: []coach.ChatMessage{{Role: coach.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			assert.True(t, chaterr.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCoachCompleter_AppliesCallTimeout(t *testing.T) {
	client := &deadlineClient{}
	completer := NewCoachCompleter(client, "m", quietLogger(), WithCallTimeout(5*time.Second))

	before := time.Now()
	_, err := completer.Complete(context.Background(), coach.CompletionRequest{})
	require.NoError(t, err)
	require.True(t, client.hasDL)
	assert.WithinDuration(t, before.Add(5*time.Second), client.deadline, time.Second)
}

func TestMaxTokensFor(t *testing.T) {
	tests := []struct {
		prefs   *coach.Preferences
		premium bool
		want    int32
	}{
		{nil, false, 600},
		{&coach.Preferences{Length: coach.LengthShort}, false, 300},
		{&coach.Preferences{Length: coach.LengthLong}, false, 1000},
		{&coach.Preferences{Length: coach.LengthMedium}, true, 900},
		{&coach.Preferences{Length: coach.LengthLong}, true, 1500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maxTokensFor(tt.prefs, tt.premium))
	}
}

func TestBuildSystemAddendum(t *testing.T) {
	t.Run("member", func(t *testing.T) {
		out := BuildSystemAddendum(coach.CompletionRequest{
			Context:      &coach.UserContext{Name: "Sam", Type: "single", Interests: []string{"hiking"}, Goals: []string{"first date"}},
			Profile:      &coach.Profile{ID: "p1", RelationshipStatus: "single"},
			MessageCount: 12,
			IsPremium:    true,
			Preferences:  &coach.Preferences{Tone: coach.TonePlayful, Length: coach.LengthLong, Style: coach.StyleCoaching},
		})
		assert.Contains(t, out, "You are talking with Sam (single).")
		assert.Contains(t, out, "Interests: hiking.")
		assert.Contains(t, out, "Goals: first date.")
		assert.Contains(t, out, "Relationship status: single.")
		assert.Contains(t, out, "sent 12 messages")
		assert.Contains(t, out, "premium member")
		assert.Contains(t, out, "playful")
		assert.Contains(t, out, "<suggestions>")
	})

	t.Run("free plan", func(t *testing.T) {
		out := BuildSystemAddendum(coach.CompletionRequest{Profile: &coach.Profile{ID: "p2"}})
		assert.Contains(t, out, "free plan")
		assert.NotContains(t, out, "sent 0 messages")
	})

	t.Run("demo prompt already asks for suggestions", func(t *testing.T) {
		out := BuildSystemAddendum(coach.CompletionRequest{
			Messages: []coach.ChatMessage{{Role: coach.RoleSystem, Content: "Wrap ideas in <suggestions> tags."}},
		})
		assert.NotContains(t, out, "<suggestions>")
		assert.NotContains(t, out, "free plan")
	})
}

func TestNewCoachCompleter_PanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() { NewCoachCompleter(nil, "m", nil) })
}
