package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boristopalov/gymbridge/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// MockLLMClient implements providers.Client for testing
type MockLLMClient struct {
	response string
	err      error
	prompts  []string
}

func (m *MockLLMClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func TestLLMAgent(t *testing.T) {
	mock := &MockLLMClient{response: "Push right to keep the pole up.\nANSWER: 1"}
	agent, err := NewLLMAgent(context.Background(), 2,
		WithAgentId("test-agent"),
		WithModel(ModelInfo{Id: "gpt-4o-mini", Config: make(map[string]any)}),
		WithClient(mock),
		WithEnvironment("CartPole-v1"),
	)
	if err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}

	if got := agent.GetID(); got != "test-agent" {
		t.Errorf("agent.GetID() = %v, want %v", got, "test-agent")
	}
	if got := agent.GetModel().Id; got != "gpt-4o-mini" {
		t.Errorf("agent.GetModel().Id = %v, want %v", got, "gpt-4o-mini")
	}

	obs := mat.NewVecDense(4, []float64{0.5, -0.25, 0, 1})
	action, err := agent.Act(context.Background(), obs)
	if err != nil {
		t.Fatalf("Act failed: %v", err)
	}
	if action != 1 {
		t.Errorf("action = %d, want 1", action)
	}

	prompt := mock.prompts[0]
	for _, want := range []string{"CartPole-v1", "[0.5, -0.25, 0, 1]", "numbered 0 to 1", NO_HISTORY} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	t.Run("history is included after observing", func(t *testing.T) {
		agent.Observe(core.Transition{Episode: 0, Step: 0, Action: core.Discrete(1), Reward: 1})
		if _, err := agent.Act(context.Background(), obs); err != nil {
			t.Fatalf("Act failed: %v", err)
		}
		prompt := mock.prompts[len(mock.prompts)-1]
		if !strings.Contains(prompt, "episode 0 step 0: action 1, reward 1.000") {
			t.Errorf("prompt missing history:\n%s", prompt)
		}
	})

	t.Run("out of range answer", func(t *testing.T) {
		mock.response = "ANSWER: 2"
		if _, err := agent.Act(context.Background(), obs); err == nil {
			t.Error("Expected error for out of range action, got nil")
		}
	})

	t.Run("client error", func(t *testing.T) {
		boom := errors.New("boom")
		mock.err = boom
		defer func() { mock.err = nil }()
		if _, err := agent.Act(context.Background(), obs); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped %v", err, boom)
		}
	})
}

func TestParseActionResponse(t *testing.T) {
	tests := []struct {
		response string
		want     int64
		wantErr  bool
	}{
		{"ANSWER: 3", 3, false},
		{"I think 0.\nANSWER:0", 0, false},
		{"ANSWER: 1 ... actually ANSWER: 2", 2, false},
		{"ANSWER: -1", -1, false},
		{"no idea", 0, true},
	}
	for _, tt := range tests {
		got, err := parseActionResponse(tt.response)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseActionResponse(%q) error = %v, wantErr %v", tt.response, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseActionResponse(%q) = %d, want %d", tt.response, got, tt.want)
		}
	}
}

func TestRandomAgent(t *testing.T) {
	if _, err := NewRandomAgent(0, 1); err == nil {
		t.Error("Expected error for empty action space")
	}

	a, err := NewRandomAgent(3, 42)
	if err != nil {
		t.Fatalf("NewRandomAgent: %v", err)
	}
	b, _ := NewRandomAgent(3, 42)
	for i := 0; i < 50; i++ {
		x, err := a.Act(context.Background(), nil)
		if err != nil {
			t.Fatalf("Act: %v", err)
		}
		if x < 0 || x >= 3 {
			t.Fatalf("action %d out of range", x)
		}
		if y, _ := b.Act(context.Background(), nil); x != y {
			t.Fatalf("same seed produced %d and %d", x, y)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Act(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
