package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/boristopalov/gymbridge/pkg/core"
	"github.com/boristopalov/gymbridge/pkg/memory"
	"github.com/boristopalov/gymbridge/pkg/providers"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

const (
	ACTION_PROMPT_TEMPLATE = `You are controlling an agent in the reinforcement learning environment %s.
%s
The environment has %d discrete actions, numbered 0 to %d.

The current observation is:
%s

%s
Very briefly think step by step about which action maximizes the total reward, then provide your answer. Your answer should follow the string "ANSWER" like so: ANSWER: <action>`

	NO_HISTORY = "This is the first step; there is no history yet."
)

var answerPattern = regexp.MustCompile(`ANSWER:\s*(-?\d+)`)

// LLMAgent asks a language model for a discrete action at every step.
type LLMAgent struct {
	id      string
	model   ModelInfo
	client  providers.Client
	memory  *memory.Memory
	env     string
	task    string
	actions int
	history int
}

type AgentParams struct {
	Model      ModelInfo
	AgentID    string
	Client     providers.Client
	Env        string
	Task       string
	MemorySize int
	History    int
}

type AgentOption func(*AgentParams)

func WithModel(model ModelInfo) AgentOption {
	return func(p *AgentParams) {
		p.Model = model
	}
}

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithClient(c providers.Client) AgentOption {
	return func(p *AgentParams) {
		p.Client = c
	}
}

// WithEnvironment names the environment in the prompt.
func WithEnvironment(name string) AgentOption {
	return func(p *AgentParams) {
		p.Env = name
	}
}

// WithTask adds a free-form task description to the prompt.
func WithTask(task string) AgentOption {
	return func(p *AgentParams) {
		p.Task = task
	}
}

// WithHistory sets how many recent transitions are shown to the model.
func WithHistory(n int) AgentOption {
	return func(p *AgentParams) {
		p.History = n
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		Model: ModelInfo{
			Id:     "gpt-4o-mini",
			Config: make(map[string]any),
		},
		AgentID:    "agent-" + uuid.New().String(),
		Env:        "unknown",
		MemorySize: 100,
		History:    5,
	}
}

// NewLLMAgent creates an agent choosing among actions discrete actions.
// Without WithClient it talks to OpenAI using the environment's credentials.
func NewLLMAgent(ctx context.Context, actions int, opts ...AgentOption) (*LLMAgent, error) {
	if actions < 1 {
		return nil, fmt.Errorf("llm agent needs at least one action, got %d", actions)
	}
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Client == nil {
		params.Client = providers.OpenAi(ctx)
	}

	return &LLMAgent{
		id:      params.AgentID,
		model:   params.Model,
		client:  params.Client,
		memory:  memory.NewMemory(params.MemorySize), // short term memory
		env:     params.Env,
		task:    params.Task,
		actions: actions,
		history: params.History,
	}, nil
}

func (a *LLMAgent) GetID() string {
	return a.id
}

func (a *LLMAgent) GetModel() ModelInfo {
	return a.model
}

func (a *LLMAgent) GetMemory() *memory.Memory {
	return a.memory
}

func (a *LLMAgent) Act(ctx context.Context, obs *mat.VecDense) (core.Discrete, error) {
	prompt := a.prompt(obs)
	response, err := a.client.Complete(ctx, a.model.Id, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to generate response: %w", err)
	}
	log.Printf("Action response for agent %s: %s", a.id, response)

	action, err := parseActionResponse(response)
	if err != nil {
		return 0, err
	}
	if action < 0 || action >= int64(a.actions) {
		return 0, fmt.Errorf("action %d out of range [0, %d)", action, a.actions)
	}
	return core.Discrete(action), nil
}

func (a *LLMAgent) Observe(t core.Transition) {
	a.memory.Store(t)
}

func (a *LLMAgent) prompt(obs *mat.VecDense) string {
	return fmt.Sprintf(ACTION_PROMPT_TEMPLATE,
		a.env,
		a.task,
		a.actions,
		a.actions-1,
		formatObservation(obs),
		formatHistory(a.memory.Recent(a.history)),
	)
}

func formatObservation(obs *mat.VecDense) string {
	if obs == nil {
		return "[]"
	}
	vals := make([]string, obs.Len())
	for i := range vals {
		vals[i] = strconv.FormatFloat(obs.AtVec(i), 'g', 6, 64)
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

func formatHistory(recent []core.Transition) string {
	if len(recent) == 0 {
		return NO_HISTORY
	}
	var sb strings.Builder
	sb.WriteString("Your most recent steps:\n")
	for _, t := range recent {
		fmt.Fprintf(&sb, "- episode %d step %d: action %v, reward %.3f", t.Episode, t.Step, t.Action, t.Reward)
		if t.Done {
			sb.WriteString(" (episode ended)")
		} else if t.Truncated {
			sb.WriteString(" (episode truncated)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Helper function to parse the chosen action from an agent response.
// The last answer wins when the model repeats itself.
func parseActionResponse(response string) (int64, error) {
	matches := answerPattern.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("could not find answer in response: %s", response)
	}

	action, err := strconv.ParseInt(matches[len(matches)-1][1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse action: %v", err)
	}
	return action, nil
}
