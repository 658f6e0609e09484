package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

const analyzeInstruction = `You are an expert PostgreSQL query optimization assistant.
Analyze query execution plans and provide actionable optimization recommendations.
Focus on:
1. Identifying performance bottlenecks (seq scans, nested loops, etc.)
2. Suggesting indexes
3. Query rewrite suggestions
4. Cost analysis
5. Row estimate accuracy

Every plan comes with a node legend. Key node_analysis by the node ids from that
legend (node-0, node-1, ...) and by nothing else.

Return your analysis in JSON format with these sections:
{
    "overall_assessment": "brief summary of query performance",
    "bottlenecks": [{"node_type": "...", "issue": "...", "impact": "high|medium|low"}],
    "index_recommendations": [{"table": "...", "columns": [...], "reason": "..."}],
    "query_rewrites": [{"suggestion": "...", "benefit": "..."}],
    "node_analysis": {"node_id": {"advice": "...", "severity": "high|medium|low"}}
}`

const compareInstruction = `You are an expert PostgreSQL query optimization assistant.
Compare two query execution plans (Plan A and Plan B) and analyze the differences.
Focus on:
1. Cost differences (Total Cost, Startup Cost)
2. Execution time differences (if available)
3. Structural differences (Scan types, Join types)
4. Why one is better than the other

Return your analysis in JSON format with these sections:
{
    "summary": "Which plan is better and why",
    "metrics_comparison": {
        "cost_diff": "Description of cost difference",
        "time_diff": "Description of time difference (if applicable)"
    },
    "structural_changes": ["Change 1", "Change 2"],
    "recommendation": "Final recommendation"
}`

const chatInstruction = `You are an expert PostgreSQL query optimization assistant.
You are discussing a specific query execution plan with a user.
Answer their questions about the plan, explain specific nodes, or suggest optimizations.
Be concise, technical but accessible, and practical.`

const chatAcknowledgement = "I understand. I am ready to discuss this query plan with you."

func (o *OpenAI) AnalyzePlan(ctx context.Context, in plan.Input) (*Analysis, error) {
	planJSON, err := indentJSON(in.Explain)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Analyze this PostgreSQL EXPLAIN output and provide optimization recommendations:\n\n")
	b.WriteString(planJSON)
	if in.Query != "" {
		b.WriteString("\nOriginal Query: " + in.Query)
	}
	b.WriteString("\n\nNode legend:\n" + idLegend(in.Explain.Root()))
	b.WriteString("\nProvide a detailed JSON response following the schema specified in your instructions.")

	text, err := o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: analyzeInstruction},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	})
	if err != nil {
		return nil, err
	}

	analysis := emptyAnalysis("")
	if err := json.Unmarshal([]byte(extractJSON(text)), analysis); err != nil {
		return emptyAnalysis(strings.TrimSpace(text)), nil
	}
	if analysis.NodeAnalysis == nil {
		analysis.NodeAnalysis = map[string]NodeAdvice{}
	}
	return analysis, nil
}

func (o *OpenAI) ComparePlans(ctx context.Context, a, b plan.Input) (*Comparison, error) {
	aJSON, err := indentJSON(a.Explain)
	if err != nil {
		return nil, err
	}
	bJSON, err := indentJSON(b.Explain)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Compare these two PostgreSQL query plans:\n\nPLAN A:\n%s\n%s\n\nPLAN B:\n%s\n%s\n\nProvide a detailed JSON comparison following the schema.",
		queryLine("Query A", a.Query), aJSON, queryLine("Query B", b.Query), bJSON)

	text, err := o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: compareInstruction},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	comparison := &Comparison{StructuralChanges: []string{}}
	if err := json.Unmarshal([]byte(extractJSON(text)), comparison); err != nil {
		return &Comparison{Summary: strings.TrimSpace(text), StructuralChanges: []string{}}, nil
	}
	return comparison, nil
}

// Chat replays the plan context and the earlier turns before the new message.
func (o *OpenAI) Chat(ctx context.Context, req ChatRequest) (string, error) {
	planJSON, err := indentJSON(req.Plan.Explain)
	if err != nil {
		return "", err
	}

	preamble := "Here is the query plan we are discussing:\n" + planJSON + "\n"
	if req.Plan.Query != "" {
		preamble += "Original Query: " + req.Plan.Query + "\n"
	}
	preamble += "Node legend:\n" + idLegend(req.Plan.Explain.Root())

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatInstruction},
		{Role: openai.ChatMessageRoleUser, Content: preamble},
		{Role: openai.ChatMessageRoleAssistant, Content: chatAcknowledgement},
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleAssistant
		if m.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	return o.complete(ctx, messages)
}

func (o *OpenAI) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// idLegend lists every node as Flatten will identify it.
func idLegend(root *plan.PlanNode) string {
	var b strings.Builder
	graph.Walk(root, func(v graph.Visit) {
		fmt.Fprintf(&b, "%s (path %s): %s", v.ID, v.Path, v.Node.NodeType)
		if v.Node.RelationName != "" {
			b.WriteString(" on " + v.Node.RelationName)
		}
		b.WriteString("\n")
	})
	return b.String()
}

// extractJSON returns the contents of the first fenced block, preferring a
// json-tagged fence, or the trimmed text when there is none.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```"} {
		_, after, ok := strings.Cut(text, fence)
		if !ok {
			continue
		}
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return text
}

func indentJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding plan: %w", err)
	}
	return string(data), nil
}

func queryLine(label, query string) string {
	if query == "" {
		return ""
	}
	return label + ": " + query
}
