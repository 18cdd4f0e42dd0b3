package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/llm"
)

// Section is one role's contribution to the report.
type Section struct {
	Role  string
	Title string
	Body  string
}

// Brief accumulates the output of the roles that already ran.
type Brief struct {
	Sections []Section
}

// Add appends a section.
func (b *Brief) Add(s Section) {
	b.Sections = append(b.Sections, s)
}

// Markdown renders every section under its own heading.
func (b *Brief) Markdown() string {
	var sb strings.Builder
	for i, s := range b.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## %s\n\n%s", s.Title, strings.TrimSpace(s.Body))
	}
	return sb.String()
}

// Role produces one section of the analysis.
type Role interface {
	Name() string
	Title() string
	Run(ctx context.Context, tools Toolset, brief *Brief) (string, error)
}

// Renderer turns tool output into prompt text.
type Renderer func(ctx context.Context, tools Toolset) (string, error)

// LLMRole asks a model to write its section from rendered tool output.
type LLMRole struct {
	RoleName  string
	RoleTitle string
	Persona   string
	Task      string
	Expected  string
	Render    Renderer
	Model     llm.Model
	MaxTokens int
}

// Name implements Role.
func (r *LLMRole) Name() string { return r.RoleName }

// Title implements Role.
func (r *LLMRole) Title() string { return r.RoleTitle }

// Run implements Role.
func (r *LLMRole) Run(ctx context.Context, tools Toolset, brief *Brief) (string, error) {
	data, err := r.Render(ctx, tools)
	if err != nil {
		return "", fmt.Errorf("%s: tools: %w", r.RoleName, err)
	}

	out, err := r.Model.Generate(ctx, llm.Request{
		System:      r.Persona,
		Prompt:      r.prompt(data, brief),
		Temperature: 0.3,
		MaxTokens:   r.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: generate: %w", r.RoleName, err)
	}
	out = llm.StripCodeFences(out)
	if out == "" {
		return "", fmt.Errorf("%s: empty response", r.RoleName)
	}
	return out, nil
}

func (r *LLMRole) prompt(data string, brief *Brief) string {
	var b strings.Builder
	b.WriteString(r.Task)
	b.WriteString("\n\nExpected output:\n")
	b.WriteString(r.Expected)
	b.WriteString("\n\nData:\n")
	b.WriteString(data)
	if brief != nil && len(brief.Sections) > 0 {
		b.WriteString("\n\nFindings so far:\n\n")
		b.WriteString(brief.Markdown())
	}
	return b.String()
}

// PatternAnalyst summarizes where the money goes.
func PatternAnalyst(m llm.Model) *LLMRole {
	return &LLMRole{
		RoleName:  "pattern_analyst",
		RoleTitle: "Spending Patterns",
		Persona: "You are an expert financial analyst specializing in personal spending patterns. " +
			"You excel at finding trends and summarizing where money goes.",
		Task: "Analyze the user's spending patterns:\n" +
			"1. Review the category breakdown\n" +
			"2. Review the monthly trend\n" +
			"3. Identify the top 3 spending categories\n" +
			"4. Note any significant changes in spending patterns\n\n" +
			"Provide a clear, concise summary.",
		Expected: "- Total spending amount\n" +
			"- Top 3 categories with amounts\n" +
			"- Monthly trend (increasing/decreasing)\n" +
			"- Key insight",
		Render:    renderAll(RenderCategoryStats, RenderMonthlyTrend),
		Model:     m,
		MaxTokens: 800,
	}
}

// BudgetAdvisor turns the pattern analysis into recommendations.
func BudgetAdvisor(m llm.Model) *LLMRole {
	return &LLMRole{
		RoleName:  "budget_advisor",
		RoleTitle: "Budget Recommendations",
		Persona: "You are a certified financial planner who helps people optimize their budgets. " +
			"You find opportunities to save money and give practical advice.",
		Task: "Based on the spending analysis, provide budget recommendations:\n" +
			"1. Identify categories where spending could be reduced\n" +
			"2. Suggest specific ways to save money\n" +
			"3. Recommend one actionable next step\n\n" +
			"Be practical and specific.",
		Expected: "- 2-3 areas for spending reduction\n" +
			"- Practical tips\n" +
			"- Estimated monthly savings\n" +
			"- One actionable next step",
		Render:    renderAll(RenderCategoryStats, RenderTransactions),
		Model:     m,
		MaxTokens: 800,
	}
}

// AnomalyDetector reports duplicates and unusually large charges.
func AnomalyDetector(m llm.Model) *LLMRole {
	return &LLMRole{
		RoleName:  "anomaly_detector",
		RoleTitle: "Anomalies",
		Persona: "You are a fraud detection specialist with a keen eye for unusual patterns. " +
			"You spot duplicate charges and unusually large transactions.",
		Task: "The data below is a markdown table of flagged transactions. " +
			"Copy that table exactly to your answer and add recommendations.",
		Expected: "The markdown table, then \"Recommended Actions:\" with 2-3 actions.",
		Render:    RenderAnomalies,
		Model:     m,
		MaxTokens: 1000,
	}
}

// DefaultRoles returns the three roles in the order they run.
func DefaultRoles(m llm.Model) []Role {
	return []Role{PatternAnalyst(m), BudgetAdvisor(m), AnomalyDetector(m)}
}
