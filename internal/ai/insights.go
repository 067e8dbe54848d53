package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"fintrack/internal/core"
)

// FallbackInsights is returned whenever the model cannot produce usable
// insights. Generic but true for any month.
var FallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

// MonthlyInsights asks the model for three short observations about a
// month of spending. Never errors: any failure returns FallbackInsights.
func (c *Client) MonthlyInsights(ctx context.Context, stats *core.RangeStats, month time.Time) []string {
	prompt := insightsPrompt(stats, month)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	text, err := c.generate(ctx, contents)
	if err != nil {
		slog.ErrorContext(ctx, "Insights model call failed", "error", err)
		return FallbackInsights
	}

	insights, ok := parseInsights(text)
	if !ok {
		slog.ErrorContext(ctx, "Insights response did not parse",
			"response_prefix", prefix(text, 100))
		return FallbackInsights
	}
	return insights
}

func insightsPrompt(stats *core.RangeStats, month time.Time) string {
	var b strings.Builder
	b.WriteString("You are a financial advisor assistant. Analyze financial data and provide concise, actionable insights.\n\n")
	b.WriteString("Analyze this financial data and provide 3 concise, actionable insights.\n")
	b.WriteString("Focus on spending patterns and practical advice.\n")
	b.WriteString("Keep it friendly and conversational.\n\n")

	fmt.Fprintf(&b, "Financial Data for %s:\n", month.Format("January 2006"))
	fmt.Fprintf(&b, "- Total Income: $%.2f\n", stats.TotalIncome.Units())
	fmt.Fprintf(&b, "- Total Expenses: $%.2f\n", stats.TotalExpenses.Units())
	fmt.Fprintf(&b, "- Net Income: $%.2f\n", stats.Net().Units())

	categories := make([]string, 0, len(stats.ExpenseByCategory))
	for name := range stats.ExpenseByCategory {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	parts := make([]string, 0, len(categories))
	for _, name := range categories {
		parts = append(parts, fmt.Sprintf("%s: $%.2f", name, stats.ExpenseByCategory[name].Units()))
	}
	fmt.Fprintf(&b, "- Expense Categories: %s\n\n", strings.Join(parts, ", "))

	b.WriteString("Format the response as a JSON array of strings, like this:\n")
	b.WriteString(`["insight 1", "insight 2", "insight 3"]`)
	return b.String()
}

// parseInsights pulls a JSON string array out of the response, tolerating
// fences and prose around it.
func parseInsights(raw string) ([]string, bool) {
	s := strings.TrimSpace(raw)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return nil, false
	}

	var insights []string
	if err := json.Unmarshal([]byte(s[start:end+1]), &insights); err != nil {
		return nil, false
	}
	if len(insights) == 0 {
		return nil, false
	}
	return insights, true
}
