package narrative

import (
	"fmt"
	"strings"

	"github.com/dvloznov/refund-explainer/internal/domain"
)

// maxPromptDrivers caps how many drivers the prompt lists; the rest are minor.
const maxPromptDrivers = 5

// BuildPrompt renders the summary instructions for one explanation.
func BuildPrompt(result domain.RefundExplainerResult) string {
	var drivers strings.Builder
	for i, d := range result.Drivers {
		if i == maxPromptDrivers {
			break
		}
		drivers.WriteString("- " + d.Explanation + "\n")
	}

	sign := "+"
	if result.TotalChange.IsNegative() {
		sign = "-"
	}

	return fmt.Sprintf(
		"Explain why a taxpayer's outcome changed year over year.\n\n"+
			"Last year (%d): %s\n"+
			"This year (%d): %s\n"+
			"Net change: %s%s\n\n"+
			"Key drivers:\n%s\n"+
			"Write a 3-4 sentence plain-English summary. Be specific about the biggest factors and mention dollar amounts. "+
			"Keep the tone neutral and factual. Do NOT give legal or financial advice. "+
			"Do NOT make any promises about support; this is a self-service tool. Do NOT use filler phrases.",
		result.PriorYear, result.PriorBalance.Describe(),
		result.CurrentYear, result.CurrentBalance.Describe(),
		sign, domain.FormatDollars(result.TotalChange),
		drivers.String(),
	)
}
