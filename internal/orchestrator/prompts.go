package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"coach-backend/internal/contract"
)

const maxPromptData = 12000

var kindInstructions = map[contract.Kind]string{
	contract.KindProfile:       "You are an expert dating coach. Review the dating profile below and rate how well it presents the person.",
	contract.KindConversation:  "You are an expert dating coach. Review the conversation below and coach the user on how to keep it going.",
	contract.KindPhoto:         "You are an expert dating profile photographer. Analyze this dating profile photo.",
	contract.KindCompatibility: "You are an expert dating coach. Assess how compatible these two people are.",
	contract.KindPage:          "You are an expert dating coach. Review the dating app page content below.",
}

// BuildPrompt renders the prompt for a kind. The model is asked for a single JSON object
// with exactly the keys of the kind's template.
func BuildPrompt(kind contract.Kind, data json.RawMessage, opts contract.Options) string {
	var b strings.Builder
	instr, ok := kindInstructions[kind]
	if !ok {
		instr = kindInstructions[contract.KindProfile]
	}
	b.WriteString(instr)
	b.WriteString("\n")
	if opts.CulturalContext != "" {
		fmt.Fprintf(&b, "Cultural context: %s.\n", opts.CulturalContext)
	}
	if opts.Platform != "" && opts.Platform != "unknown" {
		fmt.Fprintf(&b, "Dating platform: %s.\n", opts.Platform)
	}
	if opts.DepthLevel != "" {
		fmt.Fprintf(&b, "Depth of analysis: %s.\n", opts.DepthLevel)
	}
	if !opts.IncludeRecommendations {
		b.WriteString("Keep suggestions to a minimum.\n")
	}
	if len(data) > 0 && string(data) != "null" {
		text := string(data)
		if len(text) > maxPromptData {
			text = text[:maxPromptData]
		}
		b.WriteString("\nInput:\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(formatInstruction(TemplateFor(kind)))
	return b.String()
}

// PhotoPrompt is the prompt used by the photo analysis endpoint.
func PhotoPrompt(analysisType string) string {
	if strings.TrimSpace(analysisType) == "" {
		analysisType = "comprehensive"
	}
	var b strings.Builder
	b.WriteString(kindInstructions[contract.KindPhoto])
	fmt.Fprintf(&b, "\nAnalysis type: %s. Score attractiveness, composition and emotional expression from 1 to 10, ", analysisType)
	b.WriteString("list technical issues, and give concrete suggestions, improvements and next steps.\n\n")
	b.WriteString(formatInstruction(TemplateFor(contract.KindPhoto)))
	return b.String()
}

func formatInstruction(t Template) string {
	keys := make([]string, 0, len(t.Defaults))
	for k := range t.Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "Respond with a single JSON object with these keys: " + strings.Join(keys, ", ") +
		". Scores are numbers from 1 to 10. List values are arrays of short strings."
}
