package orchestrator

import "coach-backend/internal/contract"

// Template describes the record a kind of analysis must produce.
// Defaults patch individual missing fields; Canned replaces the whole record when
// a provider answered but nothing could be parsed.
type Template struct {
	Kind     contract.Kind
	Defaults map[string]any
	Canned   map[string]any
}

// Fill returns parsed with every expected field present.
func (t Template) Fill(parsed map[string]any) map[string]any {
	out := make(map[string]any, len(parsed)+len(t.Defaults))
	for k, v := range parsed {
		out[k] = v
	}
	for k, def := range t.Defaults {
		if v, ok := out[k]; !ok || v == nil {
			out[k] = cloneValue(def)
		}
	}
	return out
}

// CannedRecord returns a fresh copy of the canned record.
func (t Template) CannedRecord() map[string]any {
	out := make(map[string]any, len(t.Canned))
	for k, v := range t.Canned {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []string:
		return append([]string{}, val...)
	case []any:
		return append([]any{}, val...)
	default:
		return v
	}
}

// TemplateFor returns the template for kind. Unknown kinds get the profile template.
func TemplateFor(kind contract.Kind) Template {
	if t, ok := templates[kind]; ok {
		return t
	}
	return templates[contract.KindProfile]
}

var templates = map[contract.Kind]Template{
	contract.KindPhoto: {
		Kind: contract.KindPhoto,
		Defaults: map[string]any{
			"overall_score":        7.0,
			"attractiveness_score": 7.0,
			"composition_score":    7.0,
			"emotion_score":        7.5,
			"technical_issues":     []string{},
			"feedback":             "Analysis completed",
			"suggestions":          []string{},
			"improvements":         []string{},
			"next_steps":           []string{},
		},
		Canned: map[string]any{
			"overall_score":        7.0,
			"attractiveness_score": 7.0,
			"composition_score":    6.5,
			"emotion_score":        7.5,
			"technical_issues":     []string{},
			"feedback":             "Analysis completed successfully. The photo shows good potential for dating profiles.",
			"suggestions":          []string{"Consider improving lighting", "Work on natural expressions", "Optimize background"},
			"improvements":         []string{"Photo quality", "Facial expression", "Overall composition"},
			"next_steps":           []string{"Take multiple shots with different lighting", "Practice confident poses"},
		},
	},
	contract.KindProfile: {
		Kind: contract.KindProfile,
		Defaults: map[string]any{
			"overall_score": 7.0,
			"bio_score":     7.0,
			"photo_score":   7.0,
			"strengths":     []string{},
			"weaknesses":    []string{},
			"feedback":      "Analysis completed",
			"suggestions":   []string{},
		},
		Canned: map[string]any{
			"overall_score": 7.0,
			"bio_score":     6.5,
			"photo_score":   7.0,
			"strengths":     []string{"Clear profile photos"},
			"weaknesses":    []string{"Bio could say more about your interests"},
			"feedback":      "Profile analysis completed. The profile has a solid foundation.",
			"suggestions":   []string{"Add a conversation starter to your bio", "Show a hobby in one of your photos"},
		},
	},
	contract.KindConversation: {
		Kind: contract.KindConversation,
		Defaults: map[string]any{
			"overall_score":    7.0,
			"engagement_score": 7.0,
			"tone":             "neutral",
			"feedback":         "Analysis completed",
			"suggestions":      []string{},
			"next_message":     "",
		},
		Canned: map[string]any{
			"overall_score":    7.0,
			"engagement_score": 7.0,
			"tone":             "friendly",
			"feedback":         "Conversation analysis completed. The exchange is friendly and has room to go deeper.",
			"suggestions":      []string{"Ask open questions", "Reference something they mentioned earlier"},
			"next_message":     "What got you into that? It sounds like a great story.",
		},
	},
	contract.KindCompatibility: {
		Kind: contract.KindCompatibility,
		Defaults: map[string]any{
			"compatibility_score":  7.0,
			"shared_interests":     []string{},
			"potential_challenges": []string{},
			"feedback":             "Analysis completed",
			"suggestions":          []string{},
		},
		Canned: map[string]any{
			"compatibility_score":  7.0,
			"shared_interests":     []string{},
			"potential_challenges": []string{},
			"feedback":             "Compatibility check completed. Look for shared activities to talk about.",
			"suggestions":          []string{"Start with a common interest", "Suggest a low-key first date"},
		},
	},
	contract.KindPage: {
		Kind: contract.KindPage,
		Defaults: map[string]any{
			"overall_score": 7.0,
			"platform_tips": []string{},
			"feedback":      "Analysis completed",
			"suggestions":   []string{},
		},
		Canned: map[string]any{
			"overall_score": 7.0,
			"platform_tips": []string{"Keep your profile fields complete"},
			"feedback":      "Page analysis completed.",
			"suggestions":   []string{"Lead with your best photo", "Keep the bio short and specific"},
		},
	},
}

// ScoreField names the headline score in a kind's record.
func ScoreField(kind contract.Kind) string {
	if kind == contract.KindCompatibility {
		return "compatibility_score"
	}
	return "overall_score"
}
