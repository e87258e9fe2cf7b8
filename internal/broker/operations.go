package broker

import (
	"context"
	"strings"

	"coach-backend/internal/contract"
)

// CallOptions override the per-kind defaults. Zero values keep the default.
type CallOptions struct {
	DepthLevel             contract.Depth
	IncludeRecommendations *bool
	CulturalContext        string
	Platform               string
	Priority               contract.Priority
}

var defaultDepth = map[contract.Kind]contract.Depth{
	contract.KindProfile:       contract.DepthComprehensive,
	contract.KindConversation:  contract.DepthComprehensive,
	contract.KindCompatibility: contract.DepthComprehensive,
	contract.KindPhoto:         contract.DepthStandard,
	contract.KindPage:          contract.DepthStandard,
}

var defaultPriority = map[contract.Kind]contract.Priority{
	contract.KindConversation: contract.PriorityHigh,
	contract.KindPage:         contract.PriorityHigh,
}

type profilePayload struct {
	TargetProfile any `json:"targetProfile"`
}

type conversationPayload struct {
	ConversationHistory any `json:"conversationHistory"`
	UserProfile         any `json:"userProfile,omitempty"`
	TargetProfile       any `json:"targetProfile,omitempty"`
}

type photoPayload struct {
	PhotoData any `json:"photoData"`
}

type compatibilityPayload struct {
	UserProfile   any      `json:"userProfile"`
	TargetProfile any      `json:"targetProfile"`
	FocusAreas    []string `json:"focus_areas,omitempty"`
}

type pagePayload struct {
	PageData PageData `json:"pageData"`
	URL      string   `json:"url"`
	Platform string   `json:"platform"`
}

func (b *Broker) AnalyzeProfile(ctx context.Context, targetProfile any, opts CallOptions) contract.Response {
	return b.run(ctx, contract.KindProfile, profilePayload{TargetProfile: targetProfile}, opts)
}

func (b *Broker) CoachConversation(ctx context.Context, history, userProfile, targetProfile any, opts CallOptions) contract.Response {
	return b.run(ctx, contract.KindConversation, conversationPayload{
		ConversationHistory: history,
		UserProfile:         userProfile,
		TargetProfile:       targetProfile,
	}, opts)
}

// AnalyzePhoto sends photo data, usually a data: URL.
func (b *Broker) AnalyzePhoto(ctx context.Context, photoData any, opts CallOptions) contract.Response {
	return b.run(ctx, contract.KindPhoto, photoPayload{PhotoData: photoData}, opts)
}

func (b *Broker) CheckCompatibility(ctx context.Context, userProfile, targetProfile any, focusAreas []string, opts CallOptions) contract.Response {
	return b.run(ctx, contract.KindCompatibility, compatibilityPayload{
		UserProfile:   userProfile,
		TargetProfile: targetProfile,
		FocusAreas:    focusAreas,
	}, opts)
}

// AnalyzePage sends an extracted page. The platform comes from the page URL when the
// caller does not set one.
func (b *Broker) AnalyzePage(ctx context.Context, page PageData, opts CallOptions) contract.Response {
	if opts.Platform == "" {
		if p := DetectPlatform(page.URL); p != PlatformUnknown {
			opts.Platform = p
		}
	}
	resolved := b.Options(ctx, contract.KindPage, opts)
	return b.Analyze(ctx, Request{
		Kind:    contract.KindPage,
		Payload: pagePayload{PageData: page, URL: page.URL, Platform: resolved.Platform},
		Options: resolved,
	})
}

func (b *Broker) run(ctx context.Context, kind contract.Kind, payload any, opts CallOptions) contract.Response {
	return b.Analyze(ctx, Request{Kind: kind, Payload: payload, Options: b.Options(ctx, kind, opts)})
}

// Options resolves call options against the defaults for kind.
func (b *Broker) Options(ctx context.Context, kind contract.Kind, opts CallOptions) contract.Options {
	out := contract.Options{
		DepthLevel:             opts.DepthLevel,
		IncludeRecommendations: true,
		CulturalContext:        strings.TrimSpace(opts.CulturalContext),
		Platform:               strings.TrimSpace(opts.Platform),
		Priority:               opts.Priority,
	}
	if out.DepthLevel == "" {
		out.DepthLevel = defaultDepth[kind]
		if out.DepthLevel == "" {
			out.DepthLevel = contract.DepthStandard
		}
	}
	if opts.IncludeRecommendations != nil {
		out.IncludeRecommendations = *opts.IncludeRecommendations
	}
	if out.CulturalContext == "" {
		out.CulturalContext = b.culturalContext(ctx)
	}
	if out.Platform == "" {
		out.Platform = b.platform()
	}
	if out.Priority == "" {
		out.Priority = defaultPriority[kind]
		if out.Priority == "" {
			out.Priority = contract.PriorityNormal
		}
	}
	return out
}

func (b *Broker) culturalContext(ctx context.Context) string {
	if b.deps.Credentials == nil {
		return DefaultCulturalContext
	}
	c, err := b.deps.Credentials.CulturalContext(ctx)
	if err != nil || strings.TrimSpace(c) == "" {
		return DefaultCulturalContext
	}
	return c
}
