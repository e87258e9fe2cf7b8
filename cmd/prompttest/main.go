package main

// Render the provider prompt for one analysis and optionally run it:
//   go run ./cmd/prompttest -kind profile -data profile.json -dry-run
//   go run ./cmd/prompttest -kind conversation -data chat.json -provider gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/llm"
	"coach-backend/internal/llm/gemini"
	"coach-backend/internal/llm/openai"
	"coach-backend/internal/orchestrator"
	"coach-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	kindName := flag.String("kind", "profile", "Analysis kind (profile, conversation, compatibility, page)")
	dataPath := flag.String("data", "", "Path to the JSON data payload")
	depth := flag.String("depth", string(contract.DepthComprehensive), "Depth level")
	culture := flag.String("cultural-context", "western_urban", "Cultural context")
	provider := flag.String("provider", cfg.PreferredProvider, "Preferred provider (openai or gemini)")
	dryRun := flag.Bool("dry-run", false, "Print the prompt without calling a provider")
	outPath := flag.String("out", "", "Path to write the JSON record (optional)")
	flag.Parse()

	kind, ok := contract.ParseKind(*kindName)
	if !ok {
		exitErr(fmt.Sprintf("unknown kind: %s", *kindName))
	}
	if strings.TrimSpace(*dataPath) == "" {
		exitErr("data path is required")
	}
	data, err := os.ReadFile(*dataPath)
	if err != nil {
		exitErr(fmt.Sprintf("read data: %v", err))
	}
	if !json.Valid(data) {
		exitErr("data is not valid JSON")
	}

	prompt := orchestrator.BuildPrompt(kind, data, contract.Options{
		DepthLevel:             contract.Depth(*depth),
		IncludeRecommendations: true,
		CulturalContext:        *culture,
		Priority:               contract.PriorityNormal,
	})
	if *dryRun {
		fmt.Println(prompt)
		return
	}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		exitErr(err.Error())
	}
	res, err := orch.Run(context.Background(), orchestrator.Job{Kind: kind, Prompt: prompt, PreferredProvider: *provider})
	if err != nil {
		exitErr(fmt.Sprintf("run analysis: %v", err))
	}
	fmt.Fprintf(os.Stderr, "provider=%s fell_back=%t canned=%t duration=%s\n", res.UsedProvider, res.FellBack, res.Canned, res.Duration)

	raw, err := json.Marshal(res.Record)
	if err != nil {
		exitErr(fmt.Sprintf("encode record: %v", err))
	}
	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, error) {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	var providers []llm.Provider
	if cfg.OpenAIAPIKey != "" {
		c, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, c)
	}
	if cfg.GeminiAPIKey != "" {
		c, err := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, c)
	}
	if len(providers) == 0 {
		return nil, orchestrator.ErrNoProvider
	}
	return orchestrator.New(providers...), nil
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
