package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"coach-backend/internal/broker"
	"coach-backend/internal/contract"
)

type analyzeFlags struct {
	depth   string
	noRecs  bool
	culture string
}

func (f analyzeFlags) callOptions(s *settings) broker.CallOptions {
	opts := broker.CallOptions{
		DepthLevel:      contract.Depth(f.depth),
		CulturalContext: f.culture,
		Platform:        s.platform,
	}
	if f.noRecs {
		no := false
		opts.IncludeRecommendations = &no
	}
	return opts
}

type analyzeFunc func(cmd *cobra.Command, b *broker.Broker, opts broker.CallOptions, args []string) (contract.Response, error)

func newAnalyzeCmd(s *settings) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run an analysis through the broker",
	}
	cmd.PersistentFlags().StringVar(&f.depth, "depth", "", "Depth level: basic, standard, comprehensive or expert")
	cmd.PersistentFlags().BoolVar(&f.noRecs, "no-recommendations", false, "Skip recommendations")
	cmd.PersistentFlags().StringVar(&f.culture, "cultural-context", "", "Override the stored cultural context")

	profile := analyzeCommand(s, f, "profile <json|@file>", "Analyze a dating profile", cobra.ExactArgs(1),
		func(cmd *cobra.Command, b *broker.Broker, opts broker.CallOptions, args []string) (contract.Response, error) {
			target, err := readJSONArg(args[0])
			if err != nil {
				return contract.Response{}, err
			}
			return b.AnalyzeProfile(cmd.Context(), target, opts), nil
		})

	var userProfile, targetProfile string
	conversation := analyzeCommand(s, f, "conversation <json|@file>", "Get coaching for a conversation", cobra.ExactArgs(1),
		func(cmd *cobra.Command, b *broker.Broker, opts broker.CallOptions, args []string) (contract.Response, error) {
			history, err := readJSONArg(args[0])
			if err != nil {
				return contract.Response{}, err
			}
			user, err := optionalJSONArg(userProfile)
			if err != nil {
				return contract.Response{}, err
			}
			target, err := optionalJSONArg(targetProfile)
			if err != nil {
				return contract.Response{}, err
			}
			return b.CoachConversation(cmd.Context(), history, user, target, opts), nil
		})
	conversation.Flags().StringVar(&userProfile, "user-profile", "", "Your profile as JSON or @file")
	conversation.Flags().StringVar(&targetProfile, "target-profile", "", "Their profile as JSON or @file")

	photo := analyzeCommand(s, f, "photo <image-file>", "Analyze a profile photo", cobra.ExactArgs(1),
		func(cmd *cobra.Command, b *broker.Broker, opts broker.CallOptions, args []string) (contract.Response, error) {
			dataURL, err := imageDataURL(args[0])
			if err != nil {
				return contract.Response{}, err
			}
			return b.AnalyzePhoto(cmd.Context(), dataURL, opts), nil
		})

	var focus []string
	compatibility := analyzeCommand(s, f, "compatibility <user json|@file> <target json|@file>", "Check compatibility of two profiles", cobra.ExactArgs(2),
		func(cmd *cobra.Command, b *broker.Broker, opts broker.CallOptions, args []string) (contract.Response, error) {
			user, err := readJSONArg(args[0])
			if err != nil {
				return contract.Response{}, err
			}
			target, err := readJSONArg(args[1])
			if err != nil {
				return contract.Response{}, err
			}
			return b.CheckCompatibility(cmd.Context(), user, target, focus, opts), nil
		})
	compatibility.Flags().StringSliceVar(&focus, "focus", nil, "Focus areas, comma separated")

	var pageURL string
	page := analyzeCommand(s, f, "page <html-file|->", "Analyze a saved dating-app page", cobra.ExactArgs(1),
		func(cmd *cobra.Command, b *broker.Broker, opts broker.CallOptions, args []string) (contract.Response, error) {
			var r io.Reader
			if args[0] == "-" {
				r = cmd.InOrStdin()
			} else {
				file, err := os.Open(args[0])
				if err != nil {
					return contract.Response{}, err
				}
				defer file.Close()
				r = file
			}
			data, err := broker.ExtractPage(r, pageURL)
			if err != nil {
				return contract.Response{}, err
			}
			return b.AnalyzePage(cmd.Context(), data, opts), nil
		})
	page.Flags().StringVar(&pageURL, "url", "", "URL the page was saved from")

	cmd.AddCommand(profile, conversation, photo, compatibility, page)
	return cmd
}

func analyzeCommand(s *settings, f *analyzeFlags, use, short string, args cobra.PositionalArgs, run analyzeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			b := s.newBroker(store)
			resp, err := run(cmd, b, f.callOptions(s), argv)
			if err != nil {
				return err
			}
			b.WaitNotifications()
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("analysis failed: %s", resp.Error)
			}
			return nil
		},
	}
}

// readJSONArg parses inline JSON, or the contents of a file when arg starts with @.
func readJSONArg(arg string) (json.RawMessage, error) {
	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, err
		}
		raw = b
	}
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, errors.New("argument is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func optionalJSONArg(arg string) (any, error) {
	if arg == "" {
		return nil, nil
	}
	return readJSONArg(arg)
}

func imageDataURL(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(b)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}
