// Package cli implements the coachctl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coach-backend/internal/broker"
	"coach-backend/internal/credstore"
)

const defaultBaseURL = "http://localhost:8080"

type settings struct {
	dbPath   string
	baseURL  string
	timeout  time.Duration
	platform string
	notify   bool
}

// NewRootCmd builds the coachctl command tree.
func NewRootCmd() *cobra.Command {
	s := &settings{}
	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Drive the dating-coach analysis API from a terminal",
		Long:          "coachctl keeps a local session in SQLite and sends analyses through the same broker the other clients use.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&s.dbPath, "db", "d", "", "Credential database (default: $COACHCTL_DB or ~/.coachctl/credentials.db)")
	root.PersistentFlags().StringVar(&s.baseURL, "base-url", "", "API base URL (default: $COACH_API_URL or "+defaultBaseURL+")")
	root.PersistentFlags().DurationVar(&s.timeout, "timeout", 30*time.Second, "Request timeout")
	root.PersistentFlags().StringVar(&s.platform, "platform", "", "Dating platform the data came from")
	root.PersistentFlags().BoolVar(&s.notify, "notify", false, "Publish a sync event after each successful analysis")

	root.AddCommand(
		newLoginCmd(s),
		newLogoutCmd(s),
		newUsageCmd(s),
		newHealthCmd(s),
		newAnalyzeCmd(s),
	)
	return root
}

func (s *settings) credentialPath() string {
	if s.dbPath != "" {
		return s.dbPath
	}
	if env := os.Getenv("COACHCTL_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".coachctl", "credentials.db")
}

func (s *settings) apiURL() string {
	if s.baseURL != "" {
		return strings.TrimRight(s.baseURL, "/")
	}
	if env := os.Getenv("COACH_API_URL"); env != "" {
		return strings.TrimRight(env, "/")
	}
	return defaultBaseURL
}

func (s *settings) openStore() (*credstore.Store, error) {
	store, err := credstore.OpenSQLite(s.credentialPath())
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, nil
}

func (s *settings) newBroker(store *credstore.Store) *broker.Broker {
	transport := broker.NewHTTPTransport(s.apiURL(), s.timeout)
	deps := broker.Deps{
		Transport:   transport,
		Credentials: store,
		Usage:       store,
	}
	if s.notify {
		deps.Notifier = &broker.HTTPNotifier{BaseURL: s.apiURL(), Credentials: store}
	}
	cfg := broker.Config{Surface: "cli"}
	if s.platform != "" {
		platform := s.platform
		cfg.Platform = func() string { return platform }
	}
	return broker.New(cfg, deps)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
