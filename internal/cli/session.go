package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coach-backend/internal/contract"
	"coach-backend/internal/credstore"
	"coach-backend/internal/tier"
)

func newLoginCmd(s *settings) *cobra.Command {
	var (
		userID   string
		token    string
		tierName string
		culture  string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.SaveSession(cmd.Context(), credstore.Session{
				UserID:          userID,
				SessionToken:    token,
				CulturalContext: culture,
				Tier:            tier.Normalize(tierName),
			})
			if err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", userID, tier.Normalize(tierName))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Session token (required)")
	cmd.Flags().StringVar(&tierName, "tier", "free", "Subscription tier")
	cmd.Flags().StringVar(&culture, "cultural-context", "", "Cultural context sent with analyses")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session and usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

type usageReport struct {
	Tier  tier.Tier            `json:"tier"`
	Kinds []contract.TierUsage `json:"kinds"`
}

func newUsageCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show local usage against the tier limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.UserID(cmd.Context()); err != nil {
				return errors.New("not logged in")
			}
			q, err := store.Quota(cmd.Context())
			if err != nil {
				return fmt.Errorf("read usage: %w", err)
			}
			report := usageReport{Tier: tier.Normalize(string(q.Tier))}
			for _, kind := range contract.Kinds() {
				report.Kinds = append(report.Kinds, q.Check(kind))
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newHealthCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			h := s.newBroker(store).HealthCheck(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), h); err != nil {
				return err
			}
			if h.Status == "unhealthy" {
				return errors.New("api unhealthy")
			}
			return nil
		},
	}
}
