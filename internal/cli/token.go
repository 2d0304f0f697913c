package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quiz-duel-service/internal/auth"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/domain"
)

// NewTokenCmd issues a signed account token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		accountID string
		username  string
		nickname  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development account token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			if accountID == "" {
				accountID = uuid.NewString()
			}
			token, err := verifier.Issue(domain.Account{ID: accountID, Username: username, Nickname: nickname},
				config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTTL))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "id", "", "account id (random when empty)")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name")
	return cmd
}
