package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobpilot-edge/internal/session"
	"jobpilot-edge/pkg/client"
	"jobpilot-edge/pkg/logger"
)

// remoteFlags registers the flags shared by commands that call the
// service. Each can also be set as JOBPILOT_<FLAG> in the environment.
func remoteFlags(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("JOBPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.Flags().String("server", "http://localhost:8080", "edge service base URL")
	cmd.Flags().String("token-url", "", "identity provider token endpoint (client credentials)")
	cmd.Flags().String("client-id", "", "OAuth2 client id")
	cmd.Flags().String("client-secret", "", "OAuth2 client secret")
	cmd.Flags().String("token-cache", defaultTokenCache(), "file caching the access token")
	_ = v.BindPFlags(cmd.Flags())
	return v
}

func defaultTokenCache() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".jobpilot", "token.json")
}

func newClient(v *viper.Viper) *client.Client {
	var tokens client.Tokens
	if url := v.GetString("token-url"); url != "" {
		opts := session.Options{Logger: logger.NewNop()}
		if path := v.GetString("token-cache"); path != "" {
			opts.Store = session.FileStore{Path: path}
		}
		source := session.NewOAuth2Source(url, v.GetString("client-id"), v.GetString("client-secret"))
		tokens = session.NewManager(source, opts)
	}
	return client.New(v.GetString("server"), nil, tokens)
}

func deductCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "deduct <feature> <id>",
		Short: "Charge a feature through the edge service",
		Long: `Charge a feature through the edge service, exactly as the web app does.

Examples:
  ledgerctl deduct resume 7f1c...
  ledgerctl deduct interview-prep-telegram <user_profile_id> --description "manual retry"`,
		Args: cobra.ExactArgs(2),
	}
	v := remoteFlags(cmd)
	cmd.Flags().StringVarP(&description, "description", "d", "", "ledger description")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		res, err := newClient(v).Deduct(cmd.Context(), args[0], args[1], description)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "charged %s credits for %s\n", res.Deducted.String(), res.Feature)
		fmt.Fprintf(out, "balance: %s -> %s\n", res.PreviousBalance.String(), res.NewBalance.String())
		return nil
	}
	return cmd
}

func relayCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "relay <payload.json>",
		Short: "Send a relay payload to the workflow engine through the edge service",
		Args:  cobra.ExactArgs(1),
	}
	v := remoteFlags(cmd)
	cmd.Flags().StringVar(&source, "source", "ledgerctl", "x-source tag")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if !json.Valid(payload) {
			return fmt.Errorf("%s is not valid JSON", args[0])
		}

		res, err := newClient(v).Relay(cmd.Context(), payload, source)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status:       %d\n", res.Status)
		fmt.Fprintf(out, "execution id: %s\n", res.Relay.ExecutionID)
		fmt.Fprintf(out, "fingerprint:  %s\n", res.Relay.Fingerprint)
		if len(res.Data) > 0 {
			fmt.Fprintf(out, "data:         %s\n", res.Data)
		}
		return nil
	}
	return cmd
}
