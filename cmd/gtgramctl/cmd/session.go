package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Inspect the current session",
	Aliases: []string{"sessions"},
}

var sessionGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current session record",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := apiClient().Session(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		out, err := yaml.Marshal(sess)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, string(out))
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionGetCmd)
}
