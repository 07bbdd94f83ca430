package cmd

import (
	"fmt"
	"net/http"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/spf13/cobra"
)

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy <location>",
	Short: "Deploy an artifact synchronously",
	Long:  `Deploys an archive or exploded directory outside the poll cycle. The location must be visible to the daemon.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()
		resp, err := client.Post("/api/v1/apps/", api.DeployRequest{Location: args[0]})
		if err != nil {
			return fmt.Errorf("error deploying artifact: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			return CheckResponse(resp)
		}

		fmt.Println("Artifact deployed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
}
