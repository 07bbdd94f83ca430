package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// undeployCmd represents the undeploy command
var undeployCmd = &cobra.Command{
	Use:   "undeploy <name>",
	Short: "Undeploy an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()
		resp, err := client.Delete("/api/v1/apps/" + args[0])
		if err != nil {
			return fmt.Errorf("error undeploying app: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return CheckResponse(resp)
		}

		fmt.Println("Application undeployed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undeployCmd)
}
