package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/spf13/cobra"
)

// zombiesCmd represents the zombies command
var zombiesCmd = &cobra.Command{
	Use:   "zombies",
	Short: "List artifacts suppressed after a failed deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()
		resp, err := client.Get("/api/v1/zombies")
		if err != nil {
			return fmt.Errorf("error fetching zombies: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return CheckResponse(resp)
		}

		var apiResp struct {
			Data []api.ZombieEntry `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LOCATION\tLAST MODIFIED")
		for _, zombie := range apiResp.Data {
			fmt.Fprintf(w, "%s\t%s\n", zombie.Location, zombie.LastModified.Format(time.RFC3339))
		}
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(zombiesCmd)
}
