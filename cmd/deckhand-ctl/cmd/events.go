package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/spf13/cobra"
)

var (
	eventsApp   string
	eventsLimit int
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the deployment event journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if eventsApp != "" {
			query.Set("app", eventsApp)
		}
		query.Set("limit", strconv.Itoa(eventsLimit))

		client := NewClient()
		resp, err := client.Get("/api/v1/events?" + query.Encode())
		if err != nil {
			return fmt.Errorf("error fetching events: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return CheckResponse(resp)
		}

		var apiResp struct {
			Data []api.Event `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tAPP\tTYPE\tDETAIL")
		for _, event := range apiResp.Data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", event.OccurredAt.Format(time.RFC3339), event.AppName, event.Type, event.Detail)
		}
		w.Flush()

		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsApp, "app", "", "Filter events by application name")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events")
	rootCmd.AddCommand(eventsCmd)
}
