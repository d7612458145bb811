package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/sparkcoach/internal/engine"
)

var (
	atRiskLevel string
	dueDate     string
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Inspect tracked resources",
}

var atRiskCmd = &cobra.Command{
	Use:   "at-risk",
	Short: "List resources by stored abandonment risk",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := apiClient(cfg)
		if err != nil {
			return err
		}
		list, err := c.AtRisk(cmd.Context(), atRiskLevel)
		if err != nil {
			return fmt.Errorf("at-risk: %w", err)
		}
		printResources(list, "No resources at risk.")
		return nil
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List resources due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := apiClient(cfg)
		if err != nil {
			return err
		}
		list, err := c.Due(cmd.Context(), dueDate)
		if err != nil {
			return fmt.Errorf("due: %w", err)
		}
		printResources(list, "Nothing due for review.")
		return nil
	},
}

func init() {
	atRiskCmd.Flags().StringVar(&atRiskLevel, "level", "medium", "Minimum risk level: low, medium or high")
	dueCmd.Flags().StringVar(&dueDate, "date", "", "Cutoff date YYYY-MM-DD (default today)")

	resourcesCmd.AddCommand(atRiskCmd)
	resourcesCmd.AddCommand(dueCmd)
}

func printResources(list []engine.ResourceSummary, empty string) {
	if len(list) == 0 {
		fmt.Println(empty)
		return
	}
	for _, r := range list {
		risk := string(r.AbandonmentRisk)
		if risk == "" {
			risk = "-"
		}
		fmt.Printf("[%-6s] %-40s retention %3d  last %s  next %s\n",
			risk, r.Title, r.RetentionScore, orDash(r.LastReviewed), orDash(r.NextReview))
		fmt.Printf("         %s\n", r.Path)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
