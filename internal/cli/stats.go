package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/sparkcoach/internal/engine"
)

var statsDashboard bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show this week's learning progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := apiClient(cfg)
		if err != nil {
			return err
		}

		if statsDashboard {
			d, err := c.Dashboard(cmd.Context())
			if err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			printDashboard(d)
			return nil
		}

		ws, err := c.WeeklySummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("weekly summary: %w", err)
		}
		track := "behind"
		if ws.OnTrack {
			track = "on track"
		}
		fmt.Printf("%s (%s)\n", ws.Week, track)
		fmt.Printf("  quizzes  %d, average %d\n", ws.QuizzesCompleted, ws.AverageScore)
		fmt.Printf("  hours    %.1f\n", ws.HoursInvested)
		fmt.Printf("  streak   %d days\n", ws.CurrentStreak)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsDashboard, "dashboard", false, "Show the full dashboard")
}

func printDashboard(d *engine.Dashboard) {
	fmt.Printf("Period %s\n", d.Period)
	fmt.Printf("  streak     %d days (longest %d)\n", d.Streaks.CurrentDays, d.Streaks.LongestEver)
	h := d.LearningHours
	fmt.Printf("  hours      %.1f of %.1f target, %s from %.1f\n", h.ThisWeek, h.Target, h.Trend, h.PreviousWeek)
	fmt.Printf("  quizzes    %d completed, average %d, %d questions\n",
		d.Quizzes.CompletedThisWeek, d.Quizzes.AverageScore, d.Quizzes.TotalQuestionsAnswered)
	fmt.Printf("  retention  average %d\n", d.Retention.AverageScore)
	for _, name := range d.Retention.Improving {
		fmt.Printf("             + %s\n", name)
	}
	for _, name := range d.Retention.Declining {
		fmt.Printf("             - %s\n", name)
	}
	if d.Resources == nil {
		fmt.Println("  resources  vault unavailable")
		return
	}
	fmt.Printf("  resources  %d active, %d at risk, %d mastered\n", d.Resources.Active, d.Resources.AtRisk, d.Resources.Mastered)
}
