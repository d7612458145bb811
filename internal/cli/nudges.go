package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var nudgesLimit int

var nudgesCmd = &cobra.Command{
	Use:   "nudges",
	Short: "List and acknowledge pending nudges",
	RunE:  runNudgesList,
}

var nudgesDeliveredCmd = &cobra.Command{
	Use:   "mark-delivered <id>...",
	Short: "Mark nudges as delivered",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMarkDelivered,
}

func init() {
	nudgesCmd.Flags().IntVarP(&nudgesLimit, "limit", "n", 10, "Maximum number of nudges (max 100)")
	nudgesCmd.AddCommand(nudgesDeliveredCmd)
}

func runNudgesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := apiClient(cfg)
	if err != nil {
		return err
	}

	nudges, err := c.PendingNudges(cmd.Context(), nudgesLimit)
	if err != nil {
		return fmt.Errorf("list nudges: %w", err)
	}
	if len(nudges) == 0 {
		fmt.Println("No pending nudges.")
		return nil
	}
	for _, n := range nudges {
		tag := ""
		if n.Fallback {
			tag = " (template)"
		}
		fmt.Printf("#%d  %s  %s%s\n", n.ID, n.CreatedAt, n.ResourcePath, tag)
		fmt.Printf("    %s\n\n", n.Message)
	}
	return nil
}

func runMarkDelivered(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid nudge id %q", a)
		}
		ids = append(ids, id)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := apiClient(cfg)
	if err != nil {
		return err
	}
	n, err := c.MarkDelivered(cmd.Context(), ids)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	fmt.Printf("Marked %d nudge(s) delivered.\n", n)
	return nil
}
