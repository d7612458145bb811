package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/sparkcoach/internal/engine"
)

var sweepRemote bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Classify every active resource and create nudges for high-risk ones",
	Long: "Runs one resource sweep. By default the sweep runs in this process against\n" +
		"the configured vault and database; --remote asks a running server to do it.",
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepRemote, "remote", false, "Trigger the sweep on the running server")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var res *engine.SweepResult
	if sweepRemote {
		c, err := apiClient(cfg)
		if err != nil {
			return err
		}
		res, err = c.RunCheck(cmd.Context())
		if err != nil {
			return fmt.Errorf("run check: %w", err)
		}
	} else {
		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()
		res, err = rt.engine.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}

	printSweep(res)
	return nil
}

func printSweep(res *engine.SweepResult) {
	fmt.Printf("Sweep %s: %d scanned, %d at risk, %d nudges created (%dms)\n",
		res.Status, res.Scanned, res.AtRiskCount, res.NudgesCreated, res.DurationMS)
	for _, r := range res.Resources {
		mark := ""
		if r.NudgeSent {
			mark = fmt.Sprintf("  nudge #%d", r.NudgeID)
		}
		fmt.Printf("  [%-6s] %3dd  %s%s\n", r.RiskLevel, r.DaysInactive, r.Title, mark)
	}
	for _, f := range res.Failures {
		fmt.Printf("  FAILED %s: %s\n", f.Path, f.Error)
	}
}
