package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibkit/ibgw/internal/screenshot"
)

var screenshotOutput string

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture the virtual display once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		c := screenshot.NewCapturer(cfg.Display, cfg.ScreenshotDir, logger)
		path, err := c.Capture(cmd.Context())
		if err != nil {
			return err
		}
		if screenshotOutput != "" {
			if err := moveFile(path, screenshotOutput); err != nil {
				return err
			}
			path = screenshotOutput
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// moveFile renames src to dst, copying when they sit on different
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}

var (
	compareThreshold      float64
	compareMaxDiffPercent float64
)

var compareCmd = &cobra.Command{
	Use:   "compare-screenshots <image-a> <image-b>",
	Short: "Compare two PNG screenshots pixel by pixel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := screenshot.Compare(args[0], args[1])
		if err != nil {
			return err
		}

		match := result.Match(compareThreshold, compareMaxDiffPercent)
		fmt.Fprintf(cmd.OutOrStdout(), "mean diff: %.2f\nmax diff: %d\ndiffering pixels: %.2f%%\nmatch: %v\n",
			result.MeanDiff, result.MaxDiff, result.DiffPercent, match)
		if !match {
			return fmt.Errorf("images differ beyond tolerance")
		}
		return nil
	},
}

func init() {
	screenshotCmd.Flags().StringVarP(&screenshotOutput, "output", "o", "", "write the capture to this path instead of the screenshot directory")
	compareCmd.Flags().Float64Var(&compareThreshold, "threshold", screenshot.DefaultThreshold, "mean difference tolerance as a fraction of full range")
	compareCmd.Flags().Float64Var(&compareMaxDiffPercent, "max-diff-percent", screenshot.DefaultMaxDiffPercent, "maximum percentage of differing pixels")
}
