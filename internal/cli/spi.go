package cli

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/ota"
	"github.com/spf13/cobra"
)

var spiCmd = &cobra.Command{
	Use:   "spi [SPI]",
	Short: "Describe a security parameter indicator",
	Long: `Describe the two SPI bytes given in hex, or the policy of the
configuration file when none is given.

Examples:
  simota spi 1621
  simota spi -c simota.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSPI,
}

func init() {
	rootCmd.AddCommand(spiCmd)
}

func runSPI(cmd *cobra.Command, args []string) error {
	var policy ota.SPI
	if len(args) == 1 {
		raw, err := parseHexArgs(args)
		if err != nil {
			return err
		}
		if policy, err = ota.ParseSPI(raw); err != nil {
			return err
		}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if policy, err = cfg.Policy(); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), policy.Describe())
	return nil
}
