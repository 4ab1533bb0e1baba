package cli

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/ota"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var decodeCmd = &cobra.Command{
	Use:   "decode POR",
	Short: "Verify and decode a Proof of Receipt",
	Long: `Verify and decode the user data of a Proof of Receipt (the response
data of the ENVELOPE or the SMS-DELIVER-REPORT, starting with the user data
header 027100).

Examples:
  # Check a PoR against the keyset of a card, expecting counter 1
  simota decode -k 8901410321005792501 -n 1 "027100001612B00010..."

  # Machine readable output
  simota decode -k test -o yaml "027100..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

// Decode flags
var (
	decKeyset  string
	decCounter string
	decOutput  string
)

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVarP(&decKeyset, "keyset", "k", "", "Keyset name or ICCID")
	decodeCmd.Flags().StringVarP(&decCounter, "counter", "n", "", "Expected counter (not checked when empty)")
	decodeCmd.Flags().StringVarP(&decOutput, "output", "o", "text", "Output format (text, yaml)")
}

// porReport is the yaml rendering of a decoded PoR.
type porReport struct {
	TAR            string `yaml:"tar"`
	Counter        string `yaml:"counter"`
	PaddingCount   int    `yaml:"padding_count"`
	Status         string `yaml:"status"`
	StatusCode     string `yaml:"status_code"`
	Integrity      string `yaml:"integrity,omitempty"`
	Results        int    `yaml:"results"`
	LastStatusWord string `yaml:"last_status_word,omitempty"`
	LastResultData string `yaml:"last_result_data,omitempty"`
	Overall        string `yaml:"overall"`
}

func newPoRReport(r *ota.Result) porReport {
	rep := porReport{
		TAR:          r.TAR.String(),
		Counter:      r.Counter.String(),
		PaddingCount: r.PaddingCount,
		Status:       r.Status.String(),
		StatusCode:   fmt.Sprintf("%02X", byte(r.Status)),
		Integrity:    fmt.Sprintf("%X", r.Integrity),
		Results:      r.NumberOfResults,
		Overall:      string(r.Overall),
	}
	if r.HasResults() {
		rep.LastStatusWord = fmt.Sprintf("%04X", uint16(r.LastStatusWord))
		rep.LastResultData = fmt.Sprintf("%X", r.LastResultData)
	}
	return rep
}

func runDecode(cmd *cobra.Command, args []string) error {
	if decOutput != "text" && decOutput != "yaml" {
		return fmt.Errorf("unknown output format %q", decOutput)
	}
	data, err := parseHexArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	tar, err := cfg.Target()
	if err != nil {
		return err
	}
	ks, err := buildKeyset(cfg, decKeyset)
	if err != nil {
		return err
	}

	opts := []ota.DecodeOption{ota.ExpectTAR(tar)}
	if decCounter != "" {
		cntr, err := parseCounter(decCounter)
		if err != nil {
			return err
		}
		opts = append(opts, ota.ExpectCounter(cntr))
	}

	res, err := ota.DecodeResponse(ks, policy, data, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("proof of receipt rejected")
		return err
	}
	logger.Info().Stringer("counter", res.Counter).Stringer("status", res.Status).Str("overall", string(res.Overall)).Msg("proof of receipt verified")

	return printPoR(cmd, res, decOutput)
}

func printPoR(cmd *cobra.Command, res *ota.Result, format string) error {
	out := cmd.OutOrStdout()
	if format != "yaml" {
		fmt.Fprintln(out, res.Describe())
		return nil
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(newPoRReport(res)); err != nil {
		return err
	}
	return enc.Close()
}
