package cli

import (
	"fmt"
	"time"

	"github.com/gregLibert/simota/pkg/ota"
	"github.com/gregLibert/simota/pkg/sms"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode APDU...",
	Short: "Secure command APDUs into a command packet",
	Long: `Secure one or more command APDUs into a command packet, using the TAR,
SPI and keyset of the configuration file. Several APDUs are concatenated
into the secured data.

Examples:
  # SELECT EF_ICCID with the keyset bound to an ICCID, counter 1
  simota encode -k 8901410321005792501 -n 1 "A0A40000022FE2"

  # Also print the SMS-DELIVER and the SMS-PP download envelope
  simota encode -k test -n 0x10 --sms "A0A40000023F00" "A0F2000016"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

// Encode flags
var (
	encKeyset  string
	encCounter string
	encSMS     bool
)

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVarP(&encKeyset, "keyset", "k", "", "Keyset name or ICCID")
	encodeCmd.Flags().StringVarP(&encCounter, "counter", "n", "0", "Replay counter of the packet")
	encodeCmd.Flags().BoolVar(&encSMS, "sms", false, "Print the SMS-DELIVER TPDU and download envelope")
}

func runEncode(cmd *cobra.Command, args []string) error {
	apdu, err := parseHexArgs(args)
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
	cntr, err := parseCounter(encCounter)
	if err != nil {
		return err
	}
	ks, err := buildKeyset(cfg, encKeyset)
	if err != nil {
		return err
	}

	pkt, err := ota.EncodeCommand(ks, tar, policy, cntr, apdu)
	if err != nil {
		return err
	}
	logger.Info().Stringer("tar", tar).Stringer("spi", policy).Stringer("counter", cntr).Int("length", len(pkt)).Msg("command packet secured")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "packet:   %X\n", pkt)
	if !encSMS {
		return nil
	}

	originator, err := sms.ParseAddress(cfg.Originator)
	if err != nil {
		return err
	}
	smsc, err := sms.ParseAddress(cfg.SMSC)
	if err != nil {
		return err
	}
	deliver, err := sms.NewDeliver(originator, pkt, time.Now())
	if err != nil {
		return err
	}
	tpdu, err := deliver.Bytes()
	if err != nil {
		return err
	}
	download, err := sms.NewDownload(smsc, deliver)
	if err != nil {
		return err
	}
	env, err := download.Envelope()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tpdu:     %X\n", tpdu)
	fmt.Fprintf(out, "envelope: %X\n", env)
	return nil
}
