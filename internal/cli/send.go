package cli

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/config"
	"github.com/gregLibert/simota/pkg/iso7816"
	"github.com/gregLibert/simota/pkg/ota"
	"github.com/gregLibert/simota/pkg/remote"
	"github.com/gregLibert/simota/pkg/sms"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send APDU...",
	Short: "Send command APDUs to a card over SMS-PP data download",
	Long: `Secure command APDUs, deliver them to the card in the PC/SC reader as
an SMS-PP data download ENVELOPE and verify the Proof of Receipt.

Without --keyset the ICCID of the card selects the keyset.

Examples:
  # SELECT EF_ICCID; the card last accepted counter 4
  simota send --last-counter 4 "A0A40000022FE2"

  # Pick the keyset and show every APDU
  simota send -k test --log-level trace "A0A40000023F00"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

// Send flags
var (
	sendKeyset      string
	sendLastCounter string
	sendOutput      string
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendKeyset, "keyset", "k", "", "Keyset name or ICCID (read from the card when empty)")
	sendCmd.Flags().StringVar(&sendLastCounter, "last-counter", "0", "Last counter accepted by the card application")
	sendCmd.Flags().StringVarP(&sendOutput, "output", "o", "text", "Output format (text, yaml)")
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendOutput != "text" && sendOutput != "yaml" {
		return fmt.Errorf("unknown output format %q", sendOutput)
	}
	apdu, err := parseHexArgs(args)
	if err != nil {
		return err
	}
	last, err := parseCounter(sendLastCounter)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cla, err := iso7816.ParseClass(cfg.Class)
	if err != nil {
		return err
	}

	r, err := connectReader(cfg.Reader)
	if err != nil {
		return err
	}
	defer r.Close()
	client := r.client()

	keyset := sendKeyset
	if keyset == "" {
		iccid, err := iso7816.ReadICCID(client, cla)
		if err != nil {
			return fmt.Errorf("reading ICCID: %w", err)
		}
		logger.Info().Str("iccid", iccid).Msg("card identified")
		keyset = iccid
	}

	session, err := newSession(cfg, keyset, client, cla)
	if err != nil {
		return err
	}
	session.Counters().Set(session.TAR(), last)

	reply, err := session.Exchange(cmd.Context(), apdu)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "counter:  %s\n", reply.Counter)
	fmt.Fprintf(out, "status:   %s\n", reply.Status.Verbose())
	if reply.PoR == nil {
		fmt.Fprintln(out, "no proof of receipt")
		return nil
	}
	switch reply.PoR.Status {
	case ota.StatusCounterLow, ota.StatusCounterHigh:
		logger.Warn().Stringer("counter", reply.Counter).Msg("counter refused by the card, adjust --last-counter")
	}
	return printPoR(cmd, reply.PoR, sendOutput)
}

// newSession wires the keyset, the policy and an SMS-PP envelope transport
// over client.
func newSession(cfg *config.Config, keyset string, client *iso7816.Client, cla iso7816.Class) (*remote.Session, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	tar, err := cfg.Target()
	if err != nil {
		return nil, err
	}
	ks, err := buildKeyset(cfg, keyset)
	if err != nil {
		return nil, err
	}
	originator, err := sms.ParseAddress(cfg.Originator)
	if err != nil {
		return nil, err
	}
	smsc, err := sms.ParseAddress(cfg.SMSC)
	if err != nil {
		return nil, err
	}

	return remote.NewSession(remote.Config{
		Keyset: ks,
		SPI:    policy,
		TAR:    tar,
		Transport: &sms.EnvelopeTransport{
			Client:     client,
			Class:      cla,
			Originator: originator,
			SMSC:       smsc,
		},
		LoggerFactory: loggerFactory{base: logger},
	})
}
