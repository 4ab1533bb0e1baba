package cli

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/iso7816"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read PATH",
	Short: "Select a file of the card and read it",
	Long: `Select the file at PATH (from the MF) and read its content: the body of a
transparent EF or one record of a linear fixed or cyclic EF.

Examples:
  # EF_ICCID
  simota read 3F00/2FE2

  # Third record of EF_SMS under DF_TELECOM
  simota read 3F00/7F10/6F3C --record 3`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var iccidCmd = &cobra.Command{
	Use:   "iccid",
	Short: "Print the ICCID of the card",
	Args:  cobra.NoArgs,
	RunE:  runICCID,
}

// Read flags
var (
	readRecord int
	readLength int
)

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(iccidCmd)

	readCmd.Flags().IntVarP(&readRecord, "record", "r", 1, "Record number of a record EF")
	readCmd.Flags().IntVarP(&readLength, "length", "l", 0, "Bytes to read (file size when 0)")
}

func runRead(cmd *cobra.Command, args []string) error {
	path, err := iso7816.ParsePath(args[0])
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
	return readFile(cmd, r.client(), cla, path)
}

func readFile(cmd *cobra.Command, client *iso7816.Client, cla iso7816.Class, path []uint16) error {
	out := cmd.OutOrStdout()

	var sel *iso7816.SelectResult
	for _, c := range iso7816.SelectPath(cla, path) {
		trace, err := client.Send(c)
		if err != nil {
			return fmt.Errorf("transmission failed: %w", err)
		}
		if sel, err = iso7816.NewSelectResult(trace); err != nil {
			return err
		}
		fmt.Fprintln(out, sel.Describe())
		if !sel.IsSuccess() {
			return fmt.Errorf("selection failed with status: %s", sel.Last().Response.Status.Verbose())
		}
	}

	file, err := sel.File()
	if err != nil {
		return err
	}
	if file.Type != iso7816.FileTypeEF {
		return fmt.Errorf("%04X is a %s, not an EF", file.ID, file.Type)
	}

	var read *iso7816.CommandAPDU
	switch file.Structure {
	case iso7816.StructureTransparent:
		n := readLength
		if n == 0 {
			n = min(file.Size, iso7816.MaxShortLe)
		}
		read = iso7816.ReadBinary(cla, 0, n)
	default:
		if readRecord < 1 || readRecord > 0xFF {
			return fmt.Errorf("record %d out of range", readRecord)
		}
		n := readLength
		if n == 0 {
			n = file.RecordLength
		}
		read = iso7816.ReadRecord(cla, byte(readRecord), iso7816.RecordAbsolute, n)
	}

	trace, err := client.Send(read)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}
	res, err := iso7816.NewReadResult(trace)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Describe())
	if !res.IsSuccess() {
		return fmt.Errorf("read failed with status: %s", res.Last().Response.Status.Verbose())
	}
	return nil
}

func runICCID(cmd *cobra.Command, _ []string) error {
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

	iccid, err := iso7816.ReadICCID(r.client(), cla)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), iccid)
	return nil
}
