package cli

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gregLibert/simota/pkg/iso7816"
	"github.com/gregLibert/simota/pkg/ota"
	"github.com/gregLibert/simota/pkg/sms"
	"github.com/gregLibert/simota/pkg/tlv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testConfig = `
class: gsm
originator: "+33612345678"
smsc: "+3361"
tar: b00010
spi:
  counter: counter_must_be_higher
  ciphering: true
  integrity: cc
  por: por_required
  por_integrity: cc
  por_ciphered: true
keysets:
  - name: test
    iccid: "8901410321005792501F"
    kic: {algorithm: triple_des_cbc2, index: 1, key: C21DD66ACAC13CB3BC8B331B24AFB57B}
    kid: {algorithm: triple_des_cbc2, index: 1, key: 12110C78E678C25408233076AA033615}
  - name: crc
    kic: {algorithm: none}
    kid: {algorithm: crc32, index: 2}
`

var (
	testTAR = ota.TAR{0xB0, 0x00, 0x10}
	testSPI = ota.MustParseSPI(tlv.Hex("16 19"))
)

func testKeyset(t *testing.T) *ota.Keyset {
	t.Helper()
	ks, err := ota.NewKeyset(
		ota.AlgoTripleDES2, 1, tlv.Hex("C21DD66ACAC13CB3BC8B331B24AFB57B"),
		ota.AlgoTripleDES2, 1, tlv.Hex("12110C78E678C25408233076AA033615"),
	)
	require.NoError(t, err)
	return ks
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

func resetFlags() {
	configPath = "simota.yaml"
	logLevel = "info"
	encKeyset, encCounter, encSMS = "", "0", false
	decKeyset, decCounter, decOutput = "", "", "text"
	sendKeyset, sendLastCounter, sendOutput = "", "0", "text"
	readRecord, readLength = 1, 0
}

// execute runs the root command with args and returns its standard output
// and log output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	prompter = nil

	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), logs.String(), err
}

// field returns the value printed after "name:" in out.
func field(t *testing.T, out, name string) []byte {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			b, err := hex.DecodeString(strings.TrimSpace(v))
			require.NoError(t, err)
			return b
		}
	}
	t.Fatalf("no %s line in:\n%s", name, out)
	return nil
}

func TestEncode(t *testing.T) {
	path := writeConfig(t)
	apdu := tlv.Hex("A0 A4 00 00 02 2F E2")

	t.Run("packet", func(t *testing.T) {
		out, logs, err := execute(t, "encode", "-c", path, "-k", "test", "-n", "5", "A0A40000022FE2")
		require.NoError(t, err)
		assert.Contains(t, logs, "command packet secured")

		cmd, err := ota.DecodeCommand(testKeyset(t), field(t, out, "packet"))
		require.NoError(t, err)
		assert.Equal(t, apdu, cmd.Data)
		assert.Equal(t, testTAR, cmd.TAR)
		assert.Equal(t, uint64(5), cmd.Counter.Uint64())
		assert.Equal(t, testSPI, cmd.SPI)
	})

	t.Run("keyset by ICCID and several APDUs", func(t *testing.T) {
		out, _, err := execute(t, "encode", "-c", path, "-k", "8901410321005792501", "-n", "0x10", "A0A4 0000 023F00", "A0F2000016")
		require.NoError(t, err)

		cmd, err := ota.DecodeCommand(testKeyset(t), field(t, out, "packet"))
		require.NoError(t, err)
		assert.Equal(t, tlv.Hex("A0 A4 00 00 02 3F 00 A0 F2 00 00 16"), cmd.Data)
		assert.Equal(t, uint64(16), cmd.Counter.Uint64())
	})

	t.Run("SMS-PP download", func(t *testing.T) {
		out, _, err := execute(t, "encode", "-c", path, "-k", "test", "-n", "1", "--sms", "A0A40000022FE2")
		require.NoError(t, err)

		pkt := field(t, out, "packet")
		tpdu := field(t, out, "tpdu")
		download, err := sms.ParseDownload(field(t, out, "envelope"))
		require.NoError(t, err)
		assert.Equal(t, tpdu, download.TPDU)

		deliver, err := download.Deliver()
		require.NoError(t, err)
		got, err := deliver.Packet()
		require.NoError(t, err)
		assert.Equal(t, pkt, got)
		assert.Equal(t, "+33612345678", deliver.Originator.String())
	})

	t.Run("errors", func(t *testing.T) {
		_, _, err := execute(t, "encode", "-c", path, "A0A40000022FE2")
		assert.ErrorIs(t, err, ota.ErrKeyNotFound, "two keysets and no --keyset")

		_, _, err = execute(t, "encode", "-c", path, "-k", "nope", "A0A40000022FE2")
		assert.ErrorIs(t, err, ota.ErrKeyNotFound)

		_, _, err = execute(t, "encode", "-c", path, "-k", "test", "A0A4Z")
		assert.Error(t, err)

		_, _, err = execute(t, "encode", "-c", path, "-k", "test", "-n", "0x10000000000", "A0A40000022FE2")
		assert.Error(t, err, "counter wider than 5 bytes")

		_, _, err = execute(t, "encode", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "A0")
		assert.Error(t, err)
	})
}

func TestDecode(t *testing.T) {
	path := writeConfig(t)
	ks := testKeyset(t)
	cntr, err := ota.NewCounter(5)
	require.NoError(t, err)

	por, err := ota.EncodeResponse(ks, testSPI, testTAR, cntr, ota.StatusPoROK, ota.AdditionalData(1, 0x9000, nil))
	require.NoError(t, err)
	porHex := hex.EncodeToString(por)

	t.Run("text", func(t *testing.T) {
		out, logs, err := execute(t, "decode", "-c", path, "-k", "test", "-n", "5", porHex)
		require.NoError(t, err)
		assert.Contains(t, out, "=== PROOF OF RECEIPT REPORT ===")
		assert.Contains(t, out, "+ TAR:     B00010")
		assert.Contains(t, out, "+ Overall: por_ok")
		assert.Contains(t, logs, "proof of receipt verified")
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := execute(t, "decode", "-c", path, "-k", "test", "-o", "yaml", porHex)
		require.NoError(t, err)

		var rep porReport
		require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
		assert.Equal(t, "B00010", rep.TAR)
		assert.Equal(t, "0000000005", rep.Counter)
		assert.Equal(t, "por_ok", rep.Status)
		assert.Equal(t, "00", rep.StatusCode)
		assert.Equal(t, 1, rep.Results)
		assert.Equal(t, "9000", rep.LastStatusWord)
		assert.Equal(t, "por_ok", rep.Overall)
		assert.Len(t, rep.Integrity, 16)
	})

	t.Run("unexpected counter", func(t *testing.T) {
		_, logs, err := execute(t, "decode", "-c", path, "-k", "test", "-n", "6", porHex)
		assert.ErrorIs(t, err, ota.ErrCounterMismatch)
		assert.Contains(t, logs, "proof of receipt rejected")
	})

	t.Run("tampered", func(t *testing.T) {
		bad := bytes.Clone(por)
		bad[len(bad)-1] ^= 0x01
		_, _, err := execute(t, "decode", "-c", path, "-k", "test", hex.EncodeToString(bad))
		assert.ErrorIs(t, err, ota.ErrIntegrityCheckFailed)
	})

	t.Run("unknown output", func(t *testing.T) {
		_, _, err := execute(t, "decode", "-c", path, "-k", "test", "-o", "json", porHex)
		assert.Error(t, err)
	})
}

func TestSPICommand(t *testing.T) {
	out, _, err := execute(t, "spi", "1621")
	require.NoError(t, err)
	assert.Contains(t, out, "=== SPI 16 21 ===")
	assert.Contains(t, out, "Ciphering:  true")
	assert.Contains(t, out, "SMS-SUBMIT")

	out, _, err = execute(t, "spi", "-c", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "=== SPI 16 19 ===")
	assert.Contains(t, out, "SMS-DELIVER-REPORT")

	_, _, err = execute(t, "spi", "FF00")
	assert.ErrorIs(t, err, ota.ErrMalformedPacket)
}

func TestLogLevel(t *testing.T) {
	_, _, err := execute(t, "spi", "--log-level", "loud", "1621")
	assert.Error(t, err)
}

func TestLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	f := loggerFactory{base: zerolog.New(&buf).Level(zerolog.InfoLevel)}
	log := f.NewLogger("ota")

	log.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	log.Warnf("PoR integrity check failed for counter %s", "0000000001")
	assert.Contains(t, buf.String(), `"scope":"ota"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "counter 0000000001")

	buf.Reset()
	log.Error("boom")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

// scriptedCard answers each APDU with the next scripted response.
type scriptedCard struct {
	responses [][]byte
	sent      [][]byte
}

func (c *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	c.sent = append(c.sent, bytes.Clone(cmd))
	if len(c.responses) == 0 {
		return []byte{0x6F, 0x00}, nil
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

func TestReadFile(t *testing.T) {
	mf := tlv.Hex("00 00 1F 40 3F 00 01 00 00 00 00 00 0D 13 00 0A 0A 04 00 83 8A 00 83 90 00")
	telecom := tlv.Hex("00 00 1F 40 7F 10 02 00 00 00 00 00 0D 13 00 0A 0A 04 00 83 8A 00 83 90 00")

	newCmd := func() (*cobra.Command, *bytes.Buffer) {
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)
		return cmd, &out
	}

	t.Run("transparent EF", func(t *testing.T) {
		resetFlags()
		card := &scriptedCard{responses: [][]byte{
			tlv.Hex("9F 17"), mf,
			tlv.Hex("9F 0F"), tlv.Hex("00 00 00 0A 2F E2 04 00 0B 00 BB 01 02 00 00 90 00"),
			tlv.Hex("98 10 14 30 12 00 75 29 05 F1 90 00"),
		}}
		cmd, out := newCmd()
		err := readFile(cmd, iso7816.NewClient(card), iso7816.ClassGSM(), []uint16{0x3F00, 0x2FE2})
		require.NoError(t, err)

		assert.Equal(t, tlv.Hex("A0 B0 00 00 0A"), card.sent[len(card.sent)-1])
		assert.Contains(t, out.String(), "- File:      2FE2 (EF)")
		assert.Contains(t, out.String(), "=== READ BINARY COMMAND REPORT ===")
		assert.Contains(t, out.String(), "981014301200752905F1")
	})

	t.Run("record EF", func(t *testing.T) {
		resetFlags()
		readRecord = 3
		card := &scriptedCard{responses: [][]byte{
			tlv.Hex("9F 17"), mf,
			tlv.Hex("9F 17"), telecom,
			tlv.Hex("9F 0F"), tlv.Hex("00 00 06 E0 6F 3C 04 00 11 00 55 01 02 01 B0 90 00"),
			append(bytes.Repeat([]byte{0xFF}, 0xB0), 0x90, 0x00),
		}}
		cmd, out := newCmd()
		err := readFile(cmd, iso7816.NewClient(card), iso7816.ClassGSM(), []uint16{0x3F00, 0x7F10, 0x6F3C})
		require.NoError(t, err)

		assert.Equal(t, tlv.Hex("A0 B2 03 04 B0"), card.sent[len(card.sent)-1])
		assert.Contains(t, out.String(), "=== READ RECORD COMMAND REPORT ===")
		assert.Contains(t, out.String(), "+ Length: 176 bytes")
	})

	t.Run("DF", func(t *testing.T) {
		resetFlags()
		card := &scriptedCard{responses: [][]byte{tlv.Hex("9F 17"), mf}}
		cmd, _ := newCmd()
		err := readFile(cmd, iso7816.NewClient(card), iso7816.ClassGSM(), []uint16{0x3F00})
		assert.ErrorContains(t, err, "not an EF")
	})

	t.Run("file not found", func(t *testing.T) {
		resetFlags()
		card := &scriptedCard{responses: [][]byte{tlv.Hex("9F 17"), mf, tlv.Hex("94 04")}}
		cmd, out := newCmd()
		err := readFile(cmd, iso7816.NewClient(card), iso7816.ClassGSM(), []uint16{0x3F00, 0x6F99})
		assert.ErrorContains(t, err, "selection failed")
		assert.Contains(t, out.String(), "=== SELECT COMMAND REPORT ===")
	})
}
