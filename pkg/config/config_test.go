package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gregLibert/simota/pkg/ota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
reader: 1
class: gsm
originator: "+33612345678"
smsc: "+3361"
tar: b00010
spi:
  counter: counter_must_be_one_higher
  ciphering: true
  integrity: cc
  por: por_required
  por_integrity: cc
  por_ciphered: true
keysets:
  - name: aes
    iccid: "8901410321005792501F"
    kic: {algorithm: aes_cbc, index: 1, key: 200102030405060708090A0B0C0D0E0F}
    kid: {algorithm: aes_cmac, index: 1}
  - name: legacy
    kic: {algorithm: triple_des_cbc2, index: 3, key: C21DD66ACAC13CB3BC8B331B24AFB57B}
    kid: {algorithm: triple_des_cbc2, index: 3, key: 12110C78E678C25408233076AA033615}
  - name: crc
    kic: {algorithm: none}
    kid: {algorithm: crc16, index: 2}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type staticPrompter map[string][]byte

func (p staticPrompter) ReadKey(label string) ([]byte, error) {
	return p[label], nil
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Reader)
	assert.Equal(t, "gsm", cfg.Class)
	assert.Equal(t, "+3361", cfg.SMSC)
	require.Len(t, cfg.Keysets, 3)
	assert.Equal(t, uint8(3), cfg.Keysets[1].KIc.Index)

	spi, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, "1E19", spi.String())

	tar, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, ota.TAR{0xB0, 0x00, 0x10}, tar)
}

func TestLoadDefaultsAndEnvironment(t *testing.T) {
	t.Setenv("SIMOTA_READER", "2")
	t.Setenv("SIMOTA_SPI_INTEGRITY", "rc")

	cfg, err := Load(writeConfig(t, "originator: \"+3312\"\ntar: \"000001\"\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Reader)
	assert.Equal(t, "gsm", cfg.Class)
	assert.Equal(t, "rc", cfg.SPI.Integrity)
	assert.Equal(t, "por_required", cfg.SPI.PoR)
	assert.Empty(t, cfg.Keysets)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing originator", "tar: B00010\n"},
		{"bad TAR", "originator: \"+33\"\ntar: B0001\n"},
		{"unknown policy name", "originator: \"+33\"\ntar: B00010\nspi: {counter: sometimes}\n"},
		{"unknown algorithm", "originator: \"+33\"\ntar: B00010\nkeysets: [{name: x, kic: {algorithm: rot13}, kid: {algorithm: none}}]\n"},
		{"duplicate keyset", "originator: \"+33\"\ntar: B00010\nkeysets: [{name: x, kic: {algorithm: none}, kid: {algorithm: none}}, {name: x, kic: {algorithm: none}, kid: {algorithm: none}}]\n"},
		{"bad key", "originator: \"+33\"\ntar: B00010\nkeysets: [{name: x, kic: {algorithm: aes_cbc, key: XYZ}, kid: {algorithm: none}}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	for _, key := range []string{"aes", "8901410321005792501", "8901410321005792501f"} {
		ks, err := cfg.Lookup(key)
		require.NoError(t, err, key)
		assert.Equal(t, "aes", ks.Name)
	}

	_, err = cfg.Lookup("8944000000000000000")
	assert.ErrorIs(t, err, ota.ErrKeyNotFound)
}

func TestBuild(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	t.Run("key from the file", func(t *testing.T) {
		ks, err := cfg.Keysets[1].Build(nil)
		require.NoError(t, err)
		assert.Equal(t, byte(0x35), ks.KIc())
		assert.Equal(t, byte(0x35), ks.KID())
	})

	t.Run("missing key is prompted", func(t *testing.T) {
		prompt := staticPrompter{"aes KID": []byte{
			0x20, 0x11, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
			0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		}}
		ks, err := cfg.Keysets[0].Build(prompt)
		require.NoError(t, err)
		assert.Equal(t, ota.AlgoAESCMAC, ks.AuthAlgorithm())
		assert.Equal(t, byte(0x12), ks.KID())
	})

	t.Run("missing key without prompt", func(t *testing.T) {
		_, err := cfg.Keysets[0].Build(nil)
		assert.Error(t, err)
	})

	t.Run("keyless algorithms", func(t *testing.T) {
		ks, err := cfg.Keysets[2].Build(nil)
		require.NoError(t, err)
		assert.Equal(t, byte(0x21), ks.KID())
	})
}

func TestTerminalPrompterFromPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("0011 2233\nzz\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var out testWriter
	p := &TerminalPrompter{In: r, Out: &out}

	key, err := p.ReadKey("test KIc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, key)
	assert.Contains(t, string(out), "test KIc (hex): ")

	_, err = p.ReadKey("test KID")
	assert.Error(t, err)
}

type testWriter []byte

func (w *testWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
