package cli

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/gregLibert/simota/pkg/config"
	"github.com/gregLibert/simota/pkg/ota"
	"github.com/pkg/errors"
)

// buildKeyset resolves a keyset by name or ICCID. With no name, a file
// holding a single keyset selects it.
func buildKeyset(cfg *config.Config, nameOrICCID string) (*ota.Keyset, error) {
	if nameOrICCID == "" {
		if len(cfg.Keysets) != 1 {
			return nil, errors.Wrap(ota.ErrKeyNotFound, "no keyset selected, use --keyset")
		}
		nameOrICCID = cfg.Keysets[0].Name
	}
	entry, err := cfg.Lookup(nameOrICCID)
	if err != nil {
		return nil, err
	}
	ks, err := entry.Build(prompter)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("keyset", entry.Name).Stringer("kic", ks.CryptAlgorithm()).Stringer("kid", ks.AuthAlgorithm()).Msg("keyset ready")
	return ks, nil
}

// parseHexArgs concatenates hex arguments, ignoring spaces.
func parseHexArgs(args []string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		b, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid hex %q", arg)
		}
		out = append(out, b...)
	}
	return out, nil
}

// parseCounter reads a counter given in decimal or, with 0x, in hex.
func parseCounter(s string) (ota.Counter, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return ota.Counter{}, errors.Wrapf(err, "invalid counter %q", s)
	}
	return ota.NewCounter(v)
}
