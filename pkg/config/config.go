// Package config loads the YAML configuration of the command line tool:
// reader and card settings, the default security policy and the keysets.
//
//	reader: 0
//	class: gsm
//	originator: "+33612345678"
//	tar: B00010
//	spi:
//	  counter: counter_must_be_higher
//	  ciphering: true
//	  integrity: cc
//	  por: por_required
//	  por_integrity: cc
//	  por_ciphered: true
//	keysets:
//	  - name: test-card
//	    iccid: "8901410321005792501"
//	    kic: {algorithm: aes_cbc, index: 1, key: 200102030405060708090A0B0C0D0E0F}
//	    kid: {algorithm: aes_cmac, index: 1}   # key prompted on the terminal
//
// Every setting can be overridden from the environment, e.g. SIMOTA_READER=1.
package config

import (
	"encoding/hex"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gregLibert/simota/pkg/ota"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "SIMOTA"

// Config is the root of the configuration file.
type Config struct {
	Reader     int      `mapstructure:"reader" validate:"gte=0"`
	Class      string   `mapstructure:"class" validate:"required"`
	Originator string   `mapstructure:"originator" validate:"required"`
	SMSC       string   `mapstructure:"smsc"`
	TAR        string   `mapstructure:"tar" validate:"required,len=6,hexadecimal"`
	SPI        SPI      `mapstructure:"spi"`
	Keysets    []Keyset `mapstructure:"keysets" validate:"unique=Name,dive"`
}

// SPI is the security policy spelled with field names.
type SPI struct {
	Counter      string `mapstructure:"counter" validate:"required"`
	Ciphering    bool   `mapstructure:"ciphering"`
	Integrity    string `mapstructure:"integrity" validate:"required"`
	PoR          string `mapstructure:"por" validate:"required"`
	PoRIntegrity string `mapstructure:"por_integrity" validate:"required"`
	PoRCiphered  bool   `mapstructure:"por_ciphered"`
	PoRInSubmit  bool   `mapstructure:"por_in_submit"`
}

// Key describes one of the two keys of a keyset.
type Key struct {
	Algorithm string `mapstructure:"algorithm" validate:"required"`
	Index     uint8  `mapstructure:"index" validate:"lte=15"`
	// Key is the key value in hex. It is prompted for when empty and the
	// algorithm needs one.
	Key string `mapstructure:"key" validate:"omitempty,hexadecimal"`
}

// Keyset is a named pair of keys, optionally bound to a card.
type Keyset struct {
	Name  string `mapstructure:"name" validate:"required"`
	ICCID string `mapstructure:"iccid" validate:"omitempty,hexadecimal,min=18,max=20"`
	KIc   Key    `mapstructure:"kic"`
	KID   Key    `mapstructure:"kid"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reader", 0)
	v.SetDefault("class", "gsm")
	v.SetDefault("spi.counter", "counter_must_be_higher")
	v.SetDefault("spi.integrity", "cc")
	v.SetDefault("spi.por", "por_required")
	v.SetDefault("spi.por_integrity", "cc")
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config parse error")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct constraints and the protocol names.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	for i := range c.Keysets {
		ks := &c.Keysets[i]
		for _, k := range []Key{ks.KIc, ks.KID} {
			if _, err := ota.ParseAlgorithmID(k.Algorithm); err != nil {
				return errors.Wrapf(err, "keyset %s", ks.Name)
			}
		}
	}
	return nil
}

// Policy converts the SPI section.
func (c *Config) Policy() (ota.SPI, error) {
	var (
		spi ota.SPI
		err error
	)
	if spi.Counter, err = ota.ParseCounterMode(c.SPI.Counter); err != nil {
		return ota.SPI{}, err
	}
	if spi.Integrity, err = ota.ParseIntegrity(c.SPI.Integrity); err != nil {
		return ota.SPI{}, err
	}
	if spi.PoR, err = ota.ParsePoRPolicy(c.SPI.PoR); err != nil {
		return ota.SPI{}, err
	}
	if spi.PoRIntegrity, err = ota.ParseIntegrity(c.SPI.PoRIntegrity); err != nil {
		return ota.SPI{}, err
	}
	spi.Ciphering = c.SPI.Ciphering
	spi.PoRCiphered = c.SPI.PoRCiphered
	spi.PoRInSubmit = c.SPI.PoRInSubmit
	return spi, spi.Validate()
}

// Target returns the configured TAR.
func (c *Config) Target() (ota.TAR, error) {
	return ota.ParseTAR(c.TAR)
}

// Lookup finds a keyset by name or by the ICCID of the card it belongs to.
func (c *Config) Lookup(nameOrICCID string) (*Keyset, error) {
	id := normalizeICCID(nameOrICCID)
	for i := range c.Keysets {
		ks := &c.Keysets[i]
		if ks.Name == nameOrICCID || (ks.ICCID != "" && normalizeICCID(ks.ICCID) == id) {
			return ks, nil
		}
	}
	return nil, errors.Wrapf(ota.ErrKeyNotFound, "no keyset %q", nameOrICCID)
}

func normalizeICCID(s string) string {
	return strings.TrimRight(strings.ToUpper(strings.TrimSpace(s)), "F")
}

// Build decodes the key material into an ota.Keyset, asking prompt for the
// keys left empty in the file. prompt may be nil when every key is present.
func (k *Keyset) Build(prompt Prompter) (*ota.Keyset, error) {
	kic, kicAlgo, err := k.KIc.material(k.Name+" KIc", prompt)
	if err != nil {
		return nil, err
	}
	kid, kidAlgo, err := k.KID.material(k.Name+" KID", prompt)
	if err != nil {
		return nil, err
	}
	ks, err := ota.NewKeyset(kicAlgo, k.KIc.Index, kic, kidAlgo, k.KID.Index, kid)
	if err != nil {
		return nil, errors.Wrapf(err, "keyset %s", k.Name)
	}
	return ks, nil
}

func (k Key) material(label string, prompt Prompter) ([]byte, ota.AlgorithmID, error) {
	id, err := ota.ParseAlgorithmID(k.Algorithm)
	if err != nil {
		return nil, 0, err
	}
	if k.Key != "" {
		key, err := hex.DecodeString(k.Key)
		return key, id, errors.Wrapf(err, "%s", label)
	}

	algo, err := ota.Resolve(id)
	if err != nil {
		return nil, 0, err
	}
	if algo.ValidKeySize(0) {
		return nil, id, nil
	}
	if prompt == nil {
		return nil, 0, errors.Errorf("%s: no key in the configuration", label)
	}
	key, err := prompt.ReadKey(label)
	return key, id, err
}
