package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"idbkit/internal/idb"
	"idbkit/internal/scan"
)

// Config is the optional JSON configuration file.
type Config struct {
	Debug         bool     `json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`
	MaxInstrs     int      `json:"maxInstrs,omitempty" jsonschema:"title=Search budget,description=Instructions a search visits before giving up,minimum=0,default=9999"`
	BackwardFloor uint64   `json:"backwardFloor,omitempty" jsonschema:"title=Backward floor,description=Lower bound of a backward search that starts outside any function,default=0"`
	CallMnemonics []string `json:"callMnemonics,omitempty" jsonschema:"title=Call mnemonics,description=Mnemonics counted as calls; defaults to the processor's call instructions"`
	NoColor       bool     `json:"noColor,omitempty" jsonschema:"title=No color,description=Disable listing colors"`
}

// LoadConfig reads the config at path, or at $IDBKIT_CONFIG when path is
// empty. No file at all yields the defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = os.Getenv("IDBKIT_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.MaxInstrs < 0 {
		return cfg, fmt.Errorf("%w: maxInstrs must not be negative", scan.ErrInvalidArgument)
	}
	return cfg, nil
}

// ScanConfig merges the file settings over the scanner defaults. callMnems
// are the processor's call mnemonics, used when the file names none.
func (c Config) ScanConfig(callMnems []string) scan.Config {
	sc := scan.DefaultConfig()
	if c.MaxInstrs > 0 {
		sc.MaxInstrs = c.MaxInstrs
	}
	sc.BackwardFloor = idb.Addr(c.BackwardFloor)
	switch {
	case len(c.CallMnemonics) > 0:
		sc.CallMnemonics = c.CallMnemonics
	case len(callMnems) > 0:
		sc.CallMnemonics = callMnems
	}
	return sc
}
