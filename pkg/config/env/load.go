package env

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/jocax/qollective-sub002/pkg/config"
)

// LoadOptions controls Load's layering (SPEC_FULL.md §4.9, §6.4):
// defaults < Preset < FilePath < environment.
type LoadOptions struct {
	Preset   config.Preset
	FilePath string
	Strict   bool
}

// Load builds a Config by layering a preset, an optional TOML/YAML file,
// and the QOLLECTIVE_ environment overlay. The overlay itself is resolved
// through viper's env binding (SetEnvPrefix/AutomaticEnv) rather than
// os.LookupEnv directly, matching kagent's CLI config wiring.
func Load(opts LoadOptions) (*config.Config, config.ValidationResult, error) {
	cfg := config.Default()
	if opts.Preset != "" {
		cfg = config.FromPreset(opts.Preset)
	}

	if opts.FilePath != "" {
		if err := config.MergeFile(cfg, opts.FilePath); err != nil {
			return nil, config.ValidationResult{}, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(strings.TrimSuffix(Prefix, "_"))
	v.AutomaticEnv()

	lookup := func(key string) (string, bool) {
		viperKey := strings.ToLower(strings.TrimPrefix(key, Prefix))
		if !v.IsSet(viperKey) {
			return "", false
		}
		return v.GetString(viperKey), true
	}

	if err := Overlay(cfg, lookup); err != nil {
		return nil, config.ValidationResult{}, err
	}

	result := config.Validate(cfg, opts.Strict)
	if opts.Strict && !result.OK() {
		var merr *multierror.Error
		for _, e := range result.Errors {
			merr = multierror.Append(merr, errors.New(e))
		}
		return cfg, result, merr.ErrorOrNil()
	}
	return cfg, result, nil
}
