// Package replacement scores and ranks candidate products as replacements
// for an original chemical product.
package replacement

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/chem-advisor/internal/config"
)

// DefaultWeights returns the standard overall-score weights (sum = 1).
func DefaultWeights() config.ReplacementWeights {
	return config.ReplacementWeights{
		Chemical:       0.25,
		Functional:     0.25,
		Performance:    0.20,
		Availability:   0.15,
		Cost:           0.10,
		Sustainability: 0.05,
	}
}

// DefaultConfig returns a config.ReplacementConfig with standard defaults.
func DefaultConfig() config.ReplacementConfig {
	return config.ReplacementConfig{
		Weights:        DefaultWeights(),
		MaxConcurrency: 8,
		MaxResults:     20,
		ReasonExclusions: map[string][]string{
			"regulatory": {"formaldehyde", "nonylphenol", "bisphenol a", "phthalate"},
		},
	}
}

// WeightSum returns the sum of all sub-score weights.
func WeightSum(w config.ReplacementWeights) float64 {
	return w.Chemical + w.Functional + w.Performance + w.Availability + w.Cost + w.Sustainability
}

// ValidateConfig checks that a ReplacementConfig is internally consistent.
func ValidateConfig(c config.ReplacementConfig) error {
	var errs []string

	weights := []struct {
		name string
		w    float64
	}{
		{"chemical", c.Weights.Chemical},
		{"functional", c.Weights.Functional},
		{"performance", c.Weights.Performance},
		{"availability", c.Weights.Availability},
		{"cost", c.Weights.Cost},
		{"sustainability", c.Weights.Sustainability},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", w.name))
		}
	}

	sum := WeightSum(c.Weights)
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	if math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.2f", sum))
	}

	if c.MaxConcurrency < 0 {
		errs = append(errs, "max_concurrency must be >= 0")
	}
	if c.MaxResults < 0 {
		errs = append(errs, "max_results must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("replacement: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadProfile reads a scoring profile from a YAML file. Values missing from
// the file keep the defaults. The file has a top-level "replacement" key.
func LoadProfile(path string) (config.ReplacementConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.ReplacementConfig{}, eris.Wrapf(err, "replacement: read profile %s", path)
	}

	wrapper := struct {
		Replacement config.ReplacementConfig `yaml:"replacement"`
	}{Replacement: DefaultConfig()}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return config.ReplacementConfig{}, eris.Wrap(err, "replacement: parse profile")
	}

	cfg := wrapper.Replacement
	if err := ValidateConfig(cfg); err != nil {
		return config.ReplacementConfig{}, err
	}
	return cfg, nil
}
