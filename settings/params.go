package settings

import (
	"fmt"
	"math"

	apperrors "github.com/sweetpotato0/streamchat/errors"
)

// Sampling parameter ranges and defaults exposed by the UI sliders.
const (
	MinTemperature     = 0.01
	MaxTemperature     = 5.0
	DefaultTemperature = 0.7

	MinTopP     = 0.01
	MaxTopP     = 1.0
	DefaultTopP = 0.9

	// Step is the slider granularity for both parameters.
	Step = 0.01
)

// Params are the per-session generation settings.
type Params struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// DefaultParams returns the slider defaults for the given model name.
func DefaultParams(model string) Params {
	return Params{
		Model:       model,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// Clamp pulls temperature and top_p into range.
// NaN values fall back to the defaults.
func (p Params) Clamp() Params {
	p.Temperature = clamp(p.Temperature, MinTemperature, MaxTemperature, DefaultTemperature)
	p.TopP = clamp(p.TopP, MinTopP, MaxTopP, DefaultTopP)
	return p
}

// Validate rejects out-of-range values without modifying them.
func (p Params) Validate() error {
	if math.IsNaN(p.Temperature) || p.Temperature < MinTemperature || p.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be between %.2f and %.2f, got %v",
			apperrors.ErrInvalidInput, MinTemperature, MaxTemperature, p.Temperature)
	}
	if math.IsNaN(p.TopP) || p.TopP < MinTopP || p.TopP > MaxTopP {
		return fmt.Errorf("%w: top_p must be between %.2f and %.2f, got %v",
			apperrors.ErrInvalidInput, MinTopP, MaxTopP, p.TopP)
	}
	return nil
}

// Warnings returns advisory notes about the chosen temperature.
func (p Params) Warnings() []string {
	var out []string
	if p.Temperature >= 1 {
		out = append(out, "Values of 1 and above give more creative and random answers, but raise the chance of hallucinations.")
	}
	if p.Temperature < 0.1 {
		out = append(out, "Values close to 0 give more predictable answers. The recommended starting value is 0.7.")
	}
	return out
}

func clamp(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Max(lo, math.Min(hi, v))
}
