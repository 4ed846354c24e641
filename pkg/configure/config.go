package configure

import (
	"fmt"
	"strconv"
	"strings"
)

// Optimizer selects the training optimizer of the remote fine-tuner.
type Optimizer string

const (
	// OptimizerAdaptive self-tunes its effective step size.
	// Its canonical learning rate is AdaptiveCanonicalRate.
	OptimizerAdaptive Optimizer = "prodigy"

	// OptimizerFixedRate applies the configured learning rate as given.
	OptimizerFixedRate Optimizer = "adamw8bit"
)

// AdaptiveCanonicalRate is the learning rate the adaptive optimizer is
// designed around. A fixed-rate run keeping this value is almost always
// a configuration left over from an adaptive preset.
const AdaptiveCanonicalRate = 1.0

// Telemetry is the auxiliary reporting block of a training run.
type Telemetry struct {
	WandbProject        string
	WandbSaveInterval   int
	WandbSampleInterval int
	CaptionDropoutRate  float64
	CacheLatentsToDisk  bool
}

// TrainingConfig is a fully resolved, not yet validated parameter set.
//
// Resolve guarantees every field holds either an explicit value, a
// preset-derived value or a built-in default. Ownership stays with the
// invocation that resolved it; nothing here is shared between jobs.
type TrainingConfig struct {
	DatasetURL  string
	Destination string
	TriggerWord string

	Steps        int
	BatchSize    int
	Optimizer    Optimizer
	LearningRate float64

	// Resolution is the wire form "width,height". It is merged and sent
	// atomically; ParseResolution gives the integer pair.
	Resolution string

	LoraRank int

	Telemetry
}

// Namespace returns the part of Destination before the slash, or "".
func (c TrainingConfig) Namespace() string {
	ns, _, ok := strings.Cut(c.Destination, "/")
	if !ok {
		return ""
	}
	return ns
}

// ModelName returns the part of Destination after the slash,
// or the whole Destination if no slash is present.
func (c TrainingConfig) ModelName() string {
	_, name, ok := strings.Cut(c.Destination, "/")
	if !ok {
		return c.Destination
	}
	return name
}

// Resolution is an ordered pair of pixel sizes.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%d,%d", r.Width, r.Height)
}

// ParseResolution parses the wire form "width,height".
func ParseResolution(s string) (Resolution, error) {
	first, second, ok := strings.Cut(s, ",")
	if !ok {
		return Resolution{}, fmt.Errorf("resolution %q: want two comma-separated integers", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(second))
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: sizes must be positive", s)
	}
	return Resolution{Width: w, Height: h}, nil
}

// Partial is a subset of TrainingConfig fields from one configuration
// source. Nil means the source does not define the field.
type Partial struct {
	DatasetURL  *string
	Destination *string
	TriggerWord *string

	Steps        *int
	BatchSize    *int
	Optimizer    *Optimizer
	LearningRate *float64
	Resolution   *string
	LoraRank     *int

	WandbProject        *string
	WandbSaveInterval   *int
	WandbSampleInterval *int
	CaptionDropoutRate  *float64
	CacheLatentsToDisk  *bool
}

// overlay returns p with every field that higher defines replaced.
func (p Partial) overlay(higher Partial) Partial {
	out := p
	if higher.DatasetURL != nil {
		out.DatasetURL = higher.DatasetURL
	}
	if higher.Destination != nil {
		out.Destination = higher.Destination
	}
	if higher.TriggerWord != nil {
		out.TriggerWord = higher.TriggerWord
	}
	if higher.Steps != nil {
		out.Steps = higher.Steps
	}
	if higher.BatchSize != nil {
		out.BatchSize = higher.BatchSize
	}
	if higher.Optimizer != nil {
		out.Optimizer = higher.Optimizer
	}
	if higher.LearningRate != nil {
		out.LearningRate = higher.LearningRate
	}
	if higher.Resolution != nil {
		out.Resolution = higher.Resolution
	}
	if higher.LoraRank != nil {
		out.LoraRank = higher.LoraRank
	}
	if higher.WandbProject != nil {
		out.WandbProject = higher.WandbProject
	}
	if higher.WandbSaveInterval != nil {
		out.WandbSaveInterval = higher.WandbSaveInterval
	}
	if higher.WandbSampleInterval != nil {
		out.WandbSampleInterval = higher.WandbSampleInterval
	}
	if higher.CaptionDropoutRate != nil {
		out.CaptionDropoutRate = higher.CaptionDropoutRate
	}
	if higher.CacheLatentsToDisk != nil {
		out.CacheLatentsToDisk = higher.CacheLatentsToDisk
	}
	return out
}

// applyTo writes every defined field of p onto cfg.
func (p Partial) applyTo(cfg TrainingConfig) TrainingConfig {
	if p.DatasetURL != nil {
		cfg.DatasetURL = *p.DatasetURL
	}
	if p.Destination != nil {
		cfg.Destination = *p.Destination
	}
	if p.TriggerWord != nil {
		cfg.TriggerWord = *p.TriggerWord
	}
	if p.Steps != nil {
		cfg.Steps = *p.Steps
	}
	if p.BatchSize != nil {
		cfg.BatchSize = *p.BatchSize
	}
	if p.Optimizer != nil {
		cfg.Optimizer = *p.Optimizer
	}
	if p.LearningRate != nil {
		cfg.LearningRate = *p.LearningRate
	}
	if p.Resolution != nil {
		cfg.Resolution = *p.Resolution
	}
	if p.LoraRank != nil {
		cfg.LoraRank = *p.LoraRank
	}
	if p.WandbProject != nil {
		cfg.WandbProject = *p.WandbProject
	}
	if p.WandbSaveInterval != nil {
		cfg.WandbSaveInterval = *p.WandbSaveInterval
	}
	if p.WandbSampleInterval != nil {
		cfg.WandbSampleInterval = *p.WandbSampleInterval
	}
	if p.CaptionDropoutRate != nil {
		cfg.CaptionDropoutRate = *p.CaptionDropoutRate
	}
	if p.CacheLatentsToDisk != nil {
		cfg.CacheLatentsToDisk = *p.CacheLatentsToDisk
	}
	return cfg
}
