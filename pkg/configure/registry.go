package configure

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lorafab/lorafab/pkg/utils/pointer"
)

// ErrConfigSource is the category of errors caused by a configuration
// source itself: an unknown preset name or an unparseable config file.
var ErrConfigSource = errors.New("configuration source error")

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = fmt.Errorf("%w: unknown preset", ErrConfigSource)

// Registry is an immutable catalog of parameter presets and built-in
// defaults. Build it once at process start and pass it explicitly;
// it is safe for concurrent reads.
type Registry struct {
	defaults TrainingConfig
	presets  map[string]Partial
}

// NewRegistry builds a Registry over the given defaults and presets.
//
// Presets never carry user-supplied identity fields (dataset URL,
// destination, trigger word); any such values are discarded here so the
// invariant holds by construction.
func NewRegistry(defaults TrainingConfig, presets map[string]Partial) Registry {
	own := make(map[string]Partial, len(presets))
	for name, p := range presets {
		p.DatasetURL = nil
		p.Destination = nil
		p.TriggerWord = nil
		own[name] = p
	}
	return Registry{defaults: defaults, presets: own}
}

// Defaults returns the built-in default configuration.
func (r Registry) Defaults() TrainingConfig {
	return r.defaults
}

// Preset returns the named preset, or ErrUnknownPreset.
func (r Registry) Preset(name string) (Partial, error) {
	p, ok := r.presets[name]
	if !ok {
		return Partial{}, fmt.Errorf(
			"%w: %q (available: %v)", ErrUnknownPreset, name, r.PresetNames(),
		)
	}
	return p, nil
}

// PresetNames returns the registered preset names, sorted.
func (r Registry) PresetNames() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns the built-in presets of the SD3.5-Large
// fine-tuner and their surrounding defaults.
func DefaultRegistry() Registry {
	defaults := TrainingConfig{
		Steps:        1500,
		BatchSize:    4,
		Optimizer:    OptimizerAdaptive,
		LearningRate: 1.0,
		Resolution:   "768,1024",
		LoraRank:     16,
		Telemetry: Telemetry{
			WandbProject:        "sd3.5_train_replicate",
			WandbSaveInterval:   100,
			WandbSampleInterval: 100,
			CaptionDropoutRate:  0.05,
			CacheLatentsToDisk:  false,
		},
	}

	presets := map[string]Partial{
		// conservative batch size for first-time runs
		"beginner": {
			Optimizer:    pointer.Ref(OptimizerAdaptive),
			LearningRate: pointer.Ref(1.0),
			Steps:        pointer.Ref(1500),
			BatchSize:    pointer.Ref(1),
			Resolution:   pointer.Ref("768,1024"),
			LoraRank:     pointer.Ref(16),
		},
		"experienced": {
			Optimizer:    pointer.Ref(OptimizerAdaptive),
			LearningRate: pointer.Ref(1.0),
			Steps:        pointer.Ref(1500),
			BatchSize:    pointer.Ref(4),
			Resolution:   pointer.Ref("768,1024"),
			LoraRank:     pointer.Ref(16),
		},
		// fewer steps at lower resolution, fixed-rate optimizer
		"fast": {
			Optimizer:    pointer.Ref(OptimizerFixedRate),
			LearningRate: pointer.Ref(0.0004),
			Steps:        pointer.Ref(1000),
			BatchSize:    pointer.Ref(4),
			Resolution:   pointer.Ref("512,768"),
			LoraRank:     pointer.Ref(16),
		},
	}

	return NewRegistry(defaults, presets)
}
