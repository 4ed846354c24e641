package configure

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk layout of a training config file.
// Top-level identity fields, then nested groups.
type fileFormat struct {
	DatasetURL  *string `yaml:"dataset_url"`
	Destination *string `yaml:"destination"`
	TriggerWord *string `yaml:"trigger_word"`

	Training struct {
		Steps        *int       `yaml:"steps"`
		BatchSize    *int       `yaml:"batch_size"`
		Optimizer    *Optimizer `yaml:"optimizer"`
		LearningRate *float64   `yaml:"learning_rate"`
		Resolution   *string    `yaml:"resolution"`
		LoraRank     *int       `yaml:"lora_rank"`
	} `yaml:"training"`

	Wandb struct {
		Project        *string `yaml:"project"`
		SaveInterval   *int    `yaml:"save_interval"`
		SampleInterval *int    `yaml:"sample_interval"`
	} `yaml:"wandb"`

	Advanced struct {
		CaptionDropoutRate *float64 `yaml:"caption_dropout_rate"`
		CacheLatentsToDisk *bool    `yaml:"cache_latents_to_disk"`
	} `yaml:"advanced"`
}

// LoadConfigFile reads a training config file. Fields the file does not
// set stay nil in the returned Partial. Parse failures are
// ErrConfigSource errors.
func LoadConfigFile(path string) (*Partial, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %s", ErrConfigSource, path, err)
	}
	p, err := ParseConfig(buf)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return p, nil
}

// ParseConfig parses config file content.
func ParseConfig(buf []byte) (*Partial, error) {
	var f fileFormat
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigSource, err)
	}

	return &Partial{
		DatasetURL:  f.DatasetURL,
		Destination: f.Destination,
		TriggerWord: f.TriggerWord,

		Steps:        f.Training.Steps,
		BatchSize:    f.Training.BatchSize,
		Optimizer:    f.Training.Optimizer,
		LearningRate: f.Training.LearningRate,
		Resolution:   f.Training.Resolution,
		LoraRank:     f.Training.LoraRank,

		WandbProject:        f.Wandb.Project,
		WandbSaveInterval:   f.Wandb.SaveInterval,
		WandbSampleInterval: f.Wandb.SampleInterval,
		CaptionDropoutRate:  f.Advanced.CaptionDropoutRate,
		CacheLatentsToDisk:  f.Advanced.CacheLatentsToDisk,
	}, nil
}

// templateFormat mirrors fileFormat with concrete values, so a written
// template carries every field explicitly.
type templateFormat struct {
	DatasetURL  string `yaml:"dataset_url"`
	Destination string `yaml:"destination"`
	TriggerWord string `yaml:"trigger_word"`

	Training struct {
		Steps        int       `yaml:"steps"`
		BatchSize    int       `yaml:"batch_size"`
		Optimizer    Optimizer `yaml:"optimizer"`
		LearningRate float64   `yaml:"learning_rate"`
		Resolution   string    `yaml:"resolution"`
		LoraRank     int       `yaml:"lora_rank"`
	} `yaml:"training"`

	Wandb struct {
		Project        string `yaml:"project"`
		SaveInterval   int    `yaml:"save_interval"`
		SampleInterval int    `yaml:"sample_interval"`
	} `yaml:"wandb"`

	Advanced struct {
		CaptionDropoutRate float64 `yaml:"caption_dropout_rate"`
		CacheLatentsToDisk bool    `yaml:"cache_latents_to_disk"`
	} `yaml:"advanced"`
}

// Placeholder values for the user-supplied fields of a template.
const (
	PlaceholderDatasetURL  = "https://example.com/my-dataset.zip"
	PlaceholderDestination = "username/my-lora-model"
	PlaceholderTriggerWord = "MYTOK"
)

// WriteTemplate emits a config file populated from the named preset
// (over the registry defaults) plus placeholders for the fields a user
// must fill in. Loading the result back and resolving it reproduces the
// preset values exactly.
func WriteTemplate(w io.Writer, reg Registry, presetName string) error {
	cfg, err := Resolve(reg, Partial{}, nil, presetName)
	if err != nil {
		return err
	}

	var t templateFormat
	t.DatasetURL = PlaceholderDatasetURL
	t.Destination = PlaceholderDestination
	t.TriggerWord = PlaceholderTriggerWord

	t.Training.Steps = cfg.Steps
	t.Training.BatchSize = cfg.BatchSize
	t.Training.Optimizer = cfg.Optimizer
	t.Training.LearningRate = cfg.LearningRate
	t.Training.Resolution = cfg.Resolution
	t.Training.LoraRank = cfg.LoraRank

	t.Wandb.Project = cfg.WandbProject
	t.Wandb.SaveInterval = cfg.WandbSaveInterval
	t.Wandb.SampleInterval = cfg.WandbSampleInterval

	t.Advanced.CaptionDropoutRate = cfg.CaptionDropoutRate
	t.Advanced.CacheLatentsToDisk = cfg.CacheLatentsToDisk

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return err
	}
	return enc.Close()
}
