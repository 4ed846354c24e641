package trainings

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a training job status as the provider reports it.
//
// The engine never assigns Status locally. It only carries values
// fetched from the provider.
type Status string

const (
	Queued     Status = "queued"
	Starting   Status = "starting"
	Processing Status = "processing"
	Succeeded  Status = "succeeded"
	Failed     Status = "failed"
	Canceled   Status = "canceled"
)

// KnownStatuses lists every status value the provider can report.
func KnownStatuses() []Status {
	return []Status{Queued, Starting, Processing, Succeeded, Failed, Canceled}
}

// Terminal returns true if no further transition can happen.
func (s Status) Terminal() bool {
	switch s {
	case Succeeded, Failed, Canceled:
		return true
	}
	return false
}

// Input is the parameter object sent to the fine-tuner version.
//
// Field names follow the provider's schema for the SD3.5-Large fine-tuner.
type Input struct {
	InputImages         string  `json:"input_images"`
	TriggerWord         string  `json:"trigger_word"`
	Steps               int     `json:"steps"`
	LoraRank            int     `json:"lora_rank"`
	Optimizer           string  `json:"optimizer"`
	BatchSize           int     `json:"batch_size"`
	Resolution          string  `json:"resolution"`
	LearningRate        float64 `json:"learning_rate"`
	WandbProject        string  `json:"wandb_project"`
	WandbSaveInterval   int     `json:"wandb_save_interval"`
	WandbSampleInterval int     `json:"wandb_sample_interval"`
	CaptionDropoutRate  float64 `json:"caption_dropout_rate"`
	CacheLatentsToDisk  bool    `json:"cache_latents_to_disk"`
}

func (i Input) Equal(o Input) bool {
	return i == o
}

// Output is the output reference of a succeeded training.
//
// Some fine-tuner versions report a bare URL string, others an object
// with a "weights" member. Both decode into Weights.
type Output struct {
	Weights string `json:"weights,omitempty"`

	// Version is the destination model version created by the training,
	// when the provider reports one.
	Version string `json:"version,omitempty"`
}

func (out *Output) UnmarshalJSON(b []byte) error {
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		out.Weights = plain
		return nil
	}

	type output Output // mask UnmarshalJSON
	var obj output
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("unexpected training output shape: %w", err)
	}
	*out = Output(obj)
	return nil
}

func (out Output) Equal(o Output) bool {
	return out == o
}

// Summary is the part of a training the list endpoint reports.
type Summary struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Destination string     `json:"destination,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s Summary) Equal(o Summary) bool {
	completedEq := (s.CompletedAt == nil && o.CompletedAt == nil) ||
		(s.CompletedAt != nil && o.CompletedAt != nil && s.CompletedAt.Equal(*o.CompletedAt))

	return s.ID == o.ID &&
		s.Status == o.Status &&
		s.Destination == o.Destination &&
		s.CreatedAt.Equal(o.CreatedAt) &&
		completedEq
}

// Detail is a training job as the provider reports it.
type Detail struct {
	Summary

	StartedAt *time.Time `json:"started_at,omitempty"`
	Input     Input      `json:"input"`

	// Output is set only when Status is Succeeded.
	Output *Output `json:"output,omitempty"`

	// Error is set only when Status is Failed.
	Error string `json:"error,omitempty"`
}

func (d Detail) Equal(o Detail) bool {
	startedEq := (d.StartedAt == nil && o.StartedAt == nil) ||
		(d.StartedAt != nil && o.StartedAt != nil && d.StartedAt.Equal(*o.StartedAt))
	outputEq := (d.Output == nil && o.Output == nil) ||
		(d.Output != nil && o.Output != nil && d.Output.Equal(*o.Output))

	return d.Summary.Equal(o.Summary) &&
		startedEq &&
		d.Input.Equal(o.Input) &&
		outputEq &&
		d.Error == o.Error
}

// CreateRequest is the body of the training creation call.
type CreateRequest struct {
	Destination string `json:"destination"`
	Input       Input  `json:"input"`
}

// Page is one page of the training list endpoint.
type Page struct {
	Results []Summary `json:"results"`
	Next    string    `json:"next,omitempty"`
}
