package configure

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ErrInvalidConfiguration tags validation failures. The wrapped message
// enumerates every violation, not just the first.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// reservedTriggerWords are too common to act as activation tokens.
// Matching is case-insensitive and produces a violation, never a
// silent substitution.
var reservedTriggerWords = []string{
	"dog", "cat", "person", "man", "woman", "style", "art", "image",
	"photo", "picture", "face", "portrait", "character", "model",
}

// Violation describes one broken constraint.
type Violation struct {
	// Field is the TrainingConfig field name in config-file notation.
	Field string

	// Constraint names the rule, e.g. "range 1000..2000".
	Constraint string

	// Message is a human-readable explanation.
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Field, v.Message, v.Constraint)
}

// Result is the outcome of Validate: either valid (possibly with
// advisories) or a list of violations in field order.
type Result struct {
	config     TrainingConfig
	violations []Violation
	advisories []string
}

// Ok reports whether the configuration passed every hard constraint.
func (r Result) Ok() bool {
	return len(r.violations) == 0
}

// Violations returns every broken constraint, in field order.
func (r Result) Violations() []Violation {
	return r.violations
}

// Advisories returns non-fatal warnings worth surfacing to the user.
func (r Result) Advisories() []string {
	return r.advisories
}

// Config returns the validated configuration, or an
// ErrInvalidConfiguration listing all violations. A failed Result never
// yields a config, so an invalid one cannot reach the job client.
func (r Result) Config() (TrainingConfig, error) {
	if r.Ok() {
		return r.config, nil
	}
	lines := make([]string, 0, len(r.violations))
	for _, v := range r.violations {
		lines = append(lines, v.String())
	}
	return TrainingConfig{}, fmt.Errorf(
		"%w:\n  - %s", ErrInvalidConfiguration, strings.Join(lines, "\n  - "),
	)
}

// Validate checks cfg against every domain constraint and collects all
// violations before returning. It never touches the network; dataset
// URL reachability is a job-client concern.
func Validate(cfg TrainingConfig) Result {
	r := Result{config: cfg}

	r.checkDatasetURL(cfg.DatasetURL)
	r.checkDestination(cfg.Destination)
	r.checkTriggerWord(cfg.TriggerWord)

	if cfg.Steps < 1000 || 2000 < cfg.Steps {
		r.violate("steps", "range 1000..2000",
			fmt.Sprintf("got %d; the fine-tuner accepts 1000 to 2000 steps", cfg.Steps))
	}

	if cfg.BatchSize < 1 || 8 < cfg.BatchSize {
		r.violate("batch_size", "range 1..8",
			fmt.Sprintf("got %d; batch size must be between 1 and 8", cfg.BatchSize))
	} else if 4 < cfg.BatchSize {
		r.advise(fmt.Sprintf(
			"batch_size %d: values above 4 often degrade quality; 4 or less is recommended",
			cfg.BatchSize,
		))
	}

	if cfg.LearningRate <= 0 {
		r.violate("learning_rate", "positive",
			fmt.Sprintf("got %g; learning rate must be greater than 0", cfg.LearningRate))
	}

	r.checkOptimizer(cfg)

	if res, err := ParseResolution(cfg.Resolution); err != nil {
		r.violate("resolution", "width,height pair", err.Error())
	} else if res.Width < 64 || res.Height < 64 {
		r.violate("resolution", "each side >= 64",
			fmt.Sprintf("got %s; both sides must be at least 64 pixels", cfg.Resolution))
	}

	if cfg.LoraRank < 4 || 128 < cfg.LoraRank {
		r.violate("lora_rank", "range 4..128",
			fmt.Sprintf("got %d; LoRA rank must be between 4 and 128", cfg.LoraRank))
	}

	if cfg.CaptionDropoutRate < 0 || 1 < cfg.CaptionDropoutRate {
		r.violate("caption_dropout_rate", "range 0..1",
			fmt.Sprintf("got %g; dropout rate is a probability", cfg.CaptionDropoutRate))
	}

	if cfg.WandbSaveInterval < 10 {
		r.violate("wandb.save_interval", "minimum 10",
			fmt.Sprintf("got %d; save interval must be at least 10 steps", cfg.WandbSaveInterval))
	}
	if cfg.WandbSampleInterval < 10 {
		r.violate("wandb.sample_interval", "minimum 10",
			fmt.Sprintf("got %d; sample interval must be at least 10 steps", cfg.WandbSampleInterval))
	}

	return r
}

func (r *Result) violate(field, constraint, message string) {
	r.violations = append(r.violations, Violation{
		Field: field, Constraint: constraint, Message: message,
	})
}

func (r *Result) advise(message string) {
	r.advisories = append(r.advisories, message)
}

func (r *Result) checkDatasetURL(raw string) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		r.violate("dataset_url", "absolute http(s) URL",
			fmt.Sprintf("%q is not an absolute URL", raw))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		r.violate("dataset_url", "absolute http(s) URL",
			fmt.Sprintf("scheme %q is not supported; use http or https", u.Scheme))
	}
}

func (r *Result) checkDestination(dest string) {
	ns, name, ok := strings.Cut(dest, "/")
	if !ok || ns == "" || name == "" || strings.Contains(name, "/") {
		r.violate("destination", "namespace/name",
			fmt.Sprintf("%q must be exactly 'namespace/name' with both parts non-empty", dest))
		return
	}
	if strings.ContainsFunc(dest, unicode.IsSpace) {
		r.violate("destination", "no whitespace",
			fmt.Sprintf("%q must not contain whitespace", dest))
	}
}

func (r *Result) checkTriggerWord(word string) {
	trimmed := strings.TrimSpace(word)
	if len(trimmed) < 2 {
		r.violate("trigger_word", "at least 2 characters",
			fmt.Sprintf("%q is too short to be a usable activation token", word))
		return
	}
	for _, reserved := range reservedTriggerWords {
		if strings.EqualFold(trimmed, reserved) {
			r.violate("trigger_word", "not a reserved common word",
				fmt.Sprintf("%q is too common; pick a unique token like a made-up word", word))
			return
		}
	}
}

func (r *Result) checkOptimizer(cfg TrainingConfig) {
	switch cfg.Optimizer {
	case OptimizerAdaptive:
		if cfg.LearningRate > 0 && (cfg.LearningRate < 0.1 || 10.0 < cfg.LearningRate) {
			r.advise(fmt.Sprintf(
				"learning_rate %g is unusual for %s; a value around %g works best",
				cfg.LearningRate, OptimizerAdaptive, AdaptiveCanonicalRate,
			))
		}
	case OptimizerFixedRate:
		if cfg.LearningRate == AdaptiveCanonicalRate {
			r.advise(fmt.Sprintf(
				"learning_rate %g is the %s canonical value; %s typically wants ~0.0004",
				cfg.LearningRate, OptimizerAdaptive, OptimizerFixedRate,
			))
		}
	default:
		r.violate("optimizer", "one of prodigy, adamw8bit",
			fmt.Sprintf("%q is not a known optimizer", cfg.Optimizer))
	}
}
