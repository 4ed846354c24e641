package configure_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/lorafab/lorafab/pkg/configure"
)

func validConfig() configure.TrainingConfig {
	cfg := configure.DefaultRegistry().Defaults()
	cfg.DatasetURL = "https://example.com/dataset.zip"
	cfg.Destination = "me/my-model"
	cfg.TriggerWord = "Z3ph-9f"
	return cfg
}

func TestValidate(t *testing.T) {
	type When struct {
		mutate func(*configure.TrainingConfig)
	}
	type Then struct {
		violatedFields []string
		advisories     int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			cfg := validConfig()
			if when.mutate != nil {
				when.mutate(&cfg)
			}
			result := configure.Validate(cfg)

			violated := []string{}
			for _, v := range result.Violations() {
				violated = append(violated, v.Field)
			}
			if len(violated) != len(then.violatedFields) {
				t.Fatalf(
					"wrong violations: (actual, expected) = (%v, %v)",
					result.Violations(), then.violatedFields,
				)
			}
			for i, field := range then.violatedFields {
				if violated[i] != field {
					t.Errorf(
						"wrong violations: (actual, expected) = (%v, %v)",
						violated, then.violatedFields,
					)
					break
				}
			}

			if len(result.Advisories()) != then.advisories {
				t.Errorf(
					"wrong advisories: (actual, expected) = (%v, %d)",
					result.Advisories(), then.advisories,
				)
			}

			if result.Ok() != (len(then.violatedFields) == 0) {
				t.Errorf("Ok() = %t does not match violations %v", result.Ok(), violated)
			}

			_, err := result.Config()
			if len(then.violatedFields) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			} else {
				if !errors.Is(err, configure.ErrInvalidConfiguration) {
					t.Errorf("error should be ErrInvalidConfiguration: %v", err)
				}
			}
		}
	}

	t.Run("when given a valid config, it passes", theory(
		When{},
		Then{},
	))

	t.Run("when steps are out of range, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.Steps = 999 }},
		Then{violatedFields: []string{"steps"}},
	))

	t.Run("when batch size is 9, it is violated without advisory", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.BatchSize = 9 }},
		Then{violatedFields: []string{"batch_size"}},
	))

	t.Run("when batch size is 5, it passes with an advisory", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.BatchSize = 5 }},
		Then{advisories: 1},
	))

	t.Run("when the trigger word is reserved, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.TriggerWord = "style" }},
		Then{violatedFields: []string{"trigger_word"}},
	))

	t.Run("when the trigger word is reserved in another case, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.TriggerWord = "Style" }},
		Then{violatedFields: []string{"trigger_word"}},
	))

	t.Run("when the trigger word is one character, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.TriggerWord = "Z" }},
		Then{violatedFields: []string{"trigger_word"}},
	))

	t.Run("when the destination misses the namespace, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.Destination = "my-model" }},
		Then{violatedFields: []string{"destination"}},
	))

	t.Run("when the dataset URL is relative, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.DatasetURL = "dataset.zip" }},
		Then{violatedFields: []string{"dataset_url"}},
	))

	t.Run("when the dataset URL scheme is ftp, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.DatasetURL = "ftp://example.com/d.zip" }},
		Then{violatedFields: []string{"dataset_url"}},
	))

	t.Run("when the optimizer is unknown, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.Optimizer = "sgd" }},
		Then{violatedFields: []string{"optimizer"}},
	))

	t.Run("when the resolution is a single number, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.Resolution = "768" }},
		Then{violatedFields: []string{"resolution"}},
	))

	t.Run("when a resolution side is below 64, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.Resolution = "32,1024" }},
		Then{violatedFields: []string{"resolution"}},
	))

	t.Run("when the LoRA rank is out of range, it is violated", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.LoraRank = 256 }},
		Then{violatedFields: []string{"lora_rank"}},
	))

	t.Run("when the fixed-rate optimizer keeps the adaptive rate, it passes with an advisory", theory(
		When{mutate: func(c *configure.TrainingConfig) {
			c.Optimizer = configure.OptimizerFixedRate
			c.LearningRate = configure.AdaptiveCanonicalRate
		}},
		Then{advisories: 1},
	))

	t.Run("when the adaptive optimizer gets a tiny rate, it passes with an advisory", theory(
		When{mutate: func(c *configure.TrainingConfig) { c.LearningRate = 0.0004 }},
		Then{advisories: 1},
	))

	t.Run("when multiple constraints break, every violation is reported", theory(
		When{mutate: func(c *configure.TrainingConfig) {
			c.DatasetURL = ""
			c.Destination = "broken"
			c.TriggerWord = "a"
			c.Steps = 10
			c.BatchSize = 0
			c.LearningRate = 0
			c.Optimizer = "sgd"
			c.Resolution = "x,y"
			c.LoraRank = 1
		}},
		Then{violatedFields: []string{
			"dataset_url", "destination", "trigger_word",
			"steps", "batch_size", "learning_rate", "optimizer",
			"resolution", "lora_rank",
		}},
	))
}

func TestResult_Config(t *testing.T) {
	t.Run("the error message enumerates every violation", func(t *testing.T) {
		cfg := validConfig()
		cfg.Steps = 10
		cfg.BatchSize = 100

		_, err := configure.Validate(cfg).Config()
		if err == nil {
			t.Fatal("error should be returned")
		}
		for _, field := range []string{"steps", "batch_size"} {
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error should mention %s: %v", field, err)
			}
		}
	})
}
