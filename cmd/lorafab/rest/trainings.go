package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/configure"
)

// InputFrom maps a validated configuration onto the fine-tuner's
// parameter schema.
func InputFrom(cfg configure.TrainingConfig) trainings.Input {
	return trainings.Input{
		InputImages:         cfg.DatasetURL,
		TriggerWord:         cfg.TriggerWord,
		Steps:               cfg.Steps,
		LoraRank:            cfg.LoraRank,
		Optimizer:           string(cfg.Optimizer),
		BatchSize:           cfg.BatchSize,
		Resolution:          cfg.Resolution,
		LearningRate:        cfg.LearningRate,
		WandbProject:        cfg.WandbProject,
		WandbSaveInterval:   cfg.WandbSaveInterval,
		WandbSampleInterval: cfg.WandbSampleInterval,
		CaptionDropoutRate:  cfg.CaptionDropoutRate,
		CacheLatentsToDisk:  cfg.CacheLatentsToDisk,
	}
}

func (c *client) CreateTraining(ctx context.Context, cfg configure.TrainingConfig) (trainings.Detail, error) {
	body, err := json.Marshal(trainings.CreateRequest{
		Destination: cfg.Destination,
		Input:       InputFrom(cfg),
	})
	if err != nil {
		return trainings.Detail{}, fmt.Errorf("%w: %s", ErrPermanent, err)
	}

	var detail trainings.Detail
	if err := c.doJSON(
		ctx, http.MethodPost,
		c.apipath("models", c.version.Owner, c.version.Name, "versions", c.version.ID, "trainings"),
		bytes.NewReader(body),
		func(resp *http.Response) error {
			return unmarshalJsonResponse(
				resp, &detail,
				MessageFor{
					Status4xx: fmt.Sprintf("training request for %s was rejected", cfg.Destination),
					Status5xx: "provider failed to accept the training request",
				},
			)
		},
	); err != nil {
		return trainings.Detail{}, err
	}
	return detail, nil
}

func (c *client) GetTraining(ctx context.Context, trainingID string) (trainings.Detail, error) {
	var detail trainings.Detail
	if err := c.doJSON(
		ctx, http.MethodGet, c.apipath("trainings", trainingID), nil,
		func(resp *http.Response) error {
			return unmarshalJsonResponse(
				resp, &detail,
				MessageFor{
					Status4xx: fmt.Sprintf("training %s is not found", trainingID),
					Status5xx: "provider failed to report the training",
				},
			)
		},
	); err != nil {
		return trainings.Detail{}, err
	}
	return detail, nil
}

func (c *client) ListTrainings(ctx context.Context, limit int) ([]trainings.Summary, error) {
	found := make([]trainings.Summary, 0, max(limit, 0))

	next := c.apipath("trainings")
	for next != "" {
		var page trainings.Page
		if err := c.doJSON(
			ctx, http.MethodGet, next, nil,
			func(resp *http.Response) error {
				return unmarshalJsonResponse(
					resp, &page,
					MessageFor{
						Status4xx: "cannot list trainings",
						Status5xx: "provider failed to list trainings",
					},
				)
			},
		); err != nil {
			return nil, err
		}

		found = append(found, page.Results...)
		if limit <= 0 || limit <= len(found) {
			break
		}
		next = page.Next
	}

	if 0 < limit && limit < len(found) {
		found = found[:limit]
	}
	return found, nil
}

func (c *client) CancelTraining(ctx context.Context, trainingID string) (trainings.Detail, error) {
	var detail trainings.Detail
	if err := c.doJSON(
		ctx, http.MethodPost, c.apipath("trainings", trainingID, "cancel"), nil,
		func(resp *http.Response) error {
			return unmarshalJsonResponse(
				resp, &detail,
				MessageFor{
					Status4xx: fmt.Sprintf("training %s cannot be canceled", trainingID),
					Status5xx: "provider failed to cancel the training",
				},
			)
		},
	); err != nil {
		return trainings.Detail{}, err
	}
	return detail, nil
}

func (c *client) GetOutputRaw(ctx context.Context, rawURL string, handler func(io.Reader) error) error {
	// Output archives live on the provider's delivery hosts with
	// pre-signed URLs; no credential is attached, and the stream is
	// bounded by ctx rather than the control-plane call timeout.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPermanent, err)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classify(resp, MessageFor{
		Status4xx: "training output is not available",
		Status5xx: "provider failed to serve the training output",
	}); err != nil {
		return err
	}

	return handler(resp.Body)
}

func (c *client) VerifyDatasetURL(ctx context.Context, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPermanent, err)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: dataset URL is not reachable: %s", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classify(resp, MessageFor{
		Status4xx: "dataset URL is not accessible",
		Status5xx: "dataset host failed to answer",
	}); err != nil {
		return err
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "zip") && !strings.HasSuffix(strings.ToLower(rawURL), ".zip") {
		return fmt.Errorf(
			"%w: dataset URL does not look like a ZIP archive (Content-Type: %s)",
			ErrPermanent, contentType,
		)
	}
	return nil
}
