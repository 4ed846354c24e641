package mock

import (
	"context"
	"io"
	"testing"

	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/configure"
)

func New(t *testing.T) *mockTrainingClient {
	return &mockTrainingClient{t: t}
}

type mockTrainingClient struct {
	t    *testing.T
	Impl struct {
		CreateTraining   func(ctx context.Context, cfg configure.TrainingConfig) (trainings.Detail, error)
		GetTraining      func(ctx context.Context, trainingID string) (trainings.Detail, error)
		ListTrainings    func(ctx context.Context, limit int) ([]trainings.Summary, error)
		CancelTraining   func(ctx context.Context, trainingID string) (trainings.Detail, error)
		GetOutputRaw     func(ctx context.Context, rawURL string, handler func(io.Reader) error) error
		VerifyDatasetURL func(ctx context.Context, rawURL string) error
	}
	Calls struct {
		CreateTraining   []configure.TrainingConfig
		GetTraining      []string
		ListTrainings    []int
		CancelTraining   []string
		GetOutputRaw     []string
		VerifyDatasetURL []string
	}
}

var _ rest.TrainingClient = &mockTrainingClient{}

func (m *mockTrainingClient) CreateTraining(ctx context.Context, cfg configure.TrainingConfig) (trainings.Detail, error) {
	m.t.Helper()

	m.Calls.CreateTraining = append(m.Calls.CreateTraining, cfg)
	if m.Impl.CreateTraining == nil {
		m.t.Fatal("CreateTraining is not ready to be called")
	}
	return m.Impl.CreateTraining(ctx, cfg)
}

func (m *mockTrainingClient) GetTraining(ctx context.Context, trainingID string) (trainings.Detail, error) {
	m.t.Helper()

	m.Calls.GetTraining = append(m.Calls.GetTraining, trainingID)
	if m.Impl.GetTraining == nil {
		m.t.Fatal("GetTraining is not ready to be called")
	}
	return m.Impl.GetTraining(ctx, trainingID)
}

func (m *mockTrainingClient) ListTrainings(ctx context.Context, limit int) ([]trainings.Summary, error) {
	m.t.Helper()

	m.Calls.ListTrainings = append(m.Calls.ListTrainings, limit)
	if m.Impl.ListTrainings == nil {
		m.t.Fatal("ListTrainings is not ready to be called")
	}
	return m.Impl.ListTrainings(ctx, limit)
}

func (m *mockTrainingClient) CancelTraining(ctx context.Context, trainingID string) (trainings.Detail, error) {
	m.t.Helper()

	m.Calls.CancelTraining = append(m.Calls.CancelTraining, trainingID)
	if m.Impl.CancelTraining == nil {
		m.t.Fatal("CancelTraining is not ready to be called")
	}
	return m.Impl.CancelTraining(ctx, trainingID)
}

func (m *mockTrainingClient) GetOutputRaw(ctx context.Context, rawURL string, handler func(io.Reader) error) error {
	m.t.Helper()

	m.Calls.GetOutputRaw = append(m.Calls.GetOutputRaw, rawURL)
	if m.Impl.GetOutputRaw == nil {
		m.t.Fatal("GetOutputRaw is not ready to be called")
	}
	return m.Impl.GetOutputRaw(ctx, rawURL, handler)
}

func (m *mockTrainingClient) VerifyDatasetURL(ctx context.Context, rawURL string) error {
	m.t.Helper()

	m.Calls.VerifyDatasetURL = append(m.Calls.VerifyDatasetURL, rawURL)
	if m.Impl.VerifyDatasetURL == nil {
		m.t.Fatal("VerifyDatasetURL is not ready to be called")
	}
	return m.Impl.VerifyDatasetURL(ctx, rawURL)
}
