package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lorafab/lorafab/cmd/lorafab/env"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	"github.com/lorafab/lorafab/pkg/configure"
)

// Failure classification of remote calls. Every error a client method
// returns wraps exactly one of these; callers match with errors.Is
// instead of inspecting transport details.
var (
	// ErrTransient marks failures a retry may fix: network errors,
	// timeouts, rate limits, provider-side hiccups.
	ErrTransient = errors.New("transient remote failure")

	// ErrPermanent marks failures a retry cannot fix: malformed
	// requests, unknown training ids, canceling a finished job.
	ErrPermanent = errors.New("permanent remote failure")

	// ErrAuthentication marks a missing or rejected credential.
	ErrAuthentication = errors.New("authentication failure")
)

// TunerVersionRef pins the hosted fine-tuner version this tool drives.
const TunerVersionRef = "lucataco/sd3.5-large-fine-tuner:64360fd3c38f47e8132564044b67b1ed1d45b450f008b896d354c4d0d65973d0"

// defaultCallTimeout bounds each control-plane call (create, get, list,
// cancel). Output streaming is bounded by the caller's context instead.
const defaultCallTimeout = 30 * time.Second

// TrainingClient is the boundary to the remote training provider.
//
// Each method is one synchronous remote call. The client never polls
// and never retries; it only classifies failures (see ErrTransient,
// ErrPermanent, ErrAuthentication) for the monitor to act on.
type TrainingClient interface {
	// CreateTraining submits a new training job built from cfg.
	CreateTraining(ctx context.Context, cfg configure.TrainingConfig) (trainings.Detail, error)

	// GetTraining fetches the current state of a training job.
	GetTraining(ctx context.Context, trainingID string) (trainings.Detail, error)

	// ListTrainings fetches recent training jobs, following result
	// pages until limit entries are collected (limit <= 0: one page).
	ListTrainings(ctx context.Context, limit int) ([]trainings.Summary, error)

	// CancelTraining asks the provider to cancel a training job and
	// returns its state after the request.
	CancelTraining(ctx context.Context, trainingID string) (trainings.Detail, error)

	// GetOutputRaw streams the archive at rawURL into handler. If the
	// handler returns an error, streaming stops and that error is
	// returned.
	GetOutputRaw(ctx context.Context, rawURL string, handler func(io.Reader) error) error

	// VerifyDatasetURL checks that a dataset URL is reachable and looks
	// like a ZIP archive, without downloading it.
	VerifyDatasetURL(ctx context.Context, rawURL string) error
}

// VersionRef identifies a provider-hosted model version,
// "owner/name:versionid".
type VersionRef struct {
	Owner string
	Name  string
	ID    string
}

// ParseVersionRef parses "owner/name:versionid".
func ParseVersionRef(s string) (VersionRef, error) {
	model, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return VersionRef{}, fmt.Errorf("version ref %q: missing ':versionid'", s)
	}
	owner, name, ok := strings.Cut(model, "/")
	if !ok || owner == "" || name == "" {
		return VersionRef{}, fmt.Errorf("version ref %q: model must be 'owner/name'", s)
	}
	return VersionRef{Owner: owner, Name: name, ID: id}, nil
}

type client struct {
	httpclient  *http.Client
	api         string
	token       string
	version     VersionRef
	callTimeout time.Duration
}

type Option func(*client) *client

// WithTuner overrides the fine-tuner version ref.
func WithTuner(ref VersionRef) Option {
	return func(c *client) *client {
		c.version = ref
		return c
	}
}

// WithCallTimeout overrides the per-call timeout of control-plane
// operations.
func WithCallTimeout(d time.Duration) Option {
	return func(c *client) *client {
		c.callTimeout = d
		return c
	}
}

// NewClient builds a TrainingClient over e.
//
// A missing credential is not an error here: the token is checked on
// the first remote call, so local-only flows (dry runs, templates) work
// without one.
func NewClient(e env.Env, options ...Option) (TrainingClient, error) {
	root, err := url.Parse(e.APIRoot)
	if err != nil || !root.IsAbs() {
		return nil, fmt.Errorf("api root is not an absolute URL: %s", e.APIRoot)
	}

	version, err := ParseVersionRef(TunerVersionRef)
	if err != nil {
		return nil, err
	}

	c := &client{
		httpclient:  new(http.Client),
		api:         strings.TrimSuffix(e.APIRoot, "/"),
		token:       e.APIToken,
		version:     version,
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range options {
		c = opt(c)
	}
	return c, nil
}

// build URL with path
func (c *client) apipath(path ...string) string {
	return strings.Join(append([]string{c.api}, path...), "/")
}

// authorize attaches the credential, or reports why it cannot.
func (c *client) authorize(req *http.Request) error {
	if c.token == "" {
		return fmt.Errorf(
			"%w: %s is not set; get a token from your provider account page",
			ErrAuthentication, env.EnvAPIToken,
		)
	}
	if !strings.HasPrefix(c.token, "r8_") {
		return fmt.Errorf(
			"%w: %s does not look like a provider token (want 'r8_...')",
			ErrAuthentication, env.EnvAPIToken,
		)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}

// doJSON performs one authorized control-plane call and passes the
// response to handle. The per-call timeout stays in force until handle
// returns; releasing it earlier would tear down the body stream while
// handle is still reading it.
func (c *client) doJSON(ctx context.Context, method, url string, body io.Reader, handle func(*http.Response) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPermanent, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransient, err)
	}
	defer resp.Body.Close()

	return handle(resp)
}
