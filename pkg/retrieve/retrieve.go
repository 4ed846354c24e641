// Package retrieve turns a succeeded training job into a local model
// artifact file.
//
// The provider delivers one archive per succeeded job; the archive root
// holds exactly one trained-model file. Retrieve downloads the archive,
// extracts that file and renames it deterministically after the
// destination model and the trigger word.
package retrieve

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"github.com/lorafab/lorafab/cmd/lorafab/rest"
	"github.com/lorafab/lorafab/pkg/api/types/trainings"
	kpath "github.com/lorafab/lorafab/pkg/utils/path"
)

var (
	// ErrNotSucceeded: only succeeded jobs have retrievable output.
	ErrNotSucceeded = errors.New("training has not succeeded")

	// ErrArtifactNotFound: the output archive held zero or more than
	// one model file at its root, so the deterministic naming scheme
	// does not apply.
	ErrArtifactNotFound = errors.New("no unambiguous model artifact in training output")

	// ErrArtifactExists: the target file already exists and
	// overwriting was not requested.
	ErrArtifactExists = errors.New("artifact file already exists")
)

// artifactExt is the trained-model file format the fine-tuner emits.
const artifactExt = ".safetensors"

type retrieveOption struct {
	overwrite      bool
	progressOutput io.Writer
}

type Option func(*retrieveOption) *retrieveOption

// WithOverwrite allows replacing an existing artifact file. Without it,
// Retrieve fails with ErrArtifactExists instead of overwriting.
func WithOverwrite() Option {
	return func(o *retrieveOption) *retrieveOption {
		o.overwrite = true
		return o
	}
}

// WithProgressOutput redirects the download progress display.
func WithProgressOutput(w io.Writer) Option {
	return func(o *retrieveOption) *retrieveOption {
		o.progressOutput = w
		return o
	}
}

// ArtifactName derives the deterministic artifact file name:
// "<namespace>-<name>_<triggerWord>.safetensors".
func ArtifactName(destination, triggerWord string) string {
	base := strings.ReplaceAll(destination, "/", "-")
	return fmt.Sprintf("%s_%s%s", base, triggerWord, artifactExt)
}

const noBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{with string . "suffix"}} {{.}}{{end}}`

// Retrieve downloads the output archive of a succeeded training,
// extracts the single model file from the archive root and writes it
// under destDir with its deterministic name. It returns the path of the
// written artifact.
//
// Retrieve never touches the job itself; a failed retrieval can simply
// be retried with the same Detail.
func Retrieve(
	ctx context.Context,
	client rest.TrainingClient,
	detail trainings.Detail,
	destDir string,
	options ...Option,
) (string, error) {
	opt := &retrieveOption{progressOutput: os.Stderr}
	for _, o := range options {
		opt = o(opt)
	}

	if detail.Status != trainings.Succeeded {
		return "", fmt.Errorf(
			"%w: training %s is %q", ErrNotSucceeded, detail.ID, detail.Status,
		)
	}
	if detail.Output == nil || detail.Output.Weights == "" {
		return "", fmt.Errorf(
			"%w: training %s reports no output reference", ErrArtifactNotFound, detail.ID,
		)
	}

	destDir, err := kpath.Resolve(destDir)
	if err != nil {
		return "", fmt.Errorf("path resolving error for '%s': %w", destDir, err)
	}
	if err := os.MkdirAll(destDir, os.FileMode(0777)); err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, ArtifactName(detail.Destination, detail.Input.TriggerWord))
	if !opt.overwrite {
		if _, err := os.Stat(dest); err == nil {
			return "", fmt.Errorf("%w: %s (pass the overwrite flag to replace it)", ErrArtifactExists, dest)
		}
	}

	archive, err := os.CreateTemp(destDir, ".lorafab-output-*")
	if err != nil {
		return "", err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	err = client.GetOutputRaw(ctx, detail.Output.Weights, func(r io.Reader) error {
		bar := noBar.New(-1)
		bar.SetWriter(opt.progressOutput)
		bar.Set("prefix", fmt.Sprintf("downloading output of %s:", detail.ID))
		bar.Start()
		// Finish the bar without closing the proxy writer: closing it
		// would close archive, which is seeked and extracted below.
		defer bar.Finish()
		w := bar.NewProxyWriter(archive)

		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return "", err
	}

	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if err := extractArtifact(archive, dest, opt.overwrite); err != nil {
		return "", err
	}
	return dest, nil
}

// extractArtifact scans the tar stream for the single model file at the
// archive root and writes it to dest.
func extractArtifact(archive io.Reader, dest string, overwrite bool) error {
	content, err := maybeGunzip(archive)
	if err != nil {
		return err
	}

	found := false
	tr := tar.NewReader(content)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("broken output archive: %w", err)
		}
		if !isRootModelFile(hdr) {
			continue
		}
		if found {
			os.Remove(dest)
			return fmt.Errorf(
				"%w: more than one %s file at the archive root", ErrArtifactNotFound, artifactExt,
			)
		}
		found = true

		if err := writeArtifact(tr, dest, overwrite); err != nil {
			return err
		}
	}

	if !found {
		return fmt.Errorf(
			"%w: no %s file at the archive root", ErrArtifactNotFound, artifactExt,
		)
	}
	return nil
}

func isRootModelFile(hdr *tar.Header) bool {
	if hdr.Typeflag != tar.TypeReg {
		return false
	}
	name := filepath.Clean(hdr.Name)
	if filepath.Dir(name) != "." {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), artifactExt)
}

func writeArtifact(r io.Reader, dest string, overwrite bool) error {
	mode := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		mode = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}

	f, err := os.OpenFile(dest, mode, os.FileMode(0644))
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrArtifactExists, dest)
		}
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, r)
	return err
}

// maybeGunzip sniffs the gzip magic so both .tar and .tar.gz outputs
// are accepted.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("broken output archive: %w", err)
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}
