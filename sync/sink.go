package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sandeepkandula/archivesync/auth"
)

// Sink is a write target for fetched files.
type Sink interface {
	// Store streams the bytes behind locator to destDir/fileName, creating
	// destDir if needed. A failed Store may leave no file or a partial one.
	Store(ctx context.Context, cred auth.Credential, locator, destDir, fileName string) error
}

// HTTPSink downloads locator URLs to the local filesystem.
type HTTPSink struct {
	client *http.Client
	// Authorize attaches the credential to download requests. Pre-signed
	// locators such as Graph download URLs do not need it.
	Authorize bool
}

// NewHTTPSink creates an HTTPSink; a nil client means http.DefaultClient.
func NewHTTPSink(client *http.Client) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSink{client: client}
}

func (s *HTTPSink) Store(ctx context.Context, cred auth.Credential, locator, destDir, fileName string) error {
	body, err := openLocator(ctx, s.client, cred, s.Authorize, locator)
	if err != nil {
		return err
	}
	defer body.Close()

	return writeLocal(destDir, fileName, func(f *os.File) error {
		_, err := io.Copy(f, body)
		return err
	})
}

// DryRunSink logs what would be fetched and writes nothing.
type DryRunSink struct {
	log *zap.Logger
}

// NewDryRunSink creates a DryRunSink.
func NewDryRunSink(log *zap.Logger) *DryRunSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &DryRunSink{log: log}
}

func (s *DryRunSink) Store(_ context.Context, _ auth.Credential, _, destDir, fileName string) error {
	s.log.Info("dry run: would fetch", zap.String("name", fileName), zap.String("dest", destDir))
	return nil
}

func openLocator(ctx context.Context, client *http.Client, cred auth.Credential, authorize bool, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if authorize {
		cred.Apply(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := fmt.Errorf("download: unexpected status %d", resp.StatusCode)
		if auth.IsAuthStatus(resp.StatusCode) {
			return nil, &auth.Error{Provider: "locator", StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return resp.Body, nil
}

// writeLocal creates destDir, lets write fill a temporary file next to the
// target and renames it into place once write succeeds.
func writeLocal(destDir, fileName string, write func(f *os.File) error) error {
	if err := checkFileName(fileName); err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	target := filepath.Join(destDir, fileName)
	f, err := os.CreateTemp(destDir, ".archivesync-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	werr := write(f)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", fileName, err)
	}
	return nil
}

// checkFileName rejects names that would escape the destination directory.
func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
