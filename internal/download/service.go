package download

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vkget/vk-archive-downloader/internal/model"
	"github.com/vkget/vk-archive-downloader/internal/platform"
)

// Engine defaults
const (
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	DefaultRetryLimit  = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultHTTPTimeout = 30 * time.Second
	DefaultMaxParallel = 4
)

// Parallelism bounds
const (
	MinParallel = 1
	MaxParallel = 8
)

// MaxBackoffDelay caps the exponential retry delay
const MaxBackoffDelay = 30 * time.Second

// HTTP headers
const (
	HeaderUserAgent = "User-Agent"
	HeaderAccept    = "Accept"
	AcceptImages    = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// allowedMIMETypes is the response Content-Type allowlist
var allowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Options configures the download engine
type Options struct {
	UserAgent   string
	RetryLimit  int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
	MaxParallel int
	Force       bool
}

// Service handles download operations
type Service struct {
	client      *http.Client
	userAgent   string
	retryLimit  int
	retryDelay  time.Duration
	maxParallel int
	force       bool
}

// NewService creates a new download engine. Zero option values fall back to
// engine defaults.
func NewService(opts Options) *Service {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RetryLimit < 1 {
		opts.RetryLimit = DefaultRetryLimit
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.MaxParallel < MinParallel {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.MaxParallel > MaxParallel {
		opts.MaxParallel = MaxParallel
	}

	return &Service{
		client:      &http.Client{Timeout: opts.HTTPTimeout},
		userAgent:   opts.UserAgent,
		retryLimit:  opts.RetryLimit,
		retryDelay:  opts.RetryDelay,
		maxParallel: opts.MaxParallel,
		force:       opts.Force,
	}
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Service) SetMaxParallelDownloads(max int) {
	if max < MinParallel {
		max = MinParallel
	}
	if max > MaxParallel {
		max = MaxParallel
	}
	s.maxParallel = max
}

// SetForce toggles re-downloading of files that already exist
func (s *Service) SetForce(force bool) {
	s.force = force
}

// Fetch downloads one target. Existing files are skipped unless force is on,
// which makes repeated runs idempotent.
func (s *Service) Fetch(ctx context.Context, target model.ValidatedTarget) model.DownloadOutcome {
	if !s.force && platform.FileExists(target.DestPath) {
		logrus.WithField("path", target.DestPath).Debug("File already exists, skipping")
		return model.Skipped(target, model.SkipAlreadyExists)
	}

	outcome := s.fetchWithRetry(ctx, target)
	if outcome.Status == model.StatusDownloaded {
		logrus.WithFields(logrus.Fields{
			"url":   target.URL,
			"path":  target.DestPath,
			"bytes": outcome.BytesWritten,
		}).Info("Downloaded")
	} else {
		logrus.WithFields(logrus.Fields{
			"url":      target.URL,
			"attempts": outcome.Attempts,
			"error":    outcome.LastError,
		}).Error("Download failed")
	}
	return outcome
}

// FetchAll downloads targets through a bounded worker pool and returns one
// outcome per target, index-aligned with the input.
func (s *Service) FetchAll(ctx context.Context, targets []model.ValidatedTarget) []model.DownloadOutcome {
	outcomes := make([]model.DownloadOutcome, len(targets))

	var g errgroup.Group
	g.SetLimit(s.maxParallel)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = model.Skipped(target, model.SkipCancelled)
				return nil
			}
			outcomes[i] = s.Fetch(ctx, target)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// fetchWithRetry attempts the download until success, a permanent failure, or
// the attempt limit
func (s *Service) fetchWithRetry(ctx context.Context, target model.ValidatedTarget) model.DownloadOutcome {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < s.retryLimit; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(s.retryDelay, attempt)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return model.Failed(target, ctx.Err(), attempts)
			}

			logrus.WithFields(logrus.Fields{
				"url":     target.URL,
				"attempt": attempt + 1,
			}).Info("Retrying download")
		}

		attempts++
		written, err := s.fetchOnce(ctx, target)
		if err == nil {
			outcome := model.Downloaded(target, written)
			outcome.Attempts = attempts
			return outcome
		}
		lastErr = err

		if ctx.Err() != nil {
			return model.Failed(target, lastErr, attempts)
		}
		if isPermanent(err) {
			return model.Failed(target, lastErr, attempts)
		}

		logrus.WithFields(logrus.Fields{
			"url":     target.URL,
			"attempt": attempts,
			"error":   err,
		}).Warn("Download attempt failed")
	}

	return model.Failed(target, lastErr, attempts)
}

// fetchOnce performs a single GET and writes the body atomically
func (s *Service) fetchOnce(ctx context.Context, target model.ValidatedTarget) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return 0, permanentError{fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set(HeaderUserAgent, s.userAgent)
	req.Header.Set(HeaderAccept, AcceptImages)

	resp, err := s.client.Do(req)
	if err != nil {
		// Connection and timeout errors are worth retrying
		return 0, fmt.Errorf("failed to perform request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status: %s", resp.Status)
		if isTransientStatus(resp.StatusCode) {
			return 0, statusErr
		}
		return 0, permanentError{statusErr}
	}

	contentType := normalizeContentType(resp.Header.Get("Content-Type"))
	if _, ok := allowedMIMETypes[contentType]; !ok {
		return 0, permanentError{fmt.Errorf("content type %q not allowed", contentType)}
	}

	written, err := platform.WriteFileAtomic(target.DestPath, resp.Body)
	if err != nil {
		var copyErr *platform.CopyError
		if errors.As(err, &copyErr) {
			// Interrupted body stream, same class as a dropped connection
			return 0, err
		}
		return 0, permanentError{err}
	}
	return written, nil
}

// permanentError marks failures that retrying cannot fix
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

// isPermanent reports whether the error is marked as not retryable
func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// isTransientStatus reports whether an HTTP status is worth retrying:
// server errors and rate limiting. Other client errors are permanent.
func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// backoffDelay doubles the base delay per retry, capped at MaxBackoffDelay
func backoffDelay(base time.Duration, retry int) time.Duration {
	delay := base << (retry - 1)
	if delay <= 0 || delay > MaxBackoffDelay {
		return MaxBackoffDelay
	}
	return delay
}

// normalizeContentType lowercases the media type and strips parameters
func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType
}
