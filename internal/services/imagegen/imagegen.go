// Package imagegen fetches scene images from a prompt-driven generator with a
// deterministic stock-photo fallback.
package imagegen

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contentfactory/internal/config"
	"contentfactory/internal/fileutil"
	"contentfactory/internal/logging"
	"contentfactory/internal/services"
)

const userAgent = "contentfactory/1.0"

// Source names where an image came from.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Fetcher downloads one image per prompt.
type Fetcher struct {
	httpClient   *http.Client
	primaryURL   string
	fallbackURL  string
	fallbackTags string
	width        int
	height       int
	minBytes     int64
	policy       services.RetryPolicy
	logger       *slog.Logger
}

// New builds a Fetcher from the images config section.
func New(cfg config.Images, logger *slog.Logger) *Fetcher {
	policy := services.DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Fetcher{
		httpClient:   &http.Client{Timeout: timeout},
		primaryURL:   strings.TrimSpace(cfg.PrimaryURL),
		fallbackURL:  strings.TrimRight(strings.TrimSpace(cfg.FallbackURL), "/"),
		fallbackTags: strings.TrimSpace(cfg.FallbackTags),
		width:        cfg.Width,
		height:       cfg.Height,
		minBytes:     int64(cfg.MinBytes),
		policy:       policy,
		logger:       logging.NewComponentLogger(logger, "imagegen"),
	}
}

// WithRetryPolicy overrides the retry policy, mainly for tests.
func (f *Fetcher) WithRetryPolicy(policy services.RetryPolicy) *Fetcher {
	f.policy = policy
	return f
}

// Seed derives a stable number in [0, 10000) from a prompt so the same
// prompt always maps to the same generated or stock image.
func Seed(prompt string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum32() % 10000
}

// PrimaryURL is the generator request for prompt.
func (f *Fetcher) PrimaryURL(prompt string) string {
	base := f.primaryURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	query := url.Values{}
	query.Set("width", strconv.Itoa(f.width))
	query.Set("height", strconv.Itoa(f.height))
	query.Set("nologo", "true")
	query.Set("seed", strconv.FormatUint(uint64(Seed(prompt)), 10))
	return base + url.PathEscape(prompt) + "?" + query.Encode()
}

// FallbackURL is the stock-photo request for prompt.
func (f *Fetcher) FallbackURL(prompt string) string {
	return fmt.Sprintf("%s/%d/%d/%s?lock=%d", f.fallbackURL, f.width, f.height, f.fallbackTags, Seed(prompt))
}

// Fetch writes an image for prompt to outPath, trying the generator first
// and the stock source second. Each source gets the full retry policy.
func (f *Fetcher) Fetch(ctx context.Context, prompt, outPath string) (Source, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("imagegen: empty prompt: %w", services.ErrValidation)
	}

	var primaryErr error
	if f.primaryURL != "" {
		primaryErr = f.downloadWithRetry(ctx, f.PrimaryURL(prompt), outPath)
		if primaryErr == nil {
			return SourcePrimary, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.WarnWithContext(f.logger, "image generator failed; using stock fallback", "image_fallback",
			logging.String("path", outPath),
			logging.Error(primaryErr),
			logging.String(logging.FieldImpact, "scene uses a stock photo"),
		)
	}

	if f.fallbackURL == "" {
		if primaryErr == nil {
			return "", fmt.Errorf("imagegen: no image source configured: %w", services.ErrConfiguration)
		}
		return "", fmt.Errorf("imagegen: %w: %w", services.ErrExternalTool, primaryErr)
	}
	if err := f.downloadWithRetry(ctx, f.FallbackURL(prompt), outPath); err != nil {
		if primaryErr != nil {
			return "", fmt.Errorf("imagegen: primary: %v; fallback: %w: %w", primaryErr, services.ErrExternalTool, err)
		}
		return "", fmt.Errorf("imagegen: fallback: %w: %w", services.ErrExternalTool, err)
	}
	return SourceFallback, nil
}

func (f *Fetcher) downloadWithRetry(ctx context.Context, target, outPath string) error {
	return services.Retry(ctx, f.policy, func(ctx context.Context) error {
		return f.download(ctx, target, outPath)
	})
}

func (f *Fetcher) download(ctx context.Context, target, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return services.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("http %d from %s", resp.StatusCode, req.URL.Host)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusRequestTimeout {
			return services.Permanent(statusErr)
		}
		return statusErr
	}
	if _, err := fileutil.CopyAtomic(outPath, resp.Body, 0o644, f.minBytes); err != nil {
		return err
	}
	return nil
}
