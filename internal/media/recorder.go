// Package media captures the preview shots uploaded with a deployment.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"builder/internal/model"
)

var ErrDisabled = errors.New("media capture is not configured")

// Recorder captures the four cardinal shots and the preview of a project.
type Recorder interface {
	Capture(ctx context.Context, projectID string) (model.Media, error)
}

// Views lists the captured angles, in capture order.
var Views = []string{"preview", "north", "east", "south", "west"}

// ChromeRecorder renders the project preview page in headless Chrome and
// screenshots it once per view.
type ChromeRecorder struct {
	pageURL   string
	remoteURL string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewChromeRecorder builds a recorder for pageURL, where %s stands for the
// project id. A non-empty remoteURL attaches to a running browser instead of
// launching one.
func NewChromeRecorder(pageURL, remoteURL string, timeout time.Duration, logger *zap.Logger) *ChromeRecorder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeRecorder{pageURL: pageURL, remoteURL: remoteURL, timeout: timeout, logger: logger}
}

// ViewURL is the page rendering projectID from the given view.
func ViewURL(pageURL, projectID, view string) (string, error) {
	if pageURL == "" {
		return "", ErrDisabled
	}
	raw := pageURL
	if strings.Contains(raw, "%s") {
		raw = fmt.Sprintf(raw, url.PathEscape(projectID))
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse preview url: %w", err)
	}
	query := parsed.Query()
	query.Set("view", view)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (r *ChromeRecorder) allocate(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.remoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, r.remoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1024, 768),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (r *ChromeRecorder) Capture(ctx context.Context, projectID string) (model.Media, error) {
	if r.pageURL == "" {
		return model.Media{}, ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := r.allocate(ctx)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	shots := make(map[string][]byte, len(Views))
	for _, view := range Views {
		target, err := ViewURL(r.pageURL, projectID, view)
		if err != nil {
			return model.Media{}, err
		}
		var shot []byte
		err = chromedp.Run(taskCtx,
			chromedp.Navigate(target),
			chromedp.WaitReady("canvas"),
			chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				shot, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
				return err
			}),
		)
		if err != nil {
			return model.Media{}, fmt.Errorf("capture %s view: %w", view, err)
		}
		r.logger.Debug("captured view", zap.String("project", projectID), zap.String("view", view), zap.Int("bytes", len(shot)))
		shots[view] = shot
	}

	return model.Media{
		Preview: shots["preview"],
		North:   shots["north"],
		East:    shots["east"],
		South:   shots["south"],
		West:    shots["west"],
	}, nil
}
