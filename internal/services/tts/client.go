// Package tts wraps the Azure neural text-to-speech REST endpoint. Each
// synthesis request sends SSML with an explicit voice and speaking rate and
// returns decoded 16 kHz mono PCM ready for track assembly.
package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Vetacher/zoom-translator/internal/media"
	"github.com/Vetacher/zoom-translator/internal/services"
)

const (
	// outputFormat matches the assembly track format so no resampling is
	// needed between synthesis and placement.
	outputFormat = "riff-16khz-16bit-mono-pcm"

	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 5
	defaultRetryBase     = time.Second
	defaultRetryMax      = 10 * time.Second
)

// Config captures the synthesis endpoint settings.
type Config struct {
	Key      string
	Region   string
	Language string
	Rate     string
	// Endpoint overrides the region-derived URL (used in tests).
	Endpoint string
}

// Sleeper pauses between retry attempts. Tests substitute an instant
// implementation.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client performs synthesis requests.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	sleeper     Sleeper
	maxAttempts int
	retryBase   time.Duration
	retryMax    time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSleeper overrides the retry sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleeper = s
		}
	}
}

// WithRetryMaxAttempts caps attempts per request.
func WithRetryMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the base and maximum retry delay.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.retryBase = base
		}
		if max > 0 {
			c.retryMax = max
		}
	}
}

// NewClient constructs a synthesis client.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			Key:      strings.TrimSpace(cfg.Key),
			Region:   strings.TrimSpace(cfg.Region),
			Language: strings.TrimSpace(cfg.Language),
			Rate:     strings.TrimSpace(cfg.Rate),
			Endpoint: strings.TrimSpace(cfg.Endpoint),
		},
		httpClient:  &http.Client{Timeout: defaultTimeout},
		sleeper:     defaultSleeper,
		maxAttempts: defaultRetryAttempts,
		retryBase:   defaultRetryBase,
		retryMax:    defaultRetryMax,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) endpoint() (string, error) {
	if c.cfg.Endpoint != "" {
		return c.cfg.Endpoint, nil
	}
	if c.cfg.Region == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "synthesis", "region required", nil)
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.cfg.Region), nil
}

// Synthesize renders text with the given voice and returns the decoded clip.
// Throttle and transient server errors are retried; other failures surface as
// synthesis errors for the caller to drop the segment.
func (c *Client) Synthesize(ctx context.Context, voice, text string) (media.Clip, error) {
	if c.cfg.Key == "" && c.cfg.Endpoint == "" {
		return media.Clip{}, services.Wrap(services.ErrConfiguration, "", "synthesis", "subscription key required", nil)
	}
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return media.Clip{}, services.Wrap(services.ErrSynthesis, "", "synthesis", "voice required", nil)
	}
	if strings.TrimSpace(text) == "" {
		return media.Clip{}, services.Wrap(services.ErrSynthesis, "", "synthesis", "empty text", nil)
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return media.Clip{}, err
	}
	body := c.buildSSML(voice, text)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		clip, retryAfter, err := c.synthesizeOnce(ctx, endpoint, body)
		if err == nil {
			return clip, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}
		if sleepErr := c.sleeper(ctx, c.retryDelay(attempt, retryAfter)); sleepErr != nil {
			return media.Clip{}, services.Wrap(services.ErrSynthesis, "", "synthesis", "canceled", sleepErr)
		}
	}
	return media.Clip{}, lastErr
}

// SSML escaping uses the xml package so segment text cannot break out of the
// prosody element.
func (c *Client) buildSSML(voice, text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))
	lang := c.cfg.Language
	if lang == "" {
		lang = "en-US"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>`, lang)
	fmt.Fprintf(&b, `<voice name='%s'>`, voice)
	if c.cfg.Rate != "" {
		fmt.Fprintf(&b, `<prosody rate='%s'>%s</prosody>`, c.cfg.Rate, escaped.String())
	} else {
		b.WriteString(escaped.String())
	}
	b.WriteString(`</voice></speak>`)
	return b.String()
}

func (c *Client) synthesizeOnce(ctx context.Context, endpoint, body string) (media.Clip, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return media.Clip{}, 0, services.Wrap(services.ErrSynthesis, "", "synthesis", "build request", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	if c.cfg.Key != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return media.Clip{}, 0, wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := services.Wrap(services.ErrSynthesis, "", "synthesis",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
		return media.Clip{}, parseRetryAfter(resp.Header.Get("Retry-After")), &httpError{status: resp.StatusCode, err: err}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return media.Clip{}, 0, wrapTransport(err)
	}
	clip, err := media.DecodeWAV(payload)
	if err != nil {
		return media.Clip{}, 0, services.Wrap(services.ErrSynthesis, "", "synthesis", "decode audio", err)
	}
	return clip, 0, nil
}

type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func wrapTransport(err error) error {
	return &transportError{err: services.Wrap(services.ErrSynthesis, "", "synthesis", "request failed", err)}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.status == http.StatusRequestTimeout ||
			he.status == http.StatusTooManyRequests ||
			he.status >= http.StatusInternalServerError
	}
	var te *transportError
	if errors.As(err, &te) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return netErr.Timeout()
		}
		return true
	}
	return false
}

func (c *Client) retryDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > c.retryMax {
			return c.retryMax
		}
		return retryAfter
	}
	delay := c.retryBase << (attempt - 1)
	if delay > c.retryMax {
		delay = c.retryMax
	}
	return delay
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
