// Package speech wraps the Azure streaming speech-to-text endpoint. A
// recognition session streams mono PCM audio over a websocket and yields
// finalized phrases with timing, confidence, and the diarization speaker
// token. Partial hypotheses are read and discarded; only finalized results
// leave this package.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vetacher/zoom-translator/internal/services"
)

// TicksPerMillisecond converts the service's native 100 ns tick unit.
const TicksPerMillisecond = 10_000

// TicksToMS converts 100 ns ticks to milliseconds.
func TicksToMS(ticks int64) int64 {
	return ticks / TicksPerMillisecond
}

const (
	// audioChunkBytes is 100 ms of 16-bit mono PCM at 16 kHz per frame.
	audioChunkBytes = 3200
	// handshakeTimeout bounds the websocket dial, not the session.
	handshakeTimeout = 15 * time.Second
)

// Config captures the settings for one recognition session.
type Config struct {
	Key      string
	Region   string
	Language string
	// Endpoint overrides the region-derived websocket URL (used in tests).
	Endpoint string
}

// Word is word-level timing inside a finalized result.
type Word struct {
	Word   string `json:"Word"`
	Offset int64  `json:"Offset"`
}

// Result is one finalized recognition phrase.
type Result struct {
	Text          string
	Speaker       string
	OffsetTicks   int64
	DurationTicks int64
	Confidence    float64
	Words         []Word
}

// Client opens recognition sessions against the speech service.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
}

// Option customizes the client.
type Option func(*Client)

// WithDialer overrides the default websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			Key:      strings.TrimSpace(cfg.Key),
			Region:   strings.TrimSpace(cfg.Region),
			Language: strings.TrimSpace(cfg.Language),
			Endpoint: strings.TrimSpace(cfg.Endpoint),
		},
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) endpoint() (string, error) {
	if c.cfg.Endpoint != "" {
		u, err := url.Parse(c.cfg.Endpoint)
		if err != nil {
			return "", fmt.Errorf("speech endpoint: %w", err)
		}
		q := u.Query()
		q.Set("language", c.cfg.Language)
		q.Set("format", "detailed")
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	if c.cfg.Region == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "speech session", "region required", nil)
	}
	return fmt.Sprintf(
		"wss://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1?language=%s&format=detailed",
		c.cfg.Region,
		url.QueryEscape(c.cfg.Language),
	), nil
}

// sessionConfig is the first text frame of every session: recognition
// settings plus the glossary-derived phrase hints.
type sessionConfig struct {
	Language    string   `json:"language"`
	Format      string   `json:"format"`
	Diarization bool     `json:"diarization"`
	PhraseList  []string `json:"phraseList,omitempty"`
}

// serviceMessage is the superset of the JSON frames the service sends back.
// Finalized phrases carry RecognitionStatus "Success"; hypotheses carry only
// Text and are discarded.
type serviceMessage struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Text              string `json:"Text"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
	SpeakerID         string `json:"SpeakerId"`
	ErrorDetails      string `json:"ErrorDetails"`
	NBest             []struct {
		Confidence float64 `json:"Confidence"`
		Words      []Word  `json:"Words"`
	} `json:"NBest"`
}

const (
	statusSuccess        = "Success"
	statusEndOfDictation = "EndOfDictation"
	statusError          = "Error"
)

// Transcribe streams audio through one recognition session and returns every
// finalized result in arrival order. A fatal session error aborts the whole
// call; there are no partial returns.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, phraseHints []string) ([]Result, error) {
	if c.cfg.Key == "" && c.cfg.Endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "speech session", "subscription key required", nil)
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.cfg.Key != "" {
		header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, services.Wrap(services.ErrTranscription, "", "speech dial", fmt.Sprintf("http %d", resp.StatusCode), err)
		}
		return nil, services.Wrap(services.ErrTranscription, "", "speech dial", "", err)
	}
	defer conn.Close()

	cfgFrame := sessionConfig{
		Language:    c.cfg.Language,
		Format:      "detailed",
		Diarization: true,
		PhraseList:  phraseHints,
	}
	if err := conn.WriteJSON(cfgFrame); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "", "speech configure", "", err)
	}

	// Reader goroutine: collect finalized results until end-of-dictation or
	// a fatal session error.
	type readOutcome struct {
		results []Result
		err     error
	}
	done := make(chan readOutcome, 1)
	go func() {
		results, err := readResults(conn)
		done <- readOutcome{results: results, err: err}
	}()

	if err := streamAudio(ctx, conn, audio); err != nil {
		conn.Close()
		<-done
		return nil, err
	}

	select {
	case <-ctx.Done():
		conn.Close()
		<-done
		return nil, services.Wrap(services.ErrTranscription, "", "speech session", "canceled", ctx.Err())
	case outcome := <-done:
		if outcome.err != nil {
			return nil, outcome.err
		}
		return outcome.results, nil
	}
}

func streamAudio(ctx context.Context, conn *websocket.Conn, audio io.Reader) error {
	buf := make([]byte, audioChunkBytes)
	for {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTranscription, "", "speech stream", "canceled", ctx.Err())
		}
		n, err := audio.Read(buf)
		if n > 0 {
			if writeErr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); writeErr != nil {
				return services.Wrap(services.ErrTranscription, "", "speech stream", "send audio", writeErr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return services.Wrap(services.ErrTranscription, "", "speech stream", "read audio", err)
		}
	}
	// Empty binary frame marks end of audio.
	if err := conn.WriteMessage(websocket.BinaryMessage, nil); err != nil {
		return services.Wrap(services.ErrTranscription, "", "speech stream", "finish audio", err)
	}
	return nil
}

func readResults(conn *websocket.Conn) ([]Result, error) {
	var results []Result
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return results, nil
			}
			return nil, services.Wrap(services.ErrTranscription, "", "speech session", "connection lost", err)
		}
		var message serviceMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			// Ignore frames we cannot parse; the service interleaves
			// bookkeeping messages with results.
			continue
		}
		switch message.RecognitionStatus {
		case statusSuccess:
			if result, ok := finalizeResult(message); ok {
				results = append(results, result)
			}
		case statusEndOfDictation:
			return results, nil
		case statusError:
			detail := strings.TrimSpace(message.ErrorDetails)
			if detail == "" {
				detail = "session error"
			}
			return nil, services.Wrap(services.ErrTranscription, "", "speech session", detail, errors.New(detail))
		default:
			// Hypothesis or bookkeeping frame: discard.
		}
	}
}

func finalizeResult(message serviceMessage) (Result, bool) {
	text := strings.TrimSpace(message.DisplayText)
	if text == "" {
		text = strings.TrimSpace(message.Text)
	}
	if text == "" {
		return Result{}, false
	}
	result := Result{
		Text:          text,
		Speaker:       strings.TrimSpace(message.SpeakerID),
		OffsetTicks:   message.Offset,
		DurationTicks: message.Duration,
	}
	if len(message.NBest) > 0 {
		result.Confidence = message.NBest[0].Confidence
		result.Words = message.NBest[0].Words
	}
	return result, true
}
