package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Vetacher/zoom-translator/internal/services"
)

func TestTicksToMS(t *testing.T) {
	cases := []struct {
		ticks int64
		want  int64
	}{
		{0, 0},
		{10_000, 1},
		{15_000_000, 1500},
		{9_999, 0},
	}
	for _, tc := range cases {
		if got := TicksToMS(tc.ticks); got != tc.want {
			t.Errorf("TicksToMS(%d) = %d, want %d", tc.ticks, got, tc.want)
		}
	}
}

type sessionScript struct {
	t        *testing.T
	messages []serviceMessage

	gotConfig sessionConfig
	gotAudio  []byte
	gotKey    string
}

func (s *sessionScript) handler() http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		s.gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.ReadJSON(&s.gotConfig); err != nil {
			s.t.Errorf("read config frame: %v", err)
			return
		}
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			if len(payload) == 0 {
				break
			}
			s.gotAudio = append(s.gotAudio, payload...)
		}
		for _, message := range s.messages {
			encoded, err := json.Marshal(message)
			if err != nil {
				s.t.Errorf("marshal message: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				return
			}
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestTranscribeCollectsFinalResults(t *testing.T) {
	script := &sessionScript{
		t: t,
		messages: []serviceMessage{
			{Text: "прив"},
			{
				RecognitionStatus: "Success",
				DisplayText:       "Привет, коллеги.",
				Offset:            0,
				Duration:          15_000_000,
				SpeakerID:         "Guest-1",
				NBest: []struct {
					Confidence float64 `json:"Confidence"`
					Words      []Word  `json:"Words"`
				}{
					{Confidence: 0.93, Words: []Word{{Word: "Привет", Offset: 0}}},
				},
			},
			{
				RecognitionStatus: "Success",
				DisplayText:       "Начинаем.",
				Offset:            20_000_000,
				Duration:          8_000_000,
				SpeakerID:         "Guest-2",
			},
			{RecognitionStatus: "EndOfDictation"},
		},
	}
	server := httptest.NewServer(script.handler())
	defer server.Close()

	client := NewClient(Config{Key: "test-key", Language: "ru-RU", Endpoint: wsURL(server)})
	audio := bytes.Repeat([]byte{0x01, 0x02}, 4000)
	results, err := client.Transcribe(context.Background(), bytes.NewReader(audio), []string{"Kubernetes"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.Text != "Привет, коллеги." || first.Speaker != "Guest-1" {
		t.Errorf("unexpected first result: %+v", first)
	}
	if first.Confidence != 0.93 || len(first.Words) != 1 {
		t.Errorf("expected NBest detail, got %+v", first)
	}
	if TicksToMS(first.DurationTicks) != 1500 {
		t.Errorf("expected 1500 ms duration, got %d", TicksToMS(first.DurationTicks))
	}
	if results[1].Speaker != "Guest-2" {
		t.Errorf("unexpected second speaker %q", results[1].Speaker)
	}

	if script.gotKey != "test-key" {
		t.Errorf("expected subscription key header, got %q", script.gotKey)
	}
	if !script.gotConfig.Diarization || script.gotConfig.Language != "ru-RU" {
		t.Errorf("unexpected session config %+v", script.gotConfig)
	}
	if len(script.gotConfig.PhraseList) != 1 || script.gotConfig.PhraseList[0] != "Kubernetes" {
		t.Errorf("phrase hints not forwarded: %+v", script.gotConfig.PhraseList)
	}
	if !bytes.Equal(script.gotAudio, audio) {
		t.Errorf("audio mismatch: sent %d bytes, server saw %d", len(audio), len(script.gotAudio))
	}
}

func TestTranscribeDiscardsHypotheses(t *testing.T) {
	script := &sessionScript{
		t: t,
		messages: []serviceMessage{
			{Text: "partial one"},
			{Text: "partial two"},
			{RecognitionStatus: "EndOfDictation"},
		},
	}
	server := httptest.NewServer(script.handler())
	defer server.Close()

	client := NewClient(Config{Key: "k", Language: "ru-RU", Endpoint: wsURL(server)})
	results, err := client.Transcribe(context.Background(), bytes.NewReader([]byte{0, 0}), nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no finalized results, got %d", len(results))
	}
}

func TestTranscribeSessionError(t *testing.T) {
	script := &sessionScript{
		t: t,
		messages: []serviceMessage{
			{RecognitionStatus: "Success", DisplayText: "Первый.", Duration: 10_000_000},
			{RecognitionStatus: "Error", ErrorDetails: "quota exceeded"},
		},
	}
	server := httptest.NewServer(script.handler())
	defer server.Close()

	client := NewClient(Config{Key: "k", Language: "ru-RU", Endpoint: wsURL(server)})
	results, err := client.Transcribe(context.Background(), bytes.NewReader([]byte{0, 0}), nil)
	if err == nil {
		t.Fatal("expected session error")
	}
	if !errors.Is(err, services.ErrTranscription) {
		t.Errorf("expected transcription marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected error detail, got %v", err)
	}
	if results != nil {
		t.Errorf("expected no partial results on session error, got %d", len(results))
	}
}

func TestTranscribeRequiresKey(t *testing.T) {
	client := NewClient(Config{Language: "ru-RU"})
	_, err := client.Transcribe(context.Background(), bytes.NewReader(nil), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEndpointRequiresRegion(t *testing.T) {
	client := NewClient(Config{Key: "k", Language: "ru-RU"})
	_, err := client.Transcribe(context.Background(), bytes.NewReader(nil), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
