package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// transcriptMaxSize bounds transcript bodies. Spoken commands are short.
const transcriptMaxSize = 16 << 10

// SpeechEvent is one server-to-client speech instruction. A "speak" event
// replaces whatever the client is currently playing; "cancel" silences it.
type SpeechEvent struct {
	Type      string `json:"type"`
	Utterance int64  `json:"utterance"`
	Text      string `json:"text,omitempty"`
}

// SpeechBroker fans speech events out to SSE subscribers. It implements the
// voice Speaker boundary: each Speak supersedes the previous utterance, so
// subscribers that fall behind only ever miss speech that is already stale.
type SpeechBroker struct {
	mu   sync.Mutex
	seq  int64
	subs map[chan SpeechEvent]struct{}
}

// NewSpeechBroker creates an empty broker.
func NewSpeechBroker() *SpeechBroker {
	return &SpeechBroker{subs: make(map[chan SpeechEvent]struct{})}
}

func (b *SpeechBroker) subscribe() chan SpeechEvent {
	ch := make(chan SpeechEvent, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *SpeechBroker) unsubscribe(ch chan SpeechEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *SpeechBroker) publish(ev SpeechEvent) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
}

// Speak pushes a new utterance, superseding any prior one.
func (b *SpeechBroker) Speak(text string) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()
	b.publish(SpeechEvent{Type: "speak", Utterance: seq, Text: text})
}

// StopSpeaking cancels the current utterance without starting a new one.
func (b *SpeechBroker) StopSpeaking() {
	b.mu.Lock()
	seq := b.seq
	b.mu.Unlock()
	b.publish(SpeechEvent{Type: "cancel", Utterance: seq})
}

type transcriptRequest struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

func postTranscript(session VoiceSession, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		lr := io.LimitReader(c.Request().Body, transcriptMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req transcriptRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Text == "" && !req.Final {
			return c.String(http.StatusBadRequest, "empty transcript")
		}

		start := time.Now()
		if req.Text != "" {
			session.OnTranscript(req.Text)
		}
		if req.Final {
			session.OnSegmentEnd()
		}
		logger.WithFields(log.Fields{
			"final":    req.Final,
			"chars":    len(req.Text),
			"total_ms": float64(time.Since(start)) / float64(time.Millisecond),
		}).Debug("voice.transcript")

		return c.NoContent(http.StatusAccepted)
	}
}

func streamSpeech(broker *SpeechBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		ch := broker.subscribe()
		defer broker.unsubscribe(ch)

		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-ch:
				data, err := json.Marshal(ev)
				if err != nil {
					c.Logger().Error(err)
					return err
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return err
				}
				if _, err := c.Response().Write(data); err != nil {
					return err
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return err
				}
				flusher.Flush()
			}
		}
	}
}
