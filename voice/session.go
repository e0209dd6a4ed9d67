package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Speaker is the text-to-speech boundary. Speak replaces any utterance
// currently playing; the spoken channel never overlaps itself.
type Speaker interface {
	Speak(text string)
	StopSpeaking()
}

// Deduper suppresses re-execution of a final command within its TTL, even
// across a recognition engine restart.
type Deduper interface {
	// Add records the command key and returns true if it was newly added.
	Add(ctx context.Context, sessionID, key string) (bool, error)
	// Remove deletes a previously added key so a failed command may be retried.
	Remove(ctx context.Context, sessionID, key string) error
}

const (
	// DefaultDebounce is the quiet period after which a growing transcript
	// is treated as a final command.
	DefaultDebounce = 1500 * time.Millisecond

	processTimeout = 10 * time.Second
)

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	Store    TaskStore
	Speaker  Speaker
	Selector Selector
	Deduper  Deduper // optional
	Logger   *log.Logger
	Debounce time.Duration
}

// Session owns one voice conversation: it accumulates interim transcripts,
// finalizes them after a debounce window, and runs each final command to
// completion (parse, mutate, persist, speak) before considering the next.
// All processing is serialized behind one mutex; no two commands ever run
// concurrently and no command runs twice for one debounce window.
type Session struct {
	id       string
	store    TaskStore
	applier  *Applier
	speaker  Speaker
	selector Selector
	deduper  Deduper
	logger   *log.Logger
	debounce time.Duration
	now      func() time.Time

	mu            sync.Mutex
	timer         *time.Timer
	pending       string
	lastProcessed string
	snap          Snapshot
	stale         bool
}

// NewSession creates a session. The board snapshot is fetched lazily on the
// first command, so construction never touches the store.
func NewSession(cfg SessionConfig) *Session {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Session{
		id:       uuid.NewString(),
		store:    cfg.Store,
		applier:  NewApplier(cfg.Store, logger),
		speaker:  cfg.Speaker,
		selector: cfg.Selector,
		deduper:  cfg.Deduper,
		logger:   logger,
		debounce: debounce,
		now:      time.Now,
		stale:    true,
	}
}

// ID identifies the session for dedup key scoping.
func (s *Session) ID() string { return s.id }

// OnTranscript feeds a growing interim transcript. Text without the wake
// word is ambient speech and ignored. Each update restarts the debounce
// timer; the command only fires once the transcript goes quiet.
func (s *Session) OnTranscript(partial string) {
	cmd, ok := Normalize(partial)
	if !ok || cmd == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd == s.lastProcessed {
		return
	}
	s.pending = cmd
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flush)
}

// OnSegmentEnd flushes any pending command immediately. Recognition engines
// restart mid-stream; the pending command must still fire exactly once, and
// it goes through the same dedup key as a debounce-fired command.
func (s *Session) OnSegmentEnd() {
	s.flush()
}

// Invalidate marks the cached board snapshot stale, forcing a re-fetch
// before the next command. The CRUD handlers call this after every write.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *Session) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	cmd := s.pending
	s.pending = ""
	if cmd == "" || cmd == s.lastProcessed {
		return
	}
	s.lastProcessed = cmd

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	s.process(ctx, cmd)
}

// process runs with s.mu held: one command at a time, to completion.
func (s *Session) process(ctx context.Context, cmd string) {
	started := s.now()

	if s.deduper != nil {
		added, err := s.deduper.Add(ctx, s.id, cmd)
		if err != nil {
			s.logger.WithError(err).Warn("command deduper unavailable, proceeding")
		} else if !added {
			s.logger.WithField("command", cmd).Debug("duplicate command suppressed")
			return
		}
	}

	if s.stale {
		tasks, err := s.store.FetchActiveTasks(ctx)
		if err != nil {
			s.logger.WithError(err).Error("snapshot refresh failed")
			s.say(Reply{Category: CatRetryLater}, nil)
			s.releaseDedup(ctx, cmd)
			s.lastProcessed = ""
			return
		}
		s.snap = NewSnapshot(tasks)
		s.stale = false
	}

	result := Dispatch(cmd, s.snap, s.now())
	fields := log.Fields{
		"command": cmd,
		"intent":  result.Intent,
	}

	if result.Mutation == nil {
		s.say(result.Reply, nil)
		fields["reply"] = result.Reply.Category
		fields["total_ms"] = float64(s.now().Sub(started)) / float64(time.Millisecond)
		s.logger.WithFields(fields).Info("voice.command")
		return
	}

	outcome, err := s.applier.Apply(ctx, s.snap, *result.Mutation)
	s.snap = outcome.Snapshot
	if err != nil {
		// Failed commands release both guards, the Redis dedup key and the
		// in-memory lastProcessed suppression, so repeating the same words
		// runs the command again.
		s.releaseDedup(ctx, cmd)
		s.lastProcessed = ""
		fields["error"] = err.Error()
	}
	s.say(outcome.Reply, outcome.Warning)
	fields["reply"] = outcome.Reply.Category
	fields["total_ms"] = float64(s.now().Sub(started)) / float64(time.Millisecond)
	s.logger.WithFields(fields).Info("voice.command")
}

func (s *Session) releaseDedup(ctx context.Context, cmd string) {
	if s.deduper == nil {
		return
	}
	if err := s.deduper.Remove(ctx, s.id, cmd); err != nil {
		s.logger.WithError(err).Warn("failed to release dedup key")
	}
}

// say renders the reply (plus any advisory warning) into one utterance.
// A single Speak call keeps playback exclusive: warnings never race the
// main reply for the speech channel.
func (s *Session) say(reply Reply, warning *Reply) {
	if s.speaker == nil {
		return
	}
	text := s.selector.Pick(reply.Category, reply.Replacements)
	if warning != nil {
		if extra := s.selector.Pick(warning.Category, warning.Replacements); extra != "" {
			text = strings.TrimSpace(text + " " + extra)
		}
	}
	if text == "" {
		return
	}
	s.speaker.Speak(text)
}
