// Package conversation holds the request/response state machine behind a
// chat window: it records history, lets at most one generation run at a
// time, and turns generation results into history entries.
//
// A Conversation is owned by a single goroutine (the primary context).
// Submit hands back a Job that may run anywhere; its Result must be passed
// to Apply on the owning goroutine again.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"AssistChat/internal/backend"
	"AssistChat/internal/prompt"
	"AssistChat/internal/session"
)

// DefaultMaxTokens is the generation budget when none is configured
const DefaultMaxTokens = 200

// ErrorPrefix starts every error-role message
const ErrorPrefix = "Sorry, I encountered an error: "

// State is the session state
type State int

const (
	StateIdle State = iota
	StateBusy
)

func (s State) String() string {
	if s == StateBusy {
		return "busy"
	}
	return "idle"
}

// Conversation is not safe for concurrent use
type Conversation struct {
	id        string
	context   string
	gen       backend.Generator
	template  prompt.Template
	stop      []string
	maxTokens int
	logger    *slog.Logger
	now       func() time.Time

	history session.History
	state   State
	// epoch changes on every Reset so results of superseded jobs are dropped
	epoch uint64
}

// Option configures a Conversation
type Option func(*Conversation)

// WithMaxTokens sets the generation budget
func WithMaxTokens(n int) Option {
	return func(c *Conversation) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithStop replaces the template's stop markers
func WithStop(markers ...string) Option {
	return func(c *Conversation) {
		if len(markers) > 0 {
			c.stop = append([]string(nil), markers...)
		}
	}
}

// WithTemplate sets the prompt template
func WithTemplate(t prompt.Template) Option {
	return func(c *Conversation) { c.template = t }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an idle conversation answering from staticContext
func New(staticContext string, gen backend.Generator, opts ...Option) *Conversation {
	c := &Conversation{
		id:        uuid.NewString(),
		context:   staticContext,
		gen:       gen,
		template:  prompt.Default,
		maxTokens: DefaultMaxTokens,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stop == nil {
		c.stop = c.template.StopMarkers()
	}
	c.logger = c.logger.With("session_id", c.id)
	return c
}

// Job is one outstanding generation. Run touches no conversation state.
type Job struct {
	Question string
	Request  backend.Request

	gen   backend.Generator
	epoch uint64
}

// Result is what a Job produced
type Result struct {
	Text     string
	Err      error
	Started  time.Time
	Duration time.Duration

	epoch uint64
}

// Run performs the generation. It blocks until the generator returns.
func (j *Job) Run(ctx context.Context) Result {
	start := time.Now()
	text, err := j.gen.Generate(ctx, j.Request)
	if err == nil {
		text = strings.TrimSpace(text)
	}
	return Result{
		Text:     text,
		Err:      err,
		Started:  start,
		Duration: time.Since(start),
		epoch:    j.epoch,
	}
}

// Submit records the question and returns the job to run. It returns false
// and changes nothing when a generation is outstanding or the question is
// blank.
func (c *Conversation) Submit(question string) (*Job, bool) {
	if c.state == StateBusy {
		c.logger.Debug("submit rejected", "reason", "busy")
		return nil, false
	}
	if strings.TrimSpace(question) == "" {
		c.logger.Debug("submit rejected", "reason", "empty")
		return nil, false
	}

	c.history.Append(session.Message{
		Role:      session.RoleUser,
		Content:   question,
		Timestamp: c.now(),
	})
	c.state = StateBusy

	job := &Job{
		Question: question,
		Request: backend.Request{
			Prompt:    c.template.Compose(c.context, question),
			MaxTokens: c.maxTokens,
			Stop:      append([]string(nil), c.stop...),
		},
		gen:   c.gen,
		epoch: c.epoch,
	}

	c.logger.Info("submitted question", "question_chars", len(question), "prompt_chars", len(job.Request.Prompt))
	return job, true
}

// Apply records a job's result and returns the conversation to idle. A
// result from before the last Reset is ignored and Apply returns false.
func (c *Conversation) Apply(r Result) (session.Message, bool) {
	if r.epoch != c.epoch || c.state != StateBusy {
		c.logger.Info("dropped stale result", "result_epoch", r.epoch, "epoch", c.epoch)
		return session.Message{}, false
	}

	msg := session.Message{Timestamp: c.now()}
	if r.Err != nil {
		msg.Role = session.RoleError
		msg.Content = ErrorPrefix + backend.Describe(r.Err)
		c.logger.Error("generation failed", "error", r.Err, "kind", backend.KindOf(r.Err).String(), "duration_ms", r.Duration.Milliseconds())
	} else {
		msg.Role = session.RoleAssistant
		msg.Content = r.Text
		c.logger.Info("generation complete", "reply_chars", len(r.Text), "duration_ms", r.Duration.Milliseconds())
	}

	c.history.Append(msg)
	c.state = StateIdle
	return msg, true
}

// Reset clears the history and returns to idle. It reports whether a
// generation was outstanding; that generation keeps running and its result
// will be ignored.
func (c *Conversation) Reset() bool {
	outstanding := c.state == StateBusy
	c.history.Clear()
	c.state = StateIdle
	c.epoch++
	c.logger.Info("conversation reset", "outstanding", outstanding)
	return outstanding
}

// ID identifies the conversation in logs and traces
func (c *Conversation) ID() string {
	return c.id
}

// State returns the current state
func (c *Conversation) State() State {
	return c.state
}

// Busy reports whether a generation is outstanding
func (c *Conversation) Busy() bool {
	return c.state == StateBusy
}

// History returns a copy of the messages so far
func (c *Conversation) History() []session.Message {
	return c.history.Messages()
}

// Entries returns the history as a display feed
func (c *Conversation) Entries() []session.Entry {
	msgs := c.history.Messages()
	entries := make([]session.Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = session.EntryFor(m)
	}
	return entries
}

// UserTurns counts the user messages
func (c *Conversation) UserTurns() int {
	return c.history.Count(session.RoleUser)
}

func (c *Conversation) String() string {
	return fmt.Sprintf("conversation %s (%s, %d messages)", c.id, c.state, c.history.Len())
}
