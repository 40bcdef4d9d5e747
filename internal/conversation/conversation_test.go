package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AssistChat/internal/backend"
	"AssistChat/internal/prompt"
	"AssistChat/internal/session"
)

const hoursContext = "We are open 9-5 Mon-Fri."

type stubGenerator struct {
	reply string
	err   error
	got   []backend.Request
}

func (s *stubGenerator) Generate(ctx context.Context, req backend.Request) (string, error) {
	s.got = append(s.got, req)
	return s.reply, s.err
}

func roles(msgs []session.Message) []session.Role {
	out := make([]session.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestSubmit_HoursScenario(t *testing.T) {
	gen := &stubGenerator{reply: "We're open 9 to 5, Monday through Friday."}
	c := New(hoursContext, gen)

	job, ok := c.Submit("What are your hours?")
	require.True(t, ok)
	assert.Equal(t, StateBusy, c.State())

	msg, applied := c.Apply(job.Run(context.Background()))
	require.True(t, applied)
	assert.Equal(t, session.RoleAssistant, msg.Role)

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, session.Message{Role: session.RoleUser, Content: "What are your hours?", Timestamp: history[0].Timestamp}, history[0])
	assert.Equal(t, session.Message{Role: session.RoleAssistant, Content: "We're open 9 to 5, Monday through Friday.", Timestamp: history[1].Timestamp}, history[1])
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_RequestShape(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	c := New(hoursContext, gen)

	job, ok := c.Submit("What are your hours?")
	require.True(t, ok)
	job.Run(context.Background())

	require.Len(t, gen.got, 1)
	req := gen.got[0]
	assert.Equal(t, prompt.Compose(hoursContext, "What are your hours?"), req.Prompt)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, []string{"User:", "You:"}, req.Stop)
}

func TestSubmit_Options(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	tmpl := prompt.Default.WithPreamble("Be brief.")
	c := New("ctx", gen, WithMaxTokens(32), WithStop("Q:"), WithTemplate(tmpl))

	job, ok := c.Submit("q")
	require.True(t, ok)

	assert.Equal(t, 32, job.Request.MaxTokens)
	assert.Equal(t, []string{"Q:"}, job.Request.Stop)
	assert.True(t, strings.HasPrefix(job.Request.Prompt, "Be brief."))
}

func TestSubmit_RejectsWhileBusy(t *testing.T) {
	c := New(hoursContext, &stubGenerator{reply: "ok"})

	first, ok := c.Submit("first")
	require.True(t, ok)
	second, ok := c.Submit("second")

	assert.False(t, ok)
	assert.Nil(t, second)
	require.Len(t, c.History(), 1)
	assert.Equal(t, "first", c.History()[0].Content)
	assert.Equal(t, StateBusy, c.State())

	c.Apply(first.Run(context.Background()))
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_RejectsBlank(t *testing.T) {
	for _, q := range []string{"", " ", "\n\t  "} {
		c := New(hoursContext, &stubGenerator{})
		job, ok := c.Submit(q)

		assert.False(t, ok)
		assert.Nil(t, job)
		assert.Empty(t, c.History())
		assert.Equal(t, StateIdle, c.State())
	}
}

func TestSubmit_KeepsQuestionAsTyped(t *testing.T) {
	c := New("ctx", &stubGenerator{})

	job, ok := c.Submit("  padded  ")
	require.True(t, ok)

	assert.Equal(t, "  padded  ", c.History()[0].Content)
	assert.Contains(t, job.Request.Prompt, "User:   padded  \n")
}

func TestApply_Failure(t *testing.T) {
	gen := &stubGenerator{err: &backend.GenerationError{Kind: backend.KindUnavailable, Backend: "ollama", Err: errors.New("dial tcp: refused")}}
	c := New(hoursContext, gen)

	job, ok := c.Submit("Q")
	require.True(t, ok)
	msg, applied := c.Apply(job.Run(context.Background()))

	require.True(t, applied)
	assert.Equal(t, session.RoleError, msg.Role)
	assert.True(t, strings.HasPrefix(msg.Content, ErrorPrefix))
	assert.NotContains(t, msg.Content, "dial tcp")
	assert.Equal(t, []session.Role{session.RoleUser, session.RoleError}, roles(c.History()))
	assert.Equal(t, StateIdle, c.State())
}

func TestApply_PlainErrorStillSurfaces(t *testing.T) {
	c := New("ctx", &stubGenerator{err: errors.New("panic: nil map")})

	job, _ := c.Submit("Q")
	msg, applied := c.Apply(job.Run(context.Background()))

	require.True(t, applied)
	assert.Equal(t, ErrorPrefix+"the model failed to produce a response.", msg.Content)
}

func TestApply_TrimsReply(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "\n  hello \n\n"})

	job, _ := c.Submit("Q")
	msg, _ := c.Apply(job.Run(context.Background()))

	assert.Equal(t, "hello", msg.Content)
}

func TestEverySubmissionResolves(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "a"})

	for i := 0; i < 5; i++ {
		job, ok := c.Submit("q")
		require.True(t, ok)
		before := c.History()
		c.Apply(job.Run(context.Background()))
		assert.Len(t, c.History(), len(before)+1)
		assert.False(t, c.Busy())
	}
	assert.Equal(t, 5, c.UserTurns())
}

func TestApply_WithoutOutstandingJob(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "a"})

	job, _ := c.Submit("q")
	r := job.Run(context.Background())
	_, ok := c.Apply(r)
	require.True(t, ok)

	_, ok = c.Apply(r)
	assert.False(t, ok)
	assert.Len(t, c.History(), 2)
}

func TestReset(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "a"})
	job, _ := c.Submit("q")
	c.Apply(job.Run(context.Background()))

	outstanding := c.Reset()

	assert.False(t, outstanding)
	assert.Empty(t, c.History())
	assert.Equal(t, StateIdle, c.State())
}

func TestReset_Idempotent(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "a"})
	c.Submit("q")

	assert.True(t, c.Reset())
	assert.False(t, c.Reset())
	assert.Empty(t, c.History())
	assert.Equal(t, StateIdle, c.State())
}

func TestReset_LateResultIsInert(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "late"})

	job, ok := c.Submit("old question")
	require.True(t, ok)
	assert.True(t, c.Reset())

	// A new question goes out before the old reply lands
	fresh, ok := c.Submit("new question")
	require.True(t, ok)

	_, applied := c.Apply(job.Run(context.Background()))
	assert.False(t, applied)
	require.Len(t, c.History(), 1)
	assert.Equal(t, "new question", c.History()[0].Content)
	assert.True(t, c.Busy())

	_, applied = c.Apply(fresh.Run(context.Background()))
	assert.True(t, applied)
	assert.Equal(t, []session.Role{session.RoleUser, session.RoleAssistant}, roles(c.History()))
}

func TestReset_LateResultAfterResetOnly(t *testing.T) {
	c := New("ctx", &stubGenerator{reply: "late"})

	job, _ := c.Submit("q")
	c.Reset()

	_, applied := c.Apply(job.Run(context.Background()))
	assert.False(t, applied)
	assert.Empty(t, c.History())
	assert.Equal(t, StateIdle, c.State())
}

func TestEntries(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := New("ctx", &stubGenerator{reply: "hello"}, WithClock(func() time.Time { return fixed }))

	job, _ := c.Submit("hi")
	c.Apply(job.Run(context.Background()))

	assert.Equal(t, []session.Entry{
		{Speaker: "You", Content: "hi", Role: session.RoleUser, Timestamp: fixed},
		{Speaker: "Assistant", Content: "hello", Role: session.RoleAssistant, Timestamp: fixed},
	}, c.Entries())
}

func TestNew_UniqueIDs(t *testing.T) {
	a := New("ctx", &stubGenerator{})
	b := New("ctx", &stubGenerator{})

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
