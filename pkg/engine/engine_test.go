package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dugoutlabs/dugout/pkg/adapters/memory"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

func say(name, text string) ports.Step {
	return ports.StepFunc{ID: name, Fn: func(ctx context.Context, st *domain.State) (*domain.Delta, error) {
		return &domain.Delta{Messages: []domain.Message{{Role: domain.RoleAssistant, Content: text}}}, nil
	}}
}

// askStep pauses for approval on every fresh run and records the resume value.
type askStep struct {
	resumed []any
}

func (s *askStep) Name() string { return "ask" }

func (s *askStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	return nil, &domain.Paused{
		Interrupt: &domain.Interrupt{
			Path:   []string{"ask"},
			Kind:   domain.InterruptApproval,
			Prompt: "proceed?",
		},
	}
}

func (s *askStep) Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error) {
	ok, isBool := value.(bool)
	if !isBool {
		return nil, domain.ErrInvalidResume
	}
	s.resumed = append(s.resumed, value)
	text := "denied"
	if ok {
		text = "approved"
	}
	return &domain.Delta{Messages: []domain.Message{{Role: domain.RoleAssistant, Content: text}}}, nil
}

func TestEngine_LinearRun(t *testing.T) {
	g := engine.NewGraph("g").
		AddStep(say("a", "first")).
		AddStep(say("b", "second")).
		SetEntry("a").
		AddEdge("a", "b").
		AddEdge("b", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	eng := engine.New(c, store)

	res, err := eng.Run(context.Background(), "s1", "hello")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Equal(t, "second", res.Answer)

	// One checkpoint per completed step, terminal position recorded.
	cps, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, cps)
	cp, err := store.Latest(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, cp.Seq)
	assert.Equal(t, engine.End, cp.Position)
	require.Len(t, cp.State.Messages, 3)
	assert.Equal(t, domain.RoleUser, cp.State.Messages[0].Role)
}

func TestEngine_ConditionalRouting(t *testing.T) {
	g := engine.NewGraph("g").
		AddStep(say("classify", "ignored")).
		AddStep(say("long", "long answer")).
		AddStep(say("short", "short answer")).
		SetEntry("classify").
		AddConditionalEdges("classify",
			func(st *domain.State) string {
				if len(st.LastUserQuery()) > 10 {
					return "long"
				}
				return "short"
			},
			[]string{"long", "short"},
			map[string]string{"long": "long", "short": "short"}).
		AddEdge("long", engine.End).
		AddEdge("short", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())

	res, err := eng.Run(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "short answer", res.Answer)

	res, err = eng.Run(context.Background(), "s2", "a much longer question")
	require.NoError(t, err)
	assert.Equal(t, "long answer", res.Answer)
}

func TestEngine_InterruptAndResume(t *testing.T) {
	ask := &askStep{}
	g := engine.NewGraph("g").
		AddStep(ask).
		SetEntry("ask").
		AddEdge("ask", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	eng := engine.New(c, store)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "do the thing")
	require.NoError(t, err)
	require.False(t, res.Terminal())
	assert.Equal(t, domain.InterruptRaised, res.Interrupt.Status)
	assert.NotEmpty(t, res.Interrupt.ID)

	// The pause is durable.
	cp, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, cp.Pending)
	assert.Equal(t, "ask", cp.Position)

	res, err = eng.Resume(ctx, "s1", true)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Equal(t, "approved", res.Answer)
	assert.Equal(t, []any{true}, ask.resumed)

	// The interrupt is consumed: a second resume has nothing to target.
	_, err = eng.Resume(ctx, "s1", true)
	require.ErrorIs(t, err, domain.ErrNoPendingInterrupt)
}

func TestEngine_InvalidResumeLeavesPauseIntact(t *testing.T) {
	ask := &askStep{}
	g := engine.NewGraph("g").
		AddStep(ask).
		SetEntry("ask").
		AddEdge("ask", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	eng := engine.New(c, store)
	ctx := context.Background()

	_, err = eng.Run(ctx, "s1", "do the thing")
	require.NoError(t, err)

	_, err = eng.Resume(ctx, "s1", "not a bool")
	require.ErrorIs(t, err, domain.ErrInvalidResume)
	assert.Empty(t, ask.resumed)

	// The same pause can be resumed correctly afterwards.
	res, err := eng.Resume(ctx, "s1", false)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Equal(t, "denied", res.Answer)
}

func TestEngine_RunOnPausedSessionRejected(t *testing.T) {
	g := engine.NewGraph("g").
		AddStep(&askStep{}).
		SetEntry("ask").
		AddEdge("ask", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())
	ctx := context.Background()

	_, err = eng.Run(ctx, "s1", "first")
	require.NoError(t, err)

	_, err = eng.Run(ctx, "s1", "second")
	require.ErrorIs(t, err, domain.ErrSessionPaused)
}

func TestEngine_ResumeWithoutPauseRejected(t *testing.T) {
	g := engine.NewGraph("g").
		AddStep(say("a", "done")).
		SetEntry("a").
		AddEdge("a", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())
	ctx := context.Background()

	_, err = eng.Resume(ctx, "missing", true)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = eng.Run(ctx, "s1", "q")
	require.NoError(t, err)
	_, err = eng.Resume(ctx, "s1", true)
	require.ErrorIs(t, err, domain.ErrNoPendingInterrupt)
}

func TestEngine_StateCarriesAcrossRuns(t *testing.T) {
	g := engine.NewGraph("g").
		AddStep(say("a", "answer")).
		SetEntry("a").
		AddEdge("a", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())
	ctx := context.Background()

	_, err = eng.Run(ctx, "s1", "one")
	require.NoError(t, err)
	res, err := eng.Run(ctx, "s1", "two")
	require.NoError(t, err)
	require.Len(t, res.State.Messages, 4)
}

func TestEngine_Abandon(t *testing.T) {
	g := engine.NewGraph("g").
		AddStep(&askStep{}).
		SetEntry("ask").
		AddEdge("ask", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	eng := engine.New(c, store)
	ctx := context.Background()

	_, err = eng.Run(ctx, "s1", "q")
	require.NoError(t, err)

	require.NoError(t, eng.Abandon(ctx, "s1"))
	cp, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, cp.Pending)
	assert.Equal(t, engine.End, cp.Position)

	_, err = eng.Resume(ctx, "s1", true)
	require.ErrorIs(t, err, domain.ErrNoPendingInterrupt)
}

func TestEngine_StepErrorSurfacesWithPosition(t *testing.T) {
	boom := errors.New("collaborator exploded")
	g := engine.NewGraph("g").
		AddStep(ports.StepFunc{ID: "a", Fn: func(ctx context.Context, st *domain.State) (*domain.Delta, error) {
			return nil, boom
		}}).
		SetEntry("a").
		AddEdge("a", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())
	_, err = eng.Run(context.Background(), "s1", "q")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "step a")
}

func TestEngine_Hooks(t *testing.T) {
	var steps, checkpoints, interrupts int
	hooks := domain.LifecycleHooks{
		OnStepStart:  func(ctx context.Context, ev *domain.StepEvent) { steps++ },
		OnCheckpoint: func(ctx context.Context, ev *domain.CheckpointEvent) { checkpoints++ },
		OnInterrupt:  func(ctx context.Context, ev *domain.InterruptEvent) { interrupts++ },
	}

	g := engine.NewGraph("g").
		AddStep(&askStep{}).
		SetEntry("ask").
		AddEdge("ask", engine.End)
	c, err := g.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore(), engine.WithHooks(hooks))
	ctx := context.Background()

	_, err = eng.Run(ctx, "s1", "q")
	require.NoError(t, err)
	_, err = eng.Resume(ctx, "s1", true)
	require.NoError(t, err)

	assert.Equal(t, 1, steps)       // the paused step ran once via Run
	assert.Equal(t, 1, interrupts)  // one pause
	assert.Equal(t, 2, checkpoints) // pause checkpoint + consume checkpoint
}
