package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dugoutlabs/dugout/pkg/adapters/memory"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// markStep appends a marker message and optionally pauses first.
type markStep struct {
	id    string
	pause bool
}

func (s *markStep) Name() string { return s.id }

func (s *markStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	if s.pause {
		return nil, &domain.Paused{
			Interrupt: &domain.Interrupt{
				Path:   []string{s.id},
				Kind:   domain.InterruptApproval,
				Prompt: "go on?",
			},
			Delta: &domain.Delta{Messages: []domain.Message{
				{Role: domain.RoleAssistant, Content: s.id + ":before-pause"},
			}},
		}
	}
	return &domain.Delta{Messages: []domain.Message{
		{Role: domain.RoleAssistant, Content: s.id},
	}}, nil
}

func (s *markStep) Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error) {
	if _, ok := value.(bool); !ok {
		return nil, domain.ErrInvalidResume
	}
	return &domain.Delta{Messages: []domain.Message{
		{Role: domain.RoleAssistant, Content: s.id + ":resumed"},
	}}, nil
}

func messages(st *domain.State) []string {
	var out []string
	for _, m := range st.Messages {
		if m.Role == domain.RoleAssistant {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestSubgraph_RunsAsSingleStep(t *testing.T) {
	inner := engine.NewGraph("inner").
		AddStep(&markStep{id: "x"}).
		AddStep(&markStep{id: "y"}).
		SetEntry("x").
		AddEdge("x", "y").
		AddEdge("y", engine.End)
	sub, err := engine.NewSubgraph("inner", inner)
	require.NoError(t, err)

	outer := engine.NewGraph("outer").
		AddStep(&markStep{id: "a"}).
		AddStep(sub).
		AddStep(&markStep{id: "b"}).
		SetEntry("a").
		AddEdge("a", "inner").
		AddEdge("inner", "b").
		AddEdge("b", engine.End)
	c, err := outer.Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	eng := engine.New(c, store)

	res, err := eng.Run(context.Background(), "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "y", "b"}, messages(res.State))

	// The subgraph commits exactly one checkpoint: internal steps are opaque,
	// so three outer steps yield three checkpoints.
	cp, err := store.Latest(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, cp.Seq)
}

func TestSubgraph_InterruptPrefixesPathAndKeepsProgress(t *testing.T) {
	inner := engine.NewGraph("inner").
		AddStep(&markStep{id: "x"}).
		AddStep(&markStep{id: "gate", pause: true}).
		AddStep(&markStep{id: "y"}).
		SetEntry("x").
		AddEdge("x", "gate").
		AddEdge("gate", "y").
		AddEdge("y", engine.End)
	sub, err := engine.NewSubgraph("inner", inner)
	require.NoError(t, err)

	outer := engine.NewGraph("outer").
		AddStep(sub).
		SetEntry("inner").
		AddEdge("inner", engine.End)
	c, err := outer.Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	eng := engine.New(c, store)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "q")
	require.NoError(t, err)
	require.False(t, res.Terminal())
	assert.Equal(t, []string{"inner", "gate"}, res.Interrupt.Path)
	assert.Equal(t, "gate", res.Interrupt.Step())

	// Progress before the pause is checkpointed.
	cp, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "gate:before-pause"}, messages(cp.State))
	assert.Equal(t, "inner", cp.Position)

	// Resume finishes the subgraph and the outer walk.
	res, err = eng.Resume(ctx, "s1", true)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Equal(t, []string{"x", "gate:before-pause", "gate:resumed", "y"}, messages(res.State))
}

func TestSubgraph_NestedTwoLevels(t *testing.T) {
	innermost := engine.NewGraph("deep").
		AddStep(&markStep{id: "gate", pause: true}).
		SetEntry("gate").
		AddEdge("gate", engine.End)
	deep, err := engine.NewSubgraph("deep", innermost)
	require.NoError(t, err)

	middle := engine.NewGraph("mid").
		AddStep(deep).
		SetEntry("deep").
		AddEdge("deep", engine.End)
	mid, err := engine.NewSubgraph("mid", middle)
	require.NoError(t, err)

	outer := engine.NewGraph("outer").
		AddStep(mid).
		SetEntry("mid").
		AddEdge("mid", engine.End)
	c, err := outer.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "q")
	require.NoError(t, err)
	require.False(t, res.Terminal())
	assert.Equal(t, []string{"mid", "deep", "gate"}, res.Interrupt.Path)

	res, err = eng.Resume(ctx, "s1", true)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Equal(t, []string{"gate:resumed"}, messages(res.State))
}

func TestSubgraph_InvalidResumePropagates(t *testing.T) {
	inner := engine.NewGraph("inner").
		AddStep(&markStep{id: "gate", pause: true}).
		SetEntry("gate").
		AddEdge("gate", engine.End)
	sub, err := engine.NewSubgraph("inner", inner)
	require.NoError(t, err)

	outer := engine.NewGraph("outer").
		AddStep(sub).
		SetEntry("inner").
		AddEdge("inner", engine.End)
	c, err := outer.Compile()
	require.NoError(t, err)

	eng := engine.New(c, memory.NewStore())
	ctx := context.Background()

	_, err = eng.Run(ctx, "s1", "q")
	require.NoError(t, err)

	_, err = eng.Resume(ctx, "s1", "garbage")
	require.ErrorIs(t, err, domain.ErrInvalidResume)

	res, err := eng.Resume(ctx, "s1", true)
	require.NoError(t, err)
	require.True(t, res.Terminal())
}

var _ ports.Resumable = (*markStep)(nil)
