package wizard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/facetbot/catalog/metrics"
	"github.com/m3rciful/facetbot/catalog/steps"
)

func TestParse(t *testing.T) {
	cases := []struct {
		token string
		want  Action
	}{
		{"start", Action{Kind: KindStart}},
		{"about", Action{Kind: KindAbout}},
		{"select-category", Action{Kind: KindBegin}},
		{"back", Action{Kind: KindBack}},
		{"no_answer", Action{Kind: KindNoAnswer}},
		{"step-forward", Action{Kind: KindCommit}},
		{"prev_0", Action{Kind: KindPage, Page: 0}},
		{"next_3", Action{Kind: KindPage, Page: 3}},
		{"brand_Acme", Action{Kind: KindSelect, Facet: "brand", Value: "Acme"}},
		{"brand_Acme_Pro", Action{Kind: KindSelect, Facet: "brand", Value: "Acme_Pro"}},
		{"multiple_type_A", Action{Kind: KindToggle, Facet: "type", Value: "A"}},
		{"multiple_power_0.5 - 0.9", Action{Kind: KindToggle, Facet: "power", Value: "0.5 - 0.9"}},
		{"multiple_", Action{Kind: KindUnknown}},
		{"multiple_type", Action{Kind: KindUnknown}},
		{"brand_", Action{Kind: KindUnknown}},
		{"", Action{Kind: KindUnknown}},
		{"hello", Action{Kind: KindUnknown}},
	}
	for _, tc := range cases {
		got := Parse(tc.token)
		tc.want.Raw = tc.token
		assert.Equal(t, tc.want, got, tc.token)
	}
}

func TestTokensRoundTrip(t *testing.T) {
	a := Parse(ToggleToken("power", "1.0 - 1.4"))
	assert.Equal(t, KindToggle, a.Kind)
	assert.Equal(t, "1.0 - 1.4", a.Value)

	a = Parse(SelectToken("model", "42"))
	assert.Equal(t, KindSelect, a.Kind)
	assert.Equal(t, "42", a.Value)
}

func newEngine(t *testing.T) (*Engine, *fakeSink) {
	t.Helper()
	exec := &fakeExecutor{rows: catalogRows()}
	ctrl := NewController(steps.Default(), exec, nil, Options{PageSize: 10})
	e := NewEngine(ctrl, time.Hour, 256, metrics.New())
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, &fakeSink{}
}

func TestEngineSerializesPerChat(t *testing.T) {
	e, sink := newEngine(t)
	ctx := context.Background()

	for _, tok := range []string{"start", "select-category", "category_Conditioner"} {
		require.NoError(t, e.Do(ctx, 1, Parse(tok), sink))
	}

	// 21 concurrent toggles of the same value leave it selected exactly when the
	// count is odd, which only holds if no two toggles interleave.
	var wg sync.WaitGroup
	results := make(chan (<-chan error), 21)
	for i := 0; i < 21; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, err := e.Dispatch(ctx, 1, Parse("multiple_type_A"), sink)
			if assert.NoError(t, err) {
				results <- done
			}
		}()
	}
	wg.Wait()
	close(results)
	for done := range results {
		assert.NoError(t, <-done)
	}

	s, ok := e.sessions.Get(1)
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, s.Selections.Values(2))
}

func TestEngineIsolatesChats(t *testing.T) {
	e, sink := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Do(ctx, 1, Parse("select-category"), sink))
	require.NoError(t, e.Do(ctx, 1, Parse("category_Heater"), sink))
	require.NoError(t, e.Do(ctx, 2, Parse("select-category"), sink))

	one, _ := e.sessions.Get(1)
	two, _ := e.sessions.Get(2)
	assert.Equal(t, 2, one.Position)
	assert.Equal(t, 1, two.Position)
	assert.Empty(t, two.Selections.Positions())
}
