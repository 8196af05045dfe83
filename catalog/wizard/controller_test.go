package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/facetbot/catalog/query"
	"github.com/m3rciful/facetbot/catalog/session"
	"github.com/m3rciful/facetbot/catalog/steps"
	"github.com/m3rciful/facetbot/catalog/views"
)

type fakeExecutor struct {
	mu      sync.Mutex
	rows    map[int][]query.Row
	queries []*query.Query
	block   bool
}

func (f *fakeExecutor) Execute(ctx context.Context, q *query.Query) ([]query.Row, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	block := f.block
	rows := f.rows[q.Target]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return rows, nil
}

func (f *fakeExecutor) last() *query.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeSink struct {
	mu      sync.Mutex
	outputs []Output
	notices []string
	fail    bool
}

func (f *fakeSink) Render(_ context.Context, out Output) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("telegram down")
	}
	f.outputs = append(f.outputs, out)
	return nil
}

func (f *fakeSink) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return nil
}

func (f *fakeSink) renders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outputs)
}

func (f *fakeSink) lastScreen() session.Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[len(f.outputs)-1].Screen
}

type failingCounter struct{}

func (failingCounter) Increment(context.Context, int64) error { return errors.New("db gone") }
func (failingCounter) Top(context.Context, int) ([]views.Stat, error) { return nil, nil }

func fp(v float64) *float64 { return &v }

func catalogRows() map[int][]query.Row {
	return map[int][]query.Row{
		1: {{Label: "Conditioner"}, {Label: "Heater"}},
		2: {{Label: "A"}, {Label: "B"}, {Label: "C"}},
		3: {{Raw: fp(0.3)}, {Raw: fp(0.6)}, {Raw: fp(1.2)}},
		4: {{Label: "Acme"}, {Label: "Bolt"}},
		5: {{ID: 42, Label: "X-100", Description: "Quiet unit", DocURL: "https://example.com/x.pdf", ImageURL: "https://example.com/x.jpg"}},
	}
}

type harness struct {
	ctrl    *Controller
	exec    *fakeExecutor
	sink    *fakeSink
	counter views.Counter
	s       *session.Session
}

func newHarness(t *testing.T, counter views.Counter, opts Options) *harness {
	t.Helper()
	if opts.PageSize == 0 {
		opts.PageSize = 10
	}
	exec := &fakeExecutor{rows: catalogRows()}
	return &harness{
		ctrl:    NewController(steps.Default(), exec, counter, opts),
		exec:    exec,
		sink:    &fakeSink{},
		counter: counter,
		s:       session.New(1),
	}
}

func (h *harness) do(token string) error {
	return h.ctrl.Handle(context.Background(), h.s, Parse(token), h.sink)
}

func (h *harness) mustDo(t *testing.T, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		require.NoError(t, h.do(tok), tok)
	}
}

func TestStartRendersGreeting(t *testing.T) {
	h := newHarness(t, nil, Options{})
	a := Parse("start")
	a.Command = true
	require.NoError(t, h.ctrl.Handle(context.Background(), h.s, a, h.sink))

	require.Equal(t, 1, h.sink.renders())
	out := h.sink.outputs[0]
	assert.Equal(t, ModeSend, out.Mode)
	assert.Equal(t, DefaultTexts().Greeting, out.Screen.Text)
	require.Len(t, out.Screen.Options, 2)
	assert.Equal(t, TokenAbout, out.Screen.Options[0].Token)
	assert.Equal(t, TokenBegin, out.Screen.Options[1].Token)
	assert.Equal(t, session.Greeting, h.s.Position)
	assert.Equal(t, 1, h.s.History.Len())
}

func TestAboutThenBack(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "about")
	assert.Equal(t, DefaultTexts().About, h.sink.lastScreen().Text)
	assert.Len(t, h.sink.lastScreen().Nav, 2)

	h.mustDo(t, "back")
	assert.Equal(t, DefaultTexts().Greeting, h.sink.lastScreen().Text)
}

func TestSingleSelectAutoAdvance(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category")
	require.Equal(t, 1, h.s.Position)

	h.mustDo(t, "category_Conditioner")
	assert.Equal(t, 2, h.s.Position)
	assert.Equal(t, []string{"Conditioner"}, h.s.Selections.Values(1))

	q := h.exec.last()
	assert.Equal(t, 2, q.Target)
	require.Len(t, q.Where, 1)
	in := q.Where[0].(query.InPredicate)
	assert.Equal(t, []string{"Conditioner"}, in.Values)

	screen := h.sink.lastScreen()
	assert.Equal(t, "Choose characteristics", screen.Text)
	assert.Equal(t, "multiple_type_A", screen.Options[0].Token)
	require.Len(t, screen.Actions, 1)
	assert.Equal(t, TokenCommit, screen.Actions[0].Token)
}

func TestMultiSelectCommit(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner")
	calls := h.exec.calls()

	h.mustDo(t, "multiple_type_A", "multiple_type_C")
	assert.Equal(t, 2, h.s.Position, "toggling must not advance")
	assert.Equal(t, calls, h.exec.calls(), "toggling must not query")

	screen := h.sink.lastScreen()
	assert.True(t, screen.Options[0].Selected)
	assert.Equal(t, "✅ A", screen.Options[0].Text)
	assert.False(t, screen.Options[1].Selected)
	assert.True(t, screen.Options[2].Selected)

	h.mustDo(t, "step-forward")
	assert.Equal(t, 3, h.s.Position)
	assert.Equal(t, []string{"A", "C"}, h.s.Selections.Values(2))

	q := h.exec.last()
	assert.Equal(t, 3, q.Target)
	require.Len(t, q.Where, 2)
	in := q.Where[1].(query.InPredicate)
	assert.Equal(t, []string{"A", "C"}, in.Values)

	labels := make([]string, 0, 3)
	for _, o := range h.sink.lastScreen().Options {
		labels = append(labels, o.Text)
	}
	assert.Equal(t, []string{"0.0 - 0.4", "0.5 - 0.9", "1.0 - 1.4"}, labels)
}

func screenTokens(s session.Screen) []string {
	var out []string
	for _, group := range [][]session.Option{s.Options, s.Actions, s.Nav} {
		for _, o := range group {
			out = append(out, o.Token)
		}
	}
	for _, p := range s.Pager {
		out = append(out, p.Token)
	}
	return out
}

func TestLongLabelsFitCallbackData(t *testing.T) {
	long := "Инверторный компрессор с низким уровнем шума"
	h := newHarness(t, nil, Options{})
	h.exec.rows[1] = []query.Row{{Label: long + " (настенный)"}, {Label: "Heater"}}
	h.exec.rows[2] = []query.Row{{Label: long}, {Label: "A"}}

	h.mustDo(t, "start", "select-category")
	first := h.sink.lastScreen()
	for _, tok := range screenTokens(first) {
		assert.LessOrEqual(t, len(tok), MaxTokenBytes, tok)
	}
	assert.Equal(t, "category_Heater", first.Options[1].Token, "short values travel as is")

	h.mustDo(t, first.Options[0].Token)
	require.Equal(t, 2, h.s.Position)
	assert.Equal(t, []string{long + " (настенный)"}, h.s.Selections.Values(1))

	second := h.sink.lastScreen()
	for _, tok := range screenTokens(second) {
		assert.LessOrEqual(t, len(tok), MaxTokenBytes, tok)
	}
	h.mustDo(t, second.Options[0].Token, "step-forward")
	assert.Equal(t, []string{long}, h.s.Selections.Values(2))
	in := h.exec.last().Where[1].(query.InPredicate)
	assert.Equal(t, []string{long}, in.Values)
}

func TestValueKey(t *testing.T) {
	assert.Equal(t, "A", ValueKey("type", "A"))
	hashed := ValueKey("type", strings.Repeat("x", MaxTokenBytes))
	assert.True(t, strings.HasPrefix(hashed, "#"))
	assert.Equal(t, hashed, ValueKey("type", strings.Repeat("x", MaxTokenBytes)))
	assert.NotEqual(t, "#a", ValueKey("type", "#a"), "values that look hashed are hashed too")
}

func TestToggleTwiceRestoresSelection(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "multiple_type_B", "multiple_type_B")
	assert.Empty(t, h.s.Selections.Values(2))
	assert.Equal(t, 2, h.s.Position)
}

func TestPlainTokenOnMultiStepToggles(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "type_B")
	assert.Equal(t, 2, h.s.Position)
	assert.Equal(t, []string{"B"}, h.s.Selections.Values(2))
}

func TestEmptyResultPage(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.exec.rows[4] = nil
	h.mustDo(t, "start", "select-category", "category_Conditioner", "step-forward", "step-forward")

	assert.Equal(t, 4, h.s.Position)
	screen := h.sink.lastScreen()
	assert.Equal(t, DefaultTexts().NoData, screen.Text)
	assert.Empty(t, screen.Options)
	assert.Empty(t, screen.Pager)
	assert.Empty(t, screen.Actions)
	assert.Len(t, screen.Nav, 2)
}

func TestBackRestoresAndInvalidates(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "multiple_type_A", "step-forward")
	require.Equal(t, 3, h.s.Position)
	calls := h.exec.calls()

	h.mustDo(t, "back")
	assert.Equal(t, 2, h.s.Position)
	assert.Equal(t, []string{"Conditioner"}, h.s.Selections.Values(1))
	assert.Empty(t, h.s.Selections.Values(2))
	for _, o := range h.sink.lastScreen().Options {
		assert.False(t, o.Selected)
	}

	h.mustDo(t, "back")
	assert.Equal(t, 1, h.s.Position)
	assert.Empty(t, h.s.Selections.Positions())
	assert.Equal(t, "Choose the equipment category", h.sink.lastScreen().Text)

	h.mustDo(t, "back")
	assert.Equal(t, session.Greeting, h.s.Position)
	assert.Equal(t, calls, h.exec.calls(), "back must not query")

	renders := h.sink.renders()
	err := h.do("back")
	assert.ErrorIs(t, err, ErrNoPriorState)
	assert.Equal(t, renders, h.sink.renders())
	assert.Equal(t, []string{DefaultTexts().NoPrior}, h.sink.notices)
}

func TestPaginationAndIdempotentRerender(t *testing.T) {
	h := newHarness(t, nil, Options{PageSize: 2})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "step-forward")
	require.Equal(t, 3, h.s.Position)

	first := h.sink.lastScreen()
	require.Len(t, first.Options, 2)
	require.Len(t, first.Pager, 2)
	assert.Equal(t, "1 of 2", first.Pager[0].Text)

	renders := h.sink.renders()
	depth := h.s.History.Len()
	h.mustDo(t, "no_answer")
	assert.Equal(t, renders, h.sink.renders())

	h.mustDo(t, "next_99")
	assert.Equal(t, 1, h.s.Pager.Index)
	second := h.sink.lastScreen()
	require.Len(t, second.Options, 1)
	assert.Equal(t, "1.0 - 1.4", second.Options[0].Text)
	assert.Equal(t, "prev_0", second.Pager[0].Token)

	renders = h.sink.renders()
	h.mustDo(t, "next_1")
	assert.Equal(t, renders, h.sink.renders(), "identical screen must not be re-rendered")
	assert.Equal(t, depth, h.s.History.Len(), "paging must not grow history")

	h.mustDo(t, "back")
	assert.Equal(t, 2, h.s.Position)
}

func TestLeafSelection(t *testing.T) {
	counter := views.NewMemoryCounter()
	h := newHarness(t, counter, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "step-forward", "step-forward", "multiple_brand_Acme", "step-forward")
	require.Equal(t, 5, h.s.Position)
	assert.Equal(t, "model_42", h.sink.lastScreen().Options[0].Token)

	renders := h.sink.renders()
	h.mustDo(t, "model_42")

	require.Equal(t, renders+2, h.sink.renders())
	detail := h.sink.outputs[renders].Detail
	require.NotNil(t, detail)
	assert.Equal(t, int64(42), detail.ID)
	assert.Equal(t, "https://example.com/x.pdf", detail.DocURL)
	assert.Contains(t, detail.Caption, "X-100")
	assert.Contains(t, detail.Caption, "Quiet unit")

	greet := h.sink.outputs[renders+1]
	assert.Equal(t, ModeSend, greet.Mode)
	assert.Equal(t, DefaultTexts().Greeting, greet.Screen.Text)

	assert.Equal(t, session.Greeting, h.s.Position)
	assert.Equal(t, 1, h.s.History.Len())
	assert.Empty(t, h.s.Selections.Positions())
	assert.Equal(t, int64(1), counter.Count(42))
}

func TestLeafCounterFailureDoesNotBlockDetail(t *testing.T) {
	h := newHarness(t, failingCounter{}, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "step-forward", "step-forward", "step-forward")
	require.Equal(t, 5, h.s.Position)

	require.NoError(t, h.do("model_42"))
	var detailShown bool
	for _, out := range h.sink.outputs {
		if out.Detail != nil {
			detailShown = true
		}
	}
	assert.True(t, detailShown)
	assert.Equal(t, session.Greeting, h.s.Position)
}

func TestLeafNotFound(t *testing.T) {
	h := newHarness(t, views.NewMemoryCounter(), Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "step-forward", "step-forward", "step-forward")

	err := h.do("model_999")
	assert.ErrorIs(t, err, ErrLeafNotFound)
	assert.Equal(t, 5, h.s.Position)
	assert.True(t, strings.HasPrefix(h.sink.lastScreen().Text, DefaultTexts().Unavailable))
}

func TestQueryTimeoutStaysOnStep(t *testing.T) {
	h := newHarness(t, nil, Options{QueryTimeout: 20 * time.Millisecond})
	h.mustDo(t, "start", "select-category")
	depth := h.s.History.Len()

	h.exec.block = true
	err := h.do("category_Heater")

	var qe *query.QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, h.s.Position)
	assert.Empty(t, h.s.Selections.Values(1))
	assert.Equal(t, depth, h.s.History.Len())
	assert.True(t, strings.HasPrefix(h.sink.lastScreen().Text, DefaultTexts().TryLater))
}

func TestMalformedRangeReprompts(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner", "step-forward", "multiple_power_0.5 - 0.9", "step-forward")
	require.Equal(t, 4, h.s.Position)

	h.s.Selections.Set(3, "0.3 - 0.7")
	err := h.do("step-forward")

	var mre *query.MalformedRangeError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 3, mre.Position)
	assert.Equal(t, 3, h.s.Position)
	assert.Empty(t, h.s.Selections.Values(3))
	assert.True(t, strings.HasPrefix(h.sink.lastScreen().Text, DefaultTexts().Reselect))
}

func TestUnknownAndOutdatedTokens(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.mustDo(t, "start", "select-category", "category_Conditioner")
	renders := h.sink.renders()

	assert.ErrorIs(t, h.do("garbage"), ErrUnknownAction)
	assert.ErrorIs(t, h.do("colour_red"), ErrUnknownAction)
	assert.ErrorIs(t, h.do("category_Heater"), ErrOutdated)
	assert.ErrorIs(t, h.do("multiple_type_Z"), ErrOutdated)

	assert.Equal(t, renders, h.sink.renders())
	assert.Equal(t, 2, h.s.Position)
	assert.Equal(t, []string{"Conditioner"}, h.s.Selections.Values(1))
	assert.Len(t, h.sink.notices, 4)
}

func TestRenderFailureIsReported(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.sink.fail = true
	err := h.do("start")
	var re *RenderError
	require.ErrorAs(t, err, &re)
}
