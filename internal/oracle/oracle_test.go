package oracle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/testutil"
)

// leakOptions ignores goroutines owned by the HTTP transport and the
// opencensus view worker that genai's dependencies start from init.
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, leakOptions...)
}

var promptLine = regexp.MustCompile(`(?m)^(\d+)\. name: site-(\d+)$`)

// answerBy answers every prompt entry with labelFor(site number).
func answerBy(labelFor func(site int) string) testutil.CompleterFunc {
	return func(_ context.Context, _, user string) (string, error) {
		var parts []string
		for _, m := range promptLine.FindAllStringSubmatch(user, -1) {
			var idx, site int
			fmt.Sscan(m[1], &idx)
			fmt.Sscan(m[2], &site)
			parts = append(parts, fmt.Sprintf(`{"index": %d, "label": %q}`, idx, labelFor(site)))
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	}
}

func newTestClassifier(t *testing.T, client Completer, cfg Config, sleeper *testutil.RecordingSleeper, opts ...Option) *Classifier {
	t.Helper()
	if cfg.Labels == nil {
		cfg.Labels = []string{"Dev", "Docs"}
	}
	opts = append([]Option{WithSleep(sleeper.Sleep), WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(client, cfg, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_DefaultsAndVocabulary(t *testing.T) {
	c, err := New(testutil.NewScriptedCompleter(), Config{Labels: []string{"Dev", "Dev", "Docs"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Dev", "Docs", catalog.DefaultLabel}, c.Labels())
	assert.Equal(t, DefaultBatchSize, c.cfg.BatchSize)
	assert.Equal(t, DefaultMaxAttempts, c.cfg.MaxAttempts)
	assert.Equal(t, time.Second, c.cfg.Backoff)
	assert.Equal(t, time.Second, c.cfg.Delay)

	_, err = New(nil, Config{})
	assert.Error(t, err)

	_, err = New(testutil.NewScriptedCompleter(), Config{Labels: []string{""}})
	assert.Error(t, err)
}

func TestClassifyBatch_MalformedResponseFallsBackWholeBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := testutil.NewScriptedCompleter(testutil.Reply{Text: "I think these are all developer tools!"})
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, client, Config{}, sleeper, WithMetrics(metrics))

	labels := c.ClassifyBatch(context.Background(), testutil.Records(20))

	require.Len(t, labels, 20)
	for _, l := range labels {
		assert.Equal(t, catalog.DefaultLabel, l)
	}
	assert.Len(t, client.Calls(), 1, "parse failures are not retried")
	assert.Empty(t, sleeper.Waits())
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Batches.WithLabelValues(OutcomeFallback)))
	assert.Equal(t, 0.0, promtest.ToFloat64(metrics.Batches.WithLabelValues(OutcomeOK)))
}

func TestClassify_FallbackIsTaggedAndNeverFails(t *testing.T) {
	client := testutil.NewScriptedCompleter(testutil.Reply{Text: `{"index": 1}`})
	c := newTestClassifier(t, client, Config{}, testutil.NewRecordingSleeper())

	out, err := c.Classify(context.Background(), testutil.Records(3))
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, cl := range out {
		assert.Equal(t, catalog.DefaultLabel, cl.Group)
		assert.Equal(t, catalog.ViaFallback, cl.Via)
		assert.Equal(t, fmt.Sprintf("site-%d", i+1), cl.Record.Name)
	}
}

func TestClassifyBatch_RetriesWithExponentialBackoff(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	transient := errors.New("connection reset")
	client := testutil.NewScriptedCompleter(
		testutil.Reply{Err: transient},
		testutil.Reply{Err: &StatusError{Backend: "chat", Code: 503}},
		testutil.Reply{Text: `[{"index": 1, "label": "Dev"}, {"index": 2, "label": "Docs"}]`},
	)
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, client, Config{}, sleeper, WithMetrics(metrics))

	labels := c.ClassifyBatch(context.Background(), testutil.Records(2))

	assert.Equal(t, []string{"Dev", "Docs"}, labels)
	assert.Len(t, client.Calls(), 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.Waits())
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.Retries))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Batches.WithLabelValues(OutcomeOK)))
}

func TestClassifyBatch_RetriesExhausted(t *testing.T) {
	client := testutil.NewScriptedCompleter(testutil.Reply{Err: context.DeadlineExceeded})
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, client, Config{MaxAttempts: 3, Backoff: 500 * time.Millisecond}, sleeper)

	out, err := c.Classify(context.Background(), testutil.Records(4))
	require.NoError(t, err)

	assert.Len(t, client.Calls(), 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, sleeper.Waits())
	for _, cl := range out {
		assert.Equal(t, catalog.DefaultLabel, cl.Group)
		assert.Equal(t, catalog.ViaFallback, cl.Via)
	}
}

func TestClassify_NullReplyFallsBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := testutil.NewScriptedCompleter(testutil.Reply{Text: "null"})
	c := newTestClassifier(t, client, Config{}, testutil.NewRecordingSleeper(), WithMetrics(metrics))

	out, err := c.Classify(context.Background(), testutil.Records(3))
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, cl := range out {
		assert.Equal(t, catalog.DefaultLabel, cl.Group)
		assert.Equal(t, catalog.ViaFallback, cl.Via)
	}
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Batches.WithLabelValues(OutcomeFallback)))
	assert.Equal(t, 0.0, promtest.ToFloat64(metrics.Batches.WithLabelValues(OutcomeOK)))
}

func TestClassifyBatch_BackoffIsCapped(t *testing.T) {
	client := testutil.NewScriptedCompleter(testutil.Reply{Err: errors.New("connection reset")})
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, client, Config{MaxAttempts: 70, Backoff: time.Second}, sleeper)

	c.ClassifyBatch(context.Background(), testutil.Records(1))

	waits := sleeper.Waits()
	require.Len(t, waits, 69)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waits[:3])
	for i, d := range waits {
		assert.Positive(t, d, "wait %d", i)
		assert.LessOrEqual(t, d, MaxBackoff, "wait %d", i)
	}
	assert.Equal(t, MaxBackoff, waits[len(waits)-1])
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{time.Second, 1, time.Second},
		{time.Second, 2, 2 * time.Second},
		{time.Second, 3, 4 * time.Second},
		{time.Second, 7, MaxBackoff},
		{time.Second, 200, MaxBackoff},
		{2 * MaxBackoff, 1, MaxBackoff},
		{0, 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.base, tt.attempt), "backoff(%v, %d)", tt.base, tt.attempt)
	}
}

func TestClassifyBatch_AnswerRepair(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	// 1: valid, 2: out of vocabulary, 3: missing, 4: duplicate (first wins),
	// index 9 and 0 out of range.
	reply := "```json\n" + `[
		{"index": 1, "label": "Dev"},
		{"index": 2, "label": "Cooking"},
		{"index": 4, "group": "Docs"},
		{"index": 4, "label": "Dev"},
		{"index": 9, "label": "Dev"},
		{"index": 0, "label": "Dev"}
	]` + "\n```"
	c := newTestClassifier(t, testutil.NewScriptedCompleter(testutil.Reply{Text: reply}), Config{}, testutil.NewRecordingSleeper(), WithMetrics(metrics))

	out, err := c.Classify(context.Background(), testutil.Records(4))
	require.NoError(t, err)

	got := make([]string, len(out))
	via := make([]catalog.Via, len(out))
	for i, cl := range out {
		got[i] = cl.Group
		via[i] = cl.Via
	}
	assert.Equal(t, []string{"Dev", catalog.DefaultLabel, catalog.DefaultLabel, "Docs"}, got)
	assert.Equal(t, []catalog.Via{catalog.ViaOracle, catalog.ViaDefault, catalog.ViaDefault, catalog.ViaOracle}, via)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Coerced))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Missing))
}

func TestClassifyBatch_DefaultLabelIsInVocabulary(t *testing.T) {
	reply := `[{"index": 1, "label": "其他"}]`
	c := newTestClassifier(t, testutil.NewScriptedCompleter(testutil.Reply{Text: reply}),
		Config{Labels: []string{"前端开发"}, DefaultLabel: "其他"}, testutil.NewRecordingSleeper())

	out, err := c.Classify(context.Background(), testutil.Records(1))
	require.NoError(t, err)
	assert.Equal(t, "其他", out[0].Group)
	assert.Equal(t, catalog.ViaOracle, out[0].Via)
}

func TestClassify_ChunksAndDelaysBetweenBatches(t *testing.T) {
	var batchSizes []int
	client := testutil.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		batchSizes = append(batchSizes, len(promptLine.FindAllString(user, -1)))
		return answerBy(func(int) string { return "Dev" })(ctx, system, user)
	})
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, client, Config{}, sleeper)

	out, err := c.Classify(context.Background(), testutil.Records(45))
	require.NoError(t, err)

	require.Len(t, out, 45)
	assert.Equal(t, []int{20, 20, 5}, batchSizes)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.Waits())
	for i, cl := range out {
		assert.Equal(t, fmt.Sprintf("site-%d", i+1), cl.Record.Name)
		assert.Equal(t, "Dev", cl.Group)
	}
}

func TestClassify_NegativeDelayDisablesPause(t *testing.T) {
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, answerBy(func(int) string { return "Dev" }), Config{BatchSize: 2, Delay: -1}, sleeper)

	_, err := c.Classify(context.Background(), testutil.Records(5))
	require.NoError(t, err)
	assert.Empty(t, sleeper.Waits())
}

func TestClassify_ParallelKeepsInputOrder(t *testing.T) {
	defer goleak.VerifyNone(t, append(leakOptions, goleak.IgnoreCurrent())...)

	labelFor := func(site int) string {
		if site%2 == 0 {
			return "Docs"
		}
		return "Dev"
	}
	sleeper := testutil.NewRecordingSleeper()
	c := newTestClassifier(t, answerBy(labelFor), Config{BatchSize: 3, Parallelism: 4}, sleeper)

	out, err := c.Classify(context.Background(), testutil.Records(31))
	require.NoError(t, err)

	require.Len(t, out, 31)
	for i, cl := range out {
		assert.Equal(t, fmt.Sprintf("site-%d", i+1), cl.Record.Name)
		assert.Equal(t, labelFor(i+1), cl.Group)
		assert.Equal(t, catalog.ViaOracle, cl.Via)
	}
	assert.Equal(t, 10, sleeper.Count(time.Second), "11 batches, 10 dispatch delays")
}

func TestClassify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, parallelism := range []int{1, 3} {
		c := newTestClassifier(t, testutil.NewScriptedCompleter(testutil.Reply{Text: "[]"}),
			Config{BatchSize: 2, Parallelism: parallelism}, testutil.NewRecordingSleeper())
		_, err := c.Classify(ctx, testutil.Records(5))
		assert.ErrorIs(t, err, context.Canceled, "parallelism %d", parallelism)
	}
}

func TestClassify_Empty(t *testing.T) {
	client := testutil.NewScriptedCompleter()
	c := newTestClassifier(t, client, Config{}, testutil.NewRecordingSleeper())

	out, err := c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, client.Calls())
}

func TestBuildPrompt(t *testing.T) {
	long := strings.Repeat("界", 150)
	batch := []catalog.Record{
		{Name: "Go", URL: "https://go.dev/"},
		{Name: long, URL: "https://example.com/"},
	}

	system, user := BuildPrompt(batch, []string{"Dev", "其他"}, "其他")

	assert.NotEmpty(t, system)
	assert.Contains(t, user, "- Dev\n- 其他\n")
	assert.Contains(t, user, "1. name: Go\n   url: https://go.dev/\n")
	assert.Contains(t, user, "2. name: "+strings.Repeat("界", 100)+"\n")
	assert.NotContains(t, user, strings.Repeat("界", 101))
	assert.Contains(t, user, `"index": 1, "label"`)
	assert.Contains(t, user, `use "其他"`)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []Answer
		wantErr bool
	}{
		{name: "plain", text: `[{"index": 1, "label": "Dev"}]`, want: []Answer{{1, "Dev"}}},
		{name: "fenced json", text: "```json\n[{\"index\": 2, \"label\": \"Docs\"}]\n```", want: []Answer{{2, "Docs"}}},
		{name: "fenced bare", text: "```\n[{\"index\": 1, \"label\": \"Dev\"}]\n```", want: []Answer{{1, "Dev"}}},
		{name: "group alias", text: `[{"index": 1, "group": " 其他 "}]`, want: []Answer{{1, "其他"}}},
		{name: "label preferred over group", text: `[{"index": 1, "label": "A", "group": "B"}]`, want: []Answer{{1, "A"}}},
		{name: "empty array", text: `[]`, want: []Answer{}},
		{name: "empty", text: "  ", wantErr: true},
		{name: "null", text: "null", wantErr: true},
		{name: "fenced null", text: "```json\nnull\n```", wantErr: true},
		{name: "prose", text: "Sure! Here you go.", wantErr: true},
		{name: "object", text: `{"index": 1, "label": "Dev"}`, wantErr: true},
		{name: "strings", text: `["Dev", "Docs"]`, wantErr: true},
		{name: "missing index", text: `[{"label": "Dev"}]`, wantErr: true},
		{name: "missing label", text: `[{"index": 1}]`, wantErr: true},
		{name: "fractional index", text: `[{"index": 1.5, "label": "Dev"}]`, wantErr: true},
		{name: "string index", text: `[{"index": "1", "label": "Dev"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.text)
			if tt.wantErr {
				var perr *ParseError
				require.ErrorAs(t, err, &perr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
