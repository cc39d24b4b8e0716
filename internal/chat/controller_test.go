package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iksnae/leby/internal/api"
	"github.com/iksnae/leby/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const (
	tick    = 5 * time.Millisecond
	waitFor = 2 * time.Second
)

var errNotReady = &api.APIError{Op: "query", StatusCode: http.StatusConflict, Detail: "Session not ready", Kind: api.KindNotReady}

// fakeAPI is a scripted SessionAPI. Status replies are consumed in order and
// the last one repeats.
type fakeAPI struct {
	mu          sync.Mutex
	ids         []string
	startErr    error
	startGate   chan struct{}
	statuses    []api.StatusResponse
	statusErr   error
	queryErrs   []error
	queryGate   chan struct{}
	starts      []string
	statusCalls int
	queries     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{statuses: []api.StatusResponse{{Status: api.StatusProcessing}}}
}

func (f *fakeAPI) StartFromText(ctx context.Context, text, filename string) (*api.StartResponse, error) {
	f.mu.Lock()
	f.starts = append(f.starts, filename)
	id := "s1"
	if n := len(f.starts); n <= len(f.ids) {
		id = f.ids[n-1]
	}
	err, gate := f.startErr, f.startGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &api.StartResponse{SessionID: id, Filename: filename}, nil
}

func (f *fakeAPI) Status(ctx context.Context, sessionID string) (*api.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &st, nil
}

func (f *fakeAPI) Query(ctx context.Context, sessionID, query string) (*api.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	var err error
	if len(f.queryErrs) > 0 {
		err = f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
	}
	gate := f.queryGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &api.QueryResponse{Response: "answer to " + query}, nil
}

func (f *fakeAPI) setStatus(st ...api.StatusResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = st
}

func (f *fakeAPI) setQueryErrs(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErrs = errs
}

func (f *fakeAPI) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func (f *fakeAPI) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeAPI) sentQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// noticeLog records notices delivered by the controller.
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) add(v Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, v)
}

func (n *noticeLog) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

func newTestController(t *testing.T, f SessionAPI) (*Controller, *noticeLog) {
	t.Helper()
	notices := &noticeLog{}
	c := NewController(f, Options{PollInterval: tick, OnNotice: notices.add})
	t.Cleanup(c.Close)
	return c, notices
}

func countPlaceholders(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Placeholder {
			n++
		}
	}
	return n
}

func waitIdle(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Snapshot().Polling }, waitFor, tick)
	return c.Snapshot()
}

func TestStart_RejectsShortText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "99 chars", text: testutil.Text(99)},
		{name: "padded 99 chars", text: "   \n" + testutil.Text(99) + "\t  "},
		{name: "only spaces", text: "                                                                                                                  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI()
			c, notices := newTestController(t, f)

			err := c.Start(context.Background(), tt.text, "doc.txt")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, MinTextLength, verr.Min)

			snap := c.Snapshot()
			assert.Equal(t, PhaseInput, snap.Phase)
			assert.Empty(t, snap.SessionID)
			assert.False(t, snap.Polling)
			assert.Equal(t, 0, f.startCount())

			got := notices.all()
			require.Len(t, got, 1)
			assert.Equal(t, NoticeWarning, got[0].Level)
		})
	}
}

func TestStart_AcceptsExactlyMinimum(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(MinTextLength), "doc.txt"))
	assert.Equal(t, 1, f.startCount())
	assert.Equal(t, PhaseProcessing, c.Snapshot().Phase)
}

func TestStart_PollsUntilReady(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(
		api.StatusResponse{Status: api.StatusProcessing},
		api.StatusResponse{Status: api.StatusProcessing},
		api.StatusResponse{Status: api.StatusReady, Summary: "X"},
	)
	c, notices := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	snap := c.Snapshot()
	assert.Equal(t, PhaseProcessing, snap.Phase)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, "lease.pdf", snap.Label)
	assert.True(t, snap.Polling)

	snap = waitIdle(t, c)
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.True(t, snap.Ready)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, SenderAssistant, snap.Messages[0].Sender)
	assert.Equal(t, "X", snap.Messages[0].Text)
	assert.Equal(t, 3, f.statusCount())
	assert.Empty(t, notices.all())

	starts, stops := c.pollCounts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)

	// no further polling once terminal
	time.Sleep(5 * tick)
	assert.Equal(t, 3, f.statusCount())
}

func TestStart_EmptySummaryFallsBack(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(api.StatusResponse{Status: api.StatusReady})
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	snap := waitIdle(t, c)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, fallbackSummary, snap.Messages[0].Text)
}

func TestStart_RequestFailure(t *testing.T) {
	f := newFakeAPI()
	f.startErr = &api.APIError{Op: "start", StatusCode: 500, Detail: "An error occurred: quota exceeded", Kind: api.KindStatus}
	c, notices := newTestController(t, f)

	err := c.Start(context.Background(), testutil.Text(150), "lease.pdf")
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, PhaseInput, snap.Phase)
	assert.Empty(t, snap.SessionID)
	assert.False(t, snap.Polling)

	got := notices.all()
	require.Len(t, got, 1)
	assert.Equal(t, NoticeError, got[0].Level)
	assert.Contains(t, got[0].Text, "quota exceeded")
}

func TestPoll_TerminalFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    api.StatusResponse
		statusErr error
	}{
		{name: "error status", status: api.StatusResponse{Status: api.StatusError}},
		{name: "transport failure", statusErr: &api.APIError{Op: "status", Kind: api.KindTransport, Err: errors.New("connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI()
			f.setStatus(tt.status)
			f.statusErr = tt.statusErr
			c, notices := newTestController(t, f)

			require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
			snap := waitIdle(t, c)

			assert.Equal(t, PhaseInput, snap.Phase)
			assert.False(t, snap.Ready)
			assert.Empty(t, snap.SessionID)
			assert.Empty(t, snap.Messages)

			got := notices.all()
			require.Len(t, got, 1)
			assert.Equal(t, NoticeError, got[0].Level)

			starts, stops := c.pollCounts()
			assert.Equal(t, 1, starts)
			assert.Equal(t, 1, stops)
		})
	}
}

func TestPoll_UnknownStatusKeepsPolling(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(
		api.StatusResponse{Status: "QUEUED"},
		api.StatusResponse{Status: api.StatusReady, Summary: "done"},
	)
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "a.txt"))
	snap := waitIdle(t, c)
	assert.True(t, snap.Ready)
	assert.Equal(t, 2, f.statusCount())
}

func TestPoll_GeneralModeErrorKeepsChat(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(api.StatusResponse{Status: api.StatusError})
	c, notices := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	snap := waitIdle(t, c)

	assert.Equal(t, PhaseChat, snap.Phase)
	assert.False(t, snap.Ready)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, Greeting, snap.Messages[0].Text)
	require.Len(t, notices.all(), 1)
}

func TestReset_Idempotent(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	c.Ask(context.Background(), "anything?")

	c.Reset()
	once := c.Snapshot()
	c.Reset()
	twice := c.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, PhaseInput, twice.Phase)
	assert.Empty(t, twice.SessionID)
	assert.Empty(t, twice.Label)
	assert.Empty(t, twice.Messages)
	assert.Empty(t, twice.Pending)
	assert.False(t, twice.Ready)
	assert.False(t, twice.Polling)

	starts, stops := c.pollCounts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestStart_ReplacesPollTask(t *testing.T) {
	f := newFakeAPI()
	f.ids = []string{"s1", "s2"}
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "first.txt"))
	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "second.txt"))

	starts, stops := c.pollCounts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, "s2", c.Snapshot().SessionID)

	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "second"})
	snap := waitIdle(t, c)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "second", snap.Messages[0].Text)

	starts, stops = c.pollCounts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
}

func TestStart_SupersededResponseIsDropped(t *testing.T) {
	f := newFakeAPI()
	f.startGate = make(chan struct{})
	c, _ := newTestController(t, f)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), testutil.Text(150), "slow.pdf") }()

	require.Eventually(t, func() bool { return f.startCount() == 1 }, waitFor, tick)
	c.Reset()
	close(f.startGate)

	require.NoError(t, <-done)
	snap := c.Snapshot()
	assert.Equal(t, PhaseInput, snap.Phase)
	assert.Empty(t, snap.SessionID)
	assert.False(t, snap.Polling)
}

func TestAsk_Success(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "X"})
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	waitIdle(t, c)

	c.Ask(context.Background(), "  Who is the landlord?  ")
	snap := c.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, SenderUser, snap.Messages[1].Sender)
	assert.Equal(t, "Who is the landlord?", snap.Messages[1].Text)
	assert.Equal(t, "answer to Who is the landlord?", snap.Messages[2].Text)
}

func TestAsk_IgnoredWithoutSessionOrText(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestController(t, f)

	c.Ask(context.Background(), "hello")
	require.NoError(t, c.StartGeneral(context.Background()))
	c.Ask(context.Background(), "   ")

	assert.Empty(t, f.sentQueries())
	assert.Len(t, c.Snapshot().Messages, 1)
}

func TestAsk_FailureBecomesMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "service detail", err: &api.APIError{Op: "query", StatusCode: 504, Detail: "timeout", Kind: api.KindStatus}, want: "timeout"},
		{name: "transport", err: &api.APIError{Op: "query", Kind: api.KindTransport, Err: errors.New("dial tcp")}, want: fallbackReply},
		{name: "plain error", err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI()
			f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "X"})
			c, notices := newTestController(t, f)
			require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
			waitIdle(t, c)

			f.setQueryErrs(tt.err)
			c.Ask(context.Background(), "q")

			last, ok := c.Snapshot().LastMessage()
			require.True(t, ok)
			assert.Equal(t, SenderAssistant, last.Sender)
			assert.Equal(t, tt.want, last.Text)
			assert.Empty(t, notices.all())
		})
	}
}

func TestAsk_PrematureQuestionsKeepLatest(t *testing.T) {
	f := newFakeAPI()
	f.setQueryErrs(errNotReady, errNotReady, errNotReady)
	c, notices := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	for _, q := range []string{"first", "second", "third"} {
		c.Ask(context.Background(), q)
	}

	snap := c.Snapshot()
	assert.Equal(t, "third", snap.Pending)
	assert.Equal(t, 1, countPlaceholders(snap.Messages))
	assert.Empty(t, notices.all())
	// greeting, first, placeholder, second, third
	assert.Len(t, snap.Messages, 5)
}

func TestGeneral_QueuedQuestionFlushedOnReady(t *testing.T) {
	f := newFakeAPI()
	f.setQueryErrs(errNotReady)
	c, _ := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	snap := c.Snapshot()
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.True(t, snap.General)
	assert.Equal(t, GeneralLabel, snap.Label)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, Greeting, snap.Messages[0].Text)

	c.Ask(context.Background(), "hello")
	snap = c.Snapshot()
	assert.Equal(t, "hello", snap.Pending)
	assert.Equal(t, 1, countPlaceholders(snap.Messages))

	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "ignored in general mode"})
	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "answer to hello"
	}, waitFor, tick)

	snap = c.Snapshot()
	assert.True(t, snap.Ready)
	assert.Empty(t, snap.Pending)
	assert.False(t, snap.Polling)
	assert.Equal(t, 1, countPlaceholders(snap.Messages))
	assert.Equal(t, Greeting, snap.Messages[0].Text)
	for _, m := range snap.Messages {
		assert.NotEqual(t, "ignored in general mode", m.Text)
	}
	assert.Equal(t, []string{"hello", "hello"}, f.sentQueries())
}

func TestGeneral_FlushClearsPendingOnFailure(t *testing.T) {
	f := newFakeAPI()
	f.setQueryErrs(errNotReady, &api.APIError{Op: "query", StatusCode: 500, Detail: "model offline", Kind: api.KindStatus})
	c, _ := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	c.Ask(context.Background(), "hello")
	f.setStatus(api.StatusResponse{Status: api.StatusReady})

	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "model offline"
	}, waitFor, tick)
	assert.Empty(t, c.Snapshot().Pending)
	assert.Len(t, f.sentQueries(), 2)
}

func TestGeneral_AskBeforeSessionID(t *testing.T) {
	f := newFakeAPI()
	f.startGate = make(chan struct{})
	c, _ := newTestController(t, f)

	done := make(chan error, 1)
	go func() { done <- c.StartGeneral(context.Background()) }()
	require.Eventually(t, func() bool { return f.startCount() == 1 }, waitFor, tick)

	c.Ask(context.Background(), "early")
	snap := c.Snapshot()
	assert.Equal(t, "early", snap.Pending)
	assert.Equal(t, 1, countPlaceholders(snap.Messages))
	assert.Empty(t, f.sentQueries())

	f.setStatus(api.StatusResponse{Status: api.StatusReady})
	close(f.startGate)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "answer to early"
	}, waitFor, tick)
	assert.Equal(t, []string{"early"}, f.sentQueries())
}

func TestGeneral_StartFailureReturnsToInput(t *testing.T) {
	f := newFakeAPI()
	f.startErr = &api.APIError{Op: "start", Kind: api.KindTransport, Err: errors.New("refused")}
	c, notices := newTestController(t, f)

	require.Error(t, c.StartGeneral(context.Background()))
	snap := c.Snapshot()
	assert.Equal(t, PhaseInput, snap.Phase)
	assert.False(t, snap.General)
	assert.Empty(t, snap.Messages)
	require.Len(t, notices.all(), 1)
}

func TestStart_ClearsGeneralMode(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))

	snap := c.Snapshot()
	assert.False(t, snap.General)
	assert.False(t, snap.Silent)
	assert.Equal(t, PhaseProcessing, snap.Phase)
	assert.Empty(t, snap.Messages)
}

func TestSwitch_AppendsSummary(t *testing.T) {
	f := newFakeAPI()
	f.ids = []string{"s1", "s2"}
	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "first summary"})
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "first.pdf"))
	waitIdle(t, c)
	c.Ask(context.Background(), "q1")

	f.setStatus(api.StatusResponse{Status: api.StatusProcessing}, api.StatusResponse{Status: api.StatusReady, Summary: "second summary"})
	require.NoError(t, c.Switch(context.Background(), testutil.Text(150), "second.pdf"))

	snap := c.Snapshot()
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.Equal(t, "s2", snap.SessionID)
	assert.Equal(t, "second.pdf", snap.Label)
	assert.True(t, snap.Silent)
	assert.False(t, snap.Ready)
	assert.Len(t, snap.Messages, 3)

	snap = waitIdle(t, c)
	require.Len(t, snap.Messages, 4)
	assert.Equal(t, "first summary", snap.Messages[0].Text)
	assert.Equal(t, "second summary", snap.Messages[3].Text)
	assert.True(t, snap.Ready)
}

func TestSwitch_FailureKeepsConversation(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "X"})
	c, notices := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "first.pdf"))
	waitIdle(t, c)

	f.mu.Lock()
	f.startErr = errors.New("refused")
	f.mu.Unlock()
	require.Error(t, c.Switch(context.Background(), testutil.Text(150), "second.pdf"))

	snap := c.Snapshot()
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.Equal(t, "s1", snap.SessionID)
	assert.True(t, snap.Ready)
	assert.False(t, snap.Silent)
	assert.False(t, snap.Polling)
	require.Len(t, snap.Messages, 1)
	require.Len(t, notices.all(), 1)
}

func TestSwitch_FailureKeepsGeneralSessionPolling(t *testing.T) {
	f := newFakeAPI()
	c, notices := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	f.mu.Lock()
	f.startErr = errors.New("refused")
	f.mu.Unlock()
	require.Error(t, c.Switch(context.Background(), testutil.Text(150), "second.pdf"))

	snap := c.Snapshot()
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.Equal(t, "s1", snap.SessionID)
	assert.True(t, snap.General)
	assert.True(t, snap.Polling)
	assert.False(t, snap.Ready)
	require.Len(t, notices.all(), 1)

	f.setQueryErrs(errNotReady)
	c.Ask(context.Background(), "hello")
	assert.Equal(t, "hello", c.Snapshot().Pending)

	f.setStatus(api.StatusResponse{Status: api.StatusReady})
	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "answer to hello"
	}, waitFor, tick)
	snap = c.Snapshot()
	assert.True(t, snap.Ready)
	assert.Empty(t, snap.Pending)
}

func TestSwitch_CarriesPendingQuestion(t *testing.T) {
	f := newFakeAPI()
	f.ids = []string{"s1", "s2"}
	c, _ := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	f.setQueryErrs(errNotReady)
	c.Ask(context.Background(), "hello")

	require.NoError(t, c.Switch(context.Background(), testutil.Text(150), "lease.pdf"))
	snap := c.Snapshot()
	assert.Equal(t, "s2", snap.SessionID)
	assert.Equal(t, "hello", snap.Pending)
	assert.False(t, snap.General)
	assert.True(t, snap.Silent)
	assert.True(t, snap.Polling)
	assert.Equal(t, 1, countPlaceholders(snap.Messages))

	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "lease summary"})
	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "answer to hello"
	}, waitFor, tick)

	snap = c.Snapshot()
	assert.Empty(t, snap.Pending)
	assert.Equal(t, Greeting, snap.Messages[0].Text)
	texts := make([]string, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "lease summary")
	assert.Equal(t, []string{"hello", "hello"}, f.sentQueries())
}

func TestSwitch_OnePlaceholderAcrossSessions(t *testing.T) {
	f := newFakeAPI()
	f.ids = []string{"s1", "s2"}
	c, _ := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	f.setQueryErrs(errNotReady)
	c.Ask(context.Background(), "q1")
	f.setStatus(api.StatusResponse{Status: api.StatusReady})
	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "answer to q1"
	}, waitFor, tick)
	assert.Equal(t, 1, countPlaceholders(c.Snapshot().Messages))

	f.setStatus(api.StatusResponse{Status: api.StatusProcessing})
	require.NoError(t, c.Switch(context.Background(), testutil.Text(150), "lease.pdf"))
	f.setQueryErrs(errNotReady)
	c.Ask(context.Background(), "q2")

	snap := c.Snapshot()
	assert.Equal(t, "q2", snap.Pending)
	assert.Equal(t, 1, countPlaceholders(snap.Messages))
	last, _ := snap.LastMessage()
	assert.True(t, last.Placeholder)

	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "lease summary"})
	require.Eventually(t, func() bool {
		last, _ := c.Snapshot().LastMessage()
		return last.Text == "answer to q2"
	}, waitFor, tick)
	assert.Equal(t, 1, countPlaceholders(c.Snapshot().Messages))
}

func TestAsk_NotReadyAnsweredAfterReadyIsResent(t *testing.T) {
	f := newFakeAPI()
	gate := make(chan struct{})
	f.queryGate = gate
	f.setQueryErrs(errNotReady)
	c, notices := newTestController(t, f)

	require.NoError(t, c.StartGeneral(context.Background()))
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Ask(context.Background(), "hello")
	}()
	require.Eventually(t, func() bool { return len(f.sentQueries()) == 1 }, waitFor, tick)

	f.setStatus(api.StatusResponse{Status: api.StatusReady})
	require.Eventually(t, func() bool { return c.Snapshot().Ready }, waitFor, tick)

	f.mu.Lock()
	f.queryGate = nil
	f.mu.Unlock()
	close(gate)
	<-done

	snap := c.Snapshot()
	last, _ := snap.LastMessage()
	assert.Equal(t, "answer to hello", last.Text)
	assert.Empty(t, snap.Pending)
	assert.Zero(t, countPlaceholders(snap.Messages))
	assert.Equal(t, []string{"hello", "hello"}, f.sentQueries())
	assert.Empty(t, notices.all())
}

func TestTranscript_KeepsIDForOneConversation(t *testing.T) {
	f := newFakeAPI()
	f.ids = []string{"s1", "s2", "s3"}
	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "X"})
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "first.pdf"))
	waitIdle(t, c)
	first := c.Transcript()
	require.NotNil(t, first)

	c.Ask(context.Background(), "q1")
	require.NoError(t, c.Switch(context.Background(), testutil.Text(150), "second.pdf"))
	waitIdle(t, c)
	second := c.Transcript()
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Greater(t, second.Metadata.MessageCount, first.Metadata.MessageCount)

	c.Reset()
	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "third.pdf"))
	waitIdle(t, c)
	third := c.Transcript()
	require.NotNil(t, third)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestAsk_StaleAnswerDropped(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "X"})
	c, _ := newTestController(t, f)

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	waitIdle(t, c)

	gate := make(chan struct{})
	f.mu.Lock()
	f.queryGate = gate
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.Ask(context.Background(), "slow")
		close(done)
	}()
	require.Eventually(t, func() bool { return len(f.sentQueries()) == 1 }, waitFor, tick)

	c.Reset()
	close(gate)
	<-done
	assert.Empty(t, c.Snapshot().Messages)
}

func TestController_OnChangeReceivesSnapshots(t *testing.T) {
	f := newFakeAPI()
	f.setStatus(api.StatusResponse{Status: api.StatusReady, Summary: "X"})

	var mu sync.Mutex
	var phases []Phase
	c := NewController(f, Options{PollInterval: tick, OnChange: func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	}})
	defer c.Close()

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) > 0 && phases[len(phases)-1] == PhaseChat
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, PhaseProcessing, phases[0])
}

func TestController_CloseStopsPolling(t *testing.T) {
	f := newFakeAPI()
	c := NewController(f, Options{PollInterval: tick})

	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	require.Eventually(t, func() bool { return f.statusCount() > 0 }, waitFor, tick)
	c.Close()

	n := f.statusCount()
	time.Sleep(5 * tick)
	assert.Equal(t, n, f.statusCount())
	assert.False(t, c.Snapshot().Polling)
}

func TestController_WithHTTPBackend(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.ScriptStatus(
		testutil.StatusReply{Status: "PROCESSING"},
		testutil.StatusReply{Status: "PROCESSING"},
		testutil.StatusReply{Status: "READY", Summary: "X"},
	)
	fb.ScriptQuery(
		testutil.QueryReply{Code: http.StatusBadRequest, Detail: "Session is not ready yet"},
		testutil.QueryReply{Code: http.StatusGatewayTimeout, Detail: "timeout"},
	)

	c := NewController(api.NewClient(fb.URL, time.Second), Options{PollInterval: 50 * time.Millisecond})
	defer c.Close()
	require.NoError(t, c.Start(context.Background(), testutil.Text(150), "lease.pdf"))
	c.Ask(context.Background(), "early question")
	assert.Equal(t, "early question", c.Snapshot().Pending)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return !s.Polling && s.Pending == "" && len(s.Messages) == 2
	}, waitFor, tick)

	snap := c.Snapshot()
	assert.Equal(t, PhaseChat, snap.Phase)
	assert.Equal(t, "X", snap.Messages[0].Text)
	assert.Equal(t, "timeout", snap.Messages[1].Text)

	starts, statuses, queries := fb.Counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 3, statuses)
	assert.Equal(t, 2, queries)
}
