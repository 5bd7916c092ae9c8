package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_art_description/access"
	"ai_art_description/generator"
	"ai_art_description/jobs"
	"ai_art_description/publisher"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func artwork(id int64) generator.ContentItem {
	return generator.ContentItem{
		ID:          id,
		Title:       "Sunset #4",
		AuthorName:  "J. Rivera",
		Category:    "Landscape",
		ImageURL:    "https://shop.example/sunset4.jpg",
		Status:      "publish",
		PostType:    "product",
		PublishedAt: now.Add(-time.Hour),
	}
}

type fixture struct {
	store   *publisher.MemoryStore
	mock    *generator.MockClient
	queue   *jobs.MemoryQueue
	tracker *jobs.Tracker
	handler http.Handler
}

func newFixture(t *testing.T, items ...generator.ContentItem) *fixture {
	t.Helper()
	f := &fixture{
		store:   publisher.NewMemoryStore(items...),
		mock:    &generator.MockClient{},
		queue:   jobs.NewMemoryQueue(16),
		tracker: jobs.NewTracker(),
	}
	agent, err := generator.NewAgent(f.mock, generator.AgentOptions{Compose: generator.ComposeOptions{Model: "gpt-4o-mini"}})
	require.NoError(t, err)
	pub, err := publisher.New(f.store, agent, publisher.Options{
		Policy:         access.DefaultPolicy(),
		RawResponseKey: generator.DefaultRawResponseKey,
	})
	require.NoError(t, err)
	srv, err := New(pub, f.queue, f.tracker, Options{
		BulkWorkers: 2,
		Rule:        publisher.AutoRule{PostType: "product", RawResponseKey: generator.DefaultRawResponseKey},
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)
	f.handler = srv.Routes()
	return f
}

func (f *fixture) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndpoint(t *testing.T) {
	f := newFixture(t, artwork(4))

	rec := f.do(http.MethodPost, "/api/items/4/generate", nil, http.Header{ActorRolesHeader: {"subscriber, ai-premium"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out publisher.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Len(t, out.Written, 4)

	item, _ := f.store.Get(4)
	assert.NotEmpty(t, item.Excerpt)
}

func TestGenerateEndpointErrors(t *testing.T) {
	noImage := artwork(5)
	noImage.ImageURL = ""
	f := newFixture(t, artwork(4), noImage)

	cases := []struct {
		path   string
		roles  string
		status int
	}{
		{"/api/items/4/generate", "viewer", http.StatusForbidden},
		{"/api/items/4/generate", "", http.StatusForbidden},
		{"/api/items/99/generate", "ai-premium", http.StatusNotFound},
		{"/api/items/5/generate", "ai-premium", http.StatusUnprocessableEntity},
		{"/api/items/abc/generate", "ai-premium", http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := f.do(http.MethodPost, c.path, nil, http.Header{ActorRolesHeader: {c.roles}})
		assert.Equal(t, c.status, rec.Code, "%s as %q: %s", c.path, c.roles, rec.Body.String())
	}
	assert.Empty(t, f.mock.Calls)
}

func TestBulkEndpointSync(t *testing.T) {
	f := newFixture(t, artwork(4), artwork(6))

	rec := f.do(http.MethodPost, "/api/bulk", map[string]any{"item_ids": []int64{4, 6, 8}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report publisher.BulkReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Processed)
	assert.Len(t, report.Outcomes, 3)
}

func TestBulkEndpointAsync(t *testing.T) {
	f := newFixture(t, artwork(4))

	rec := f.do(http.MethodPost, "/api/bulk", map[string]any{"item_ids": []int64{4, 6}, "async": true}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp enqueuedResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.JobIDs, 2)
	assert.Equal(t, 2, f.queue.Len())

	rec = f.do(http.MethodGet, "/api/jobs/"+resp.JobIDs[0], nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st jobs.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, jobs.StateQueued, st.State)
	assert.True(t, st.Job.Override)

	job, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jobs.SourceBulk, job.Source)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/jobs/nope", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/bulk", map[string]any{}, nil).Code)
}

func TestPostStatusHook(t *testing.T) {
	withExcerpt := artwork(5)
	withExcerpt.Excerpt = "Hand written"
	f := newFixture(t, artwork(4), withExcerpt)

	ev := publisher.StatusTransition{ItemID: 4, PostType: "product", OldStatus: "draft", NewStatus: "publish"}
	rec := f.do(http.MethodPost, "/api/hooks/post-status", ev, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	job, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), job.ItemID)
	assert.False(t, job.Override)
	assert.Equal(t, jobs.SourcePublish, job.Source)

	ev.ItemID = 5
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/hooks/post-status", ev, nil).Code)

	ev = publisher.StatusTransition{ItemID: 4, PostType: "product", NewStatus: "draft"}
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/hooks/post-status", ev, nil).Code)
	assert.Equal(t, 0, f.queue.Len())
	assert.Empty(t, f.mock.Calls)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusFor(publisher.Outcome{Success: true, Reason: generator.ReasonPartialSuccess}))
	assert.Equal(t, http.StatusBadGateway, statusFor(publisher.Outcome{Reason: generator.ReasonTransport}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(publisher.Outcome{Reason: generator.ReasonMissingCredentials}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(publisher.Outcome{Reason: generator.ReasonStoreFailure}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(publisher.Outcome{Reason: generator.ReasonInvalidConfig}))
}

// limitQueue accepts limit jobs and then refuses.
type limitQueue struct {
	jobs.Queue
	limit int
	n     int
}

func (q *limitQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	if q.n >= q.limit {
		return errors.New("queue unavailable")
	}
	q.n++
	return q.Queue.Enqueue(ctx, job)
}

func TestBulkEndpointAsyncPartialEnqueue(t *testing.T) {
	f := newFixture(t, artwork(4))
	agent, err := generator.NewAgent(f.mock, generator.AgentOptions{Compose: generator.ComposeOptions{Model: "m"}})
	require.NoError(t, err)
	pub, err := publisher.New(f.store, agent, publisher.Options{Policy: access.DefaultPolicy()})
	require.NoError(t, err)
	srv, err := New(pub, &limitQueue{Queue: f.queue, limit: 2}, f.tracker, Options{})
	require.NoError(t, err)
	f.handler = srv.Routes()

	rec := f.do(http.MethodPost, "/api/bulk", map[string]any{"item_ids": []int64{4, 5, 6, 7}, "async": true}, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp enqueuedResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.JobIDs, 2)
	assert.Contains(t, resp.Error, "queue unavailable")
	assert.Equal(t, []int64{6, 7}, resp.NotQueued)
	assert.Equal(t, 2, f.queue.Len())

	for _, id := range resp.JobIDs {
		st, ok := f.tracker.Get(id)
		require.True(t, ok)
		assert.Equal(t, jobs.StateQueued, st.State)
	}
}
