package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_art_description/access"
	"ai_art_description/config"
	"ai_art_description/generator"
)

type fakeWordPress struct {
	mu        sync.Mutex
	posts     map[string]string
	updates   []map[string]any
	termHits  int
	mediaFail bool
}

func (f *fakeWordPress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "editor" || pass != "app pass" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"rest_not_logged_in","message":"You are not currently logged in."}`))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/wp-json/wp/v2")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/product/"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.updates = append(f.updates, body)
		_, _ = w.Write([]byte(`{"id":` + strings.TrimPrefix(path, "/product/") + `}`))
	case strings.HasPrefix(path, "/product/") && f.posts[strings.TrimPrefix(path, "/product/")] != "":
		_, _ = w.Write([]byte(f.posts[strings.TrimPrefix(path, "/product/")]))
	case path == "/users/7":
		_, _ = w.Write([]byte(`{"id":7,"name":"J. Rivera","roles":["author","ai-premium"],"capabilities":{"edit_posts":true,"manage_options":false}}`))
	case path == "/users/1":
		_, _ = w.Write([]byte(`{"id":1,"name":"Site Admin","roles":["administrator"],"capabilities":{"edit_posts":true,"manage_options":true}}`))
	case path == "/media/11":
		if f.mediaFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"id":11,"source_url":"https://shop.example/sunset4.jpg"}`))
	case path == "/product_cat/21":
		f.termHits++
		_, _ = w.Write([]byte(`{"id":21,"name":" Landscape "}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"rest_post_invalid_id","message":"Invalid post ID."}`))
	}
}

const productJSON = `{
	"id": 4,
	"type": "product",
	"status": "publish",
	"date_gmt": "2026-10-19T09:30:00",
	"title": {"raw": "Sunset #4", "rendered": "Sunset &#035;4"},
	"excerpt": {"raw": "", "rendered": ""},
	"author": 7,
	"featured_media": 11,
	"product_cat": [21, 22],
	"meta": {"ai_description": "", "rank_math_description": "old", "views": 3}
}`

func newFakeWordPress(t *testing.T) (*fakeWordPress, *WordPressStore) {
	t.Helper()
	fake := &fakeWordPress{posts: map[string]string{"4": productJSON}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewWordPressStore(config.WordPressConfig{
		BaseURL:     srv.URL + "/",
		Username:    "editor",
		AppPassword: "app pass",
	}, srv.Client())
	require.NoError(t, err)
	return fake, store
}

func TestWordPressStoreLoadItem(t *testing.T) {
	fake, store := newFakeWordPress(t)

	item, err := store.LoadItem(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), item.ID)
	assert.Equal(t, "Sunset #4", item.Title)
	assert.Equal(t, "J. Rivera", item.AuthorName)
	assert.Equal(t, []string{"author", "ai-premium"}, item.AuthorRoles)
	assert.Equal(t, "https://shop.example/sunset4.jpg", item.ImageURL)
	assert.Equal(t, "Landscape", item.Category)
	assert.Equal(t, "publish", item.Status)
	assert.Equal(t, "product", item.PostType)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC), item.PublishedAt)
	assert.Equal(t, "old", item.Meta["rank_math_description"])
	_, hasViews := item.Meta["views"]
	assert.False(t, hasViews)

	// category names are cached
	_, err = store.LoadItem(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.termHits)
}

func TestAdminAuthoredItemNeedsCallerGrants(t *testing.T) {
	fake, store := newFakeWordPress(t)
	fake.posts["5"] = strings.Replace(strings.Replace(productJSON, `"id": 4`, `"id": 5`, 1), `"author": 7`, `"author": 1`, 1)

	item, err := store.LoadItem(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"administrator"}, item.AuthorRoles)

	mock := &generator.MockClient{}
	p := newTestPublisher(t, store, mock, Options{})

	out := p.GenerateDescription(context.Background(), Request{ItemID: 5})
	assert.False(t, out.Success)
	assert.Equal(t, generator.ReasonUnauthorized, out.Reason)
	assert.Empty(t, mock.Calls)
	assert.Empty(t, fake.updates)

	out = p.GenerateDescription(context.Background(), Request{ItemID: 5, Actor: access.Grants{"manage_options"}})
	assert.True(t, out.Success, "reason=%s", out.Reason)
}

func TestWordPressStoreMediaFailureLeavesImageEmpty(t *testing.T) {
	fake, store := newFakeWordPress(t)
	fake.mediaFail = true

	item, err := store.LoadItem(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, item.HasImage())
}

func TestWordPressStoreNotFound(t *testing.T) {
	_, store := newFakeWordPress(t)
	_, err := store.LoadItem(context.Background(), 404)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWordPressStoreEmptyMetaArray(t *testing.T) {
	fake, store := newFakeWordPress(t)
	fake.posts["4"] = `{"id":4,"type":"product","status":"draft","title":{"raw":"T"},"meta":[]}`

	item, err := store.LoadItem(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, item.Meta)
	assert.Empty(t, item.Category)
	assert.True(t, item.PublishedAt.IsZero())
}

func TestWordPressStoreUpdates(t *testing.T) {
	fake, store := newFakeWordPress(t)

	require.NoError(t, store.UpdateExcerpt(context.Background(), 4, "New excerpt"))
	require.NoError(t, store.UpdateMeta(context.Background(), 4, "rank_math_description", "Dusk."))

	require.Len(t, fake.updates, 2)
	assert.Equal(t, map[string]any{"excerpt": "New excerpt"}, fake.updates[0])
	assert.Equal(t, map[string]any{"meta": map[string]any{"rank_math_description": "Dusk."}}, fake.updates[1])
}

func TestWordPressStoreAuthError(t *testing.T) {
	fake := &fakeWordPress{posts: map[string]string{"4": productJSON}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewWordPressStore(config.WordPressConfig{BaseURL: srv.URL, Username: "editor", AppPassword: "wrong"}, nil)
	require.NoError(t, err)
	_, err = store.LoadItem(context.Background(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rest_not_logged_in")
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNewWordPressStoreRequiresCredentials(t *testing.T) {
	_, err := NewWordPressStore(config.WordPressConfig{BaseURL: "https://shop.example"}, nil)
	assert.Error(t, err)
}
