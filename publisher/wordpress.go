package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"ai_art_description/config"
	"ai_art_description/generator"
)

const (
	restPrefix   = "/wp-json/wp/v2"
	wpDateLayout = "2006-01-02T15:04:05"
	termCacheMax = 1024
)

type renderedField struct {
	Raw      string `json:"raw"`
	Rendered string `json:"rendered"`
}

func (f renderedField) text() string {
	if f.Raw != "" {
		return f.Raw
	}
	return f.Rendered
}

type postResp struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	DateGMT       string          `json:"date_gmt"`
	Title         renderedField   `json:"title"`
	Excerpt       renderedField   `json:"excerpt"`
	Author        int64           `json:"author"`
	FeaturedMedia int64           `json:"featured_media"`
	Meta          json.RawMessage `json:"meta"`
}

type userResp struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type mediaResp struct {
	SourceURL string `json:"source_url"`
}

type termResp struct {
	Name string `json:"name"`
}

// errorResp is the WordPress REST error envelope.
type errorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type updatePayload struct {
	Excerpt *string           `json:"excerpt,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// WordPressStore reads and updates products through the WordPress REST API,
// authenticating with an application password. Meta keys must be registered
// with show_in_rest on the WordPress side.
type WordPressStore struct {
	cfg    config.WordPressConfig
	client *http.Client
	terms  *lru.Cache[string, string]
}

// NewWordPressStore creates a store. A nil client gets a 60s timeout.
func NewWordPressStore(cfg config.WordPressConfig, client *http.Client) (*WordPressStore, error) {
	if cfg.BaseURL == "" || cfg.Username == "" || cfg.AppPassword == "" {
		return nil, errors.New("wordpress config must include base_url, username and app_password")
	}
	if cfg.PostType == "" {
		cfg.PostType = "product"
	}
	if cfg.CategoryTaxonomy == "" {
		cfg.CategoryTaxonomy = "product_cat"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	terms, err := lru.New[string, string](termCacheMax)
	if err != nil {
		return nil, err
	}
	return &WordPressStore{cfg: cfg, client: client, terms: terms}, nil
}

// LoadItem fetches the post, its author, featured image and first category.
// Image and category lookups that fail leave the field empty; the workflow
// decides what a missing value means.
func (s *WordPressStore) LoadItem(ctx context.Context, id int64) (generator.ContentItem, error) {
	var post postResp
	var taxonomy map[string]json.RawMessage
	body, err := s.get(ctx, fmt.Sprintf("/%s/%d", s.cfg.PostType, id), url.Values{"context": {"edit"}})
	if err != nil {
		return generator.ContentItem{}, err
	}
	if err := json.Unmarshal(body, &post); err != nil {
		return generator.ContentItem{}, fmt.Errorf("decode post %d: %w", id, err)
	}
	if err := json.Unmarshal(body, &taxonomy); err != nil {
		return generator.ContentItem{}, fmt.Errorf("decode post %d: %w", id, err)
	}

	item := generator.ContentItem{
		ID:       post.ID,
		Title:    strings.TrimSpace(post.Title.text()),
		Excerpt:  strings.TrimSpace(post.Excerpt.text()),
		Status:   post.Status,
		PostType: post.Type,
		Meta:     decodeMeta(post.Meta),
	}
	if t, err := time.Parse(wpDateLayout, post.DateGMT); err == nil {
		item.PublishedAt = t.UTC()
	}

	if post.Author != 0 {
		author, err := s.user(ctx, post.Author)
		if err != nil {
			return generator.ContentItem{}, fmt.Errorf("load author %d: %v", post.Author, err)
		}
		item.AuthorName = author.Name
		item.AuthorRoles = append(item.AuthorRoles, author.Roles...)
	}

	if post.FeaturedMedia != 0 {
		src, err := s.mediaURL(ctx, post.FeaturedMedia)
		if err != nil {
			log.Warn().Err(err).Int64("item_id", id).Int64("media_id", post.FeaturedMedia).Msg("Featured image lookup failed")
		}
		item.ImageURL = src
	}

	var termIDs []int64
	if raw, ok := taxonomy[s.cfg.CategoryTaxonomy]; ok {
		_ = json.Unmarshal(raw, &termIDs)
	}
	if len(termIDs) > 0 {
		name, err := s.termName(ctx, termIDs[0])
		if err != nil {
			log.Warn().Err(err).Int64("item_id", id).Int64("term_id", termIDs[0]).Msg("Category lookup failed")
		}
		item.Category = name
	}
	return item, nil
}

// UpdateExcerpt replaces the post excerpt.
func (s *WordPressStore) UpdateExcerpt(ctx context.Context, id int64, text string) error {
	return s.update(ctx, id, updatePayload{Excerpt: &text})
}

// UpdateMeta sets a single meta key.
func (s *WordPressStore) UpdateMeta(ctx context.Context, id int64, key, value string) error {
	return s.update(ctx, id, updatePayload{Meta: map[string]string{key: value}})
}

func (s *WordPressStore) user(ctx context.Context, id int64) (userResp, error) {
	var u userResp
	body, err := s.get(ctx, fmt.Sprintf("/users/%d", id), url.Values{"context": {"edit"}})
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return u, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func (s *WordPressStore) mediaURL(ctx context.Context, id int64) (string, error) {
	var m mediaResp
	body, err := s.get(ctx, fmt.Sprintf("/media/%d", id), nil)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("decode media: %w", err)
	}
	return m.SourceURL, nil
}

func (s *WordPressStore) termName(ctx context.Context, id int64) (string, error) {
	key := s.cfg.CategoryTaxonomy + ":" + strconv.FormatInt(id, 10)
	if name, ok := s.terms.Get(key); ok {
		return name, nil
	}
	var t termResp
	body, err := s.get(ctx, fmt.Sprintf("/%s/%d", s.cfg.CategoryTaxonomy, id), nil)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &t); err != nil {
		return "", fmt.Errorf("decode term: %w", err)
	}
	name := strings.TrimSpace(t.Name)
	if name != "" {
		s.terms.Add(key, name)
	}
	return name, nil
}

func (s *WordPressStore) update(ctx context.Context, id int64, payload updatePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPost, fmt.Sprintf("/%s/%d", s.cfg.PostType, id), nil, bytes.NewReader(body))
	return err
}

func (s *WordPressStore) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	return s.do(ctx, http.MethodGet, path, q, nil)
}

func (s *WordPressStore) do(ctx context.Context, method, path string, q url.Values, body io.Reader) ([]byte, error) {
	u := s.cfg.BaseURL + restPrefix + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.cfg.Username, s.cfg.AppPassword)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		var e errorResp
		_ = json.Unmarshal(data, &e)
		return nil, fmt.Errorf("%s %s failed: %d %s %s", method, path, resp.StatusCode, e.Code, e.Message)
	}
	return data, nil
}

// decodeMeta keeps string-valued meta entries. WordPress sends [] instead of
// {} when a post has no registered meta.
func decodeMeta(raw json.RawMessage) map[string]string {
	out := make(map[string]string)
	var m map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return out
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
