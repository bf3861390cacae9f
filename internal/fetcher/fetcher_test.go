package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kovalyov-valentin/article-collector/internal/config"
	"github.com/kovalyov-valentin/article-collector/internal/model"
	"github.com/kovalyov-valentin/article-collector/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name  string
	items []model.Item
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]model.Item, error) {
	s.calls++
	return s.items, s.err
}

type recordingAnnouncer struct {
	announced []model.Article
	err       error
}

func (a *recordingAnnouncer) Announce(_ context.Context, articles []model.Article) error {
	a.announced = append(a.announced, articles...)
	return a.err
}

func testConfig() *config.Config {
	return &config.Config{
		Feeds:              []string{"https://example.com/feed"},
		EntriesPerFeed:     20,
		SummaryMaxLen:      280,
		SummaryPlaceholder: "(no summary)",
		DefaultCategory:    "General",
		DefaultSource:      "RSS",
	}
}

func TestFetcher_FetchEndToEnd(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	src := &stubSource{name: "example", items: []model.Item{{
		Title:      "Big Story",
		Link:       "https://example.com/a",
		Summary:    "<p>Breaking <i>news</i> today</p>",
		SourceName: "Example Feed",
	}}}

	f := NewFetcher(store, []Source{src}, nil, testConfig())

	report, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Feeds)
	assert.Equal(t, 1, report.Entries)
	require.Len(t, report.Inserted, 1)

	article, ok := store.ArticleByURL("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "Big Story", article.Title)
	assert.Equal(t, "Breaking news today", article.Summary)
	assert.Equal(t, "Example Feed", article.Source)
	assert.Equal(t, "General", article.Category)
	assert.Equal(t, []string{}, article.Tags)
	assert.NotEmpty(t, article.ID)
	assert.False(t, article.CreatedAt.IsZero())
}

func TestFetcher_FetchIsIdempotent(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	src := &stubSource{name: "example", items: []model.Item{
		{Title: "A", Link: "https://example.com/a", Summary: "a", SourceName: "Example Feed"},
		{Title: "B", Link: "https://example.com/b", Summary: "b", SourceName: "Example Feed"},
	}}
	f := NewFetcher(store, []Source{src}, nil, testConfig())

	first, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Inserted, 2)

	// Второй прогон с измененным заголовком не должен ничего перезаписать
	src.items[0].Title = "A changed"
	second, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)

	article, ok := store.ArticleByURL("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "A", article.Title)
	assert.Len(t, store.Articles(), 2)
}

func TestFetcher_DuplicateAcrossFeedsFirstWins(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	first := &stubSource{name: "first", items: []model.Item{
		{Title: "From first", Link: "https://example.com/shared", SourceName: "First"},
	}}
	second := &stubSource{name: "second", items: []model.Item{
		{Title: "From second", Link: "https://example.com/shared", SourceName: "Second"},
	}}
	f := NewFetcher(store, []Source{first, second}, nil, testConfig())

	report, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Inserted, 1)
	assert.Equal(t, 1, report.Duplicates)

	article, ok := store.ArticleByURL("https://example.com/shared")
	require.True(t, ok)
	assert.Equal(t, "First", article.Source)
}

func TestFetcher_LimitsEntriesPerFeed(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	items := make([]model.Item, 25)
	for i := range items {
		items[i] = model.Item{
			Title:      fmt.Sprintf("Story %d", i),
			Link:       fmt.Sprintf("https://example.com/%d", i),
			SourceName: "Example Feed",
		}
	}
	f := NewFetcher(store, []Source{&stubSource{name: "example", items: items}}, nil, testConfig())

	report, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Entries)

	articles := store.Articles()
	require.Len(t, articles, 20)
	// Порядок записей в ленте сохраняется
	for i, article := range articles {
		assert.Equal(t, fmt.Sprintf("Story %d", i), article.Title)
	}
	_, ok := store.ArticleByURL("https://example.com/20")
	assert.False(t, ok)
}

func TestFetcher_SummaryPlaceholderAndTruncation(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	long := strings.Repeat("w", 300)
	src := &stubSource{name: "example", items: []model.Item{
		{Title: "Empty", Link: "https://example.com/empty", Summary: "", SourceName: "F"},
		{Title: "Tags only", Link: "https://example.com/tags", Summary: "<br/><hr/>", SourceName: "F"},
		{Title: "Long", Link: "https://example.com/long", Summary: long, SourceName: "F"},
	}}
	f := NewFetcher(store, []Source{src}, nil, testConfig())

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	empty, _ := store.ArticleByURL("https://example.com/empty")
	assert.Equal(t, "(no summary)", empty.Summary)

	tagsOnly, _ := store.ArticleByURL("https://example.com/tags")
	assert.Equal(t, "(no summary)", tagsOnly.Summary)

	truncated, _ := store.ArticleByURL("https://example.com/long")
	assert.Equal(t, strings.Repeat("w", 280)+"…", truncated.Summary)
}

func TestFetcher_SourceErrorRollsBackRun(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	ok := &stubSource{name: "ok", items: []model.Item{
		{Title: "A", Link: "https://example.com/a", SourceName: "F"},
	}}
	broken := &stubSource{name: "broken", err: errors.New("connection reset")}
	f := NewFetcher(store, []Source{ok, broken}, nil, testConfig())

	_, err := f.Fetch(context.Background())

	assert.ErrorIs(t, err, broken.err)
	assert.Empty(t, store.Articles())
}

func TestFetcher_InvalidEntryAbortsRun(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	src := &stubSource{name: "example", items: []model.Item{
		{Title: "A", Link: "https://example.com/a", SourceName: "F"},
		{Title: "", Link: "https://example.com/untitled", SourceName: "F"},
	}}
	next := &stubSource{name: "next"}
	f := NewFetcher(store, []Source{src, next}, nil, testConfig())

	_, err := f.Fetch(context.Background())

	assert.ErrorIs(t, err, storage.ErrConstraintViolation)
	assert.Empty(t, store.Articles())
	assert.Zero(t, next.calls)
}

func TestFetcher_FilterKeywords(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	cfg := testConfig()
	cfg.FilterKeywords = []string{"Crypto", " "}
	src := &stubSource{name: "example", items: []model.Item{
		{Title: "Crypto winter", Link: "https://example.com/1", SourceName: "F"},
		{Title: "Go 1.22 released", Link: "https://example.com/2", Categories: []string{"CRYPTO"}, SourceName: "F"},
		{Title: "Go generics", Link: "https://example.com/3", Categories: []string{"go"}, SourceName: "F"},
	}}
	f := NewFetcher(store, []Source{src}, nil, cfg)

	report, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, store.Articles(), 1)
	assert.Equal(t, "Go generics", store.Articles()[0].Title)
}

func TestFetcher_StartOnceAnnouncesInserted(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	src := &stubSource{name: "example", items: []model.Item{
		{Title: "A", Link: "https://example.com/a", SourceName: "F"},
	}}
	announcer := &recordingAnnouncer{}
	f := NewFetcher(store, []Source{src}, announcer, testConfig())

	require.NoError(t, f.Start(context.Background()))
	require.Len(t, announcer.announced, 1)
	assert.Equal(t, "https://example.com/a", announcer.announced[0].URL)

	// Второй прогон ничего нового не добавил, уведомлять некого
	require.NoError(t, f.Start(context.Background()))
	assert.Len(t, announcer.announced, 1)
}

func TestFetcher_AnnounceErrorDoesNotFailRun(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	src := &stubSource{name: "example", items: []model.Item{
		{Title: "A", Link: "https://example.com/a", SourceName: "F"},
	}}
	announcer := &recordingAnnouncer{err: errors.New("telegram is down")}
	f := NewFetcher(store, []Source{src}, announcer, testConfig())

	assert.NoError(t, f.Start(context.Background()))
	assert.Len(t, store.Articles(), 1)
}

func TestFetcher_StartWithIntervalStopsOnCancel(t *testing.T) {
	store := storage.NewMemoryArticleStorage()
	src := &stubSource{name: "example"}
	cfg := testConfig()
	cfg.FetchInterval = 10 * time.Millisecond
	f := NewFetcher(store, []Source{src}, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := f.Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, src.calls, 1)
}

func TestUpsertArticle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryArticleStorage()

	article, inserted, err := UpsertArticle(ctx, store, "Big Story", "https://example.com/a", "first", "Example Feed", "")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, DefaultCategory, article.Category)
	assert.Equal(t, []string{}, article.Tags)
	assert.NotEmpty(t, article.ID)

	_, inserted, err = UpsertArticle(ctx, store, "Other title", "https://example.com/a", "second", "Other Feed", "News")
	require.NoError(t, err)
	assert.False(t, inserted)

	_, inserted, err = UpsertArticle(ctx, store, "Another", "https://example.com/b", "third", "Example Feed", "")
	require.NoError(t, err)
	assert.True(t, inserted)

	stored, ok := store.ArticleByURL("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, article.ID, stored.ID)
	assert.Equal(t, "Big Story", stored.Title)
	assert.Equal(t, "first", stored.Summary)
	assert.Equal(t, "Example Feed", stored.Source)
	assert.Len(t, store.Articles(), 2)
}

func TestUpsertArticle_RequiredFields(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryArticleStorage()

	_, _, err := UpsertArticle(ctx, store, "", "https://example.com/a", "s", "F", "")
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)

	_, _, err = UpsertArticle(ctx, store, "Title", "", "s", "F", "")
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)
}
