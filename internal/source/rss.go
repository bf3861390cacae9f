package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/SlyMarbo/rss"
	"github.com/kovalyov-valentin/article-collector/internal/model"
)

// RSS клиент для одной ленты
type RSSSource struct {
	// URL откуда мы забираем данные
	URL string
	// Имя источника, если у самой ленты нет заголовка
	FallbackName string
	client       *http.Client
}

func NewRSSSource(url, fallbackName string) RSSSource {
	return RSSSource{
		URL:          url,
		FallbackName: fallbackName,
		client:       http.DefaultClient,
	}
}

// Источник со своим http клиентом, например в тестах
func NewRSSSourceWithClient(url, fallbackName string, client *http.Client) RSSSource {
	s := NewRSSSource(url, fallbackName)
	s.client = client
	return s
}

// Fetch загружает ленту и возвращает ее записи в том порядке, в котором они идут в ленте.
// Имя источника для всех записей берется из заголовка ленты
func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.loadFeed(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("loading feed %s: %w", s.URL, err)
	}

	sourceName := strings.TrimSpace(feed.Title)
	if sourceName == "" {
		sourceName = s.FallbackName
	}

	items := make([]model.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, model.Item{
			Title:      item.Title,
			Categories: item.Categories,
			Link:       item.Link,
			Date:       item.Date,
			Summary:    itemBody(item),
			SourceName: sourceName,
		})
	}

	return items, nil
}

// В Atom лентах тела в summary может не быть, тогда берем content
func itemBody(item *rss.Item) string {
	if strings.TrimSpace(item.Summary) != "" {
		return item.Summary
	}

	return item.Content
}

// Метод, который загружает данные из источника
func (s RSSSource) loadFeed(ctx context.Context, url string) (*rss.Feed, error) {
	// Каналы буферизованы, чтобы горутина не зависла, если мы уже ушли по ctx.Done()
	var (
		feedCh = make(chan *rss.Feed, 1)
		errCh  = make(chan error, 1)
	)

	go func() {
		feed, err := rss.FetchByClient(url, s.clientFor(ctx))
		if err != nil {
			errCh <- err
			return
		}

		feedCh <- feed
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case feed := <-feedCh:
		return feed, nil
	}
}

// Клиент, у которого каждый запрос привязан к ctx, чтобы отмена прерывала и сам http запрос
func (s RSSSource) clientFor(ctx context.Context) *http.Client {
	next := s.client.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	client := *s.client
	client.Transport = feedTransport{ctx: ctx, next: next}

	return &client
}

type feedTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t feedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}

	// Страницу с ошибкой не отдаем парсеру, а сразу сообщаем о ней
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return resp, nil
}

func (s RSSSource) Name() string {
	return s.URL
}
