package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kovalyov-valentin/article-collector/internal/model"
)

// Хранилище статей в памяти. Та же семантика insert-or-ignore и транзакций, что и у Postgres.
// Используется для dry run и в тестах
type MemoryArticleStorage struct {
	mu sync.Mutex
	// url -> статья
	articles map[string]model.Article
	// url в порядке вставки
	order []string
	now   func() time.Time
}

func NewMemoryArticleStorage() *MemoryArticleStorage {
	return &MemoryArticleStorage{
		articles: make(map[string]model.Article),
		now:      time.Now,
	}
}

func (s *MemoryArticleStorage) InsertIfAbsent(ctx context.Context, article model.Article) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("inserting article %q: %w", article.URL, err)
	}
	if err := checkRequired(article); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(article), nil
}

// Transact копит записи в отдельном буфере и применяет их только если fn отработала без ошибки
func (s *MemoryArticleStorage) Transact(ctx context.Context, fn TxFunc) error {
	tx := &memoryTx{
		parent: s,
		staged: make(map[string]model.Article),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, url := range tx.order {
		s.insertLocked(tx.staged[url])
	}

	return nil
}

// Статья по url, если она есть
func (s *MemoryArticleStorage) ArticleByURL(url string) (model.Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[url]
	return article, ok
}

// Все статьи в порядке вставки
func (s *MemoryArticleStorage) Articles() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles := make([]model.Article, 0, len(s.order))
	for _, url := range s.order {
		articles = append(articles, s.articles[url])
	}

	return articles
}

func (s *MemoryArticleStorage) insertLocked(article model.Article) bool {
	if _, exists := s.articles[article.URL]; exists {
		return false
	}

	if article.Tags == nil {
		article.Tags = []string{}
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = s.now().UTC()
	}

	s.articles[article.URL] = article
	s.order = append(s.order, article.URL)

	return true
}

func (s *MemoryArticleStorage) exists(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.articles[url]
	return ok
}

type memoryTx struct {
	parent *MemoryArticleStorage
	staged map[string]model.Article
	order  []string
}

func (t *memoryTx) InsertIfAbsent(ctx context.Context, article model.Article) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("inserting article %q: %w", article.URL, err)
	}
	if err := checkRequired(article); err != nil {
		return false, err
	}

	if _, staged := t.staged[article.URL]; staged || t.parent.exists(article.URL) {
		return false, nil
	}

	if article.Tags == nil {
		article.Tags = []string{}
	}
	article.CreatedAt = t.parent.now().UTC()

	t.staged[article.URL] = article
	t.order = append(t.order, article.URL)

	return true, nil
}
