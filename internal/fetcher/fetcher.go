package fetcher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kovalyov-valentin/article-collector/internal/config"
	"github.com/kovalyov-valentin/article-collector/internal/model"
	"github.com/kovalyov-valentin/article-collector/internal/storage"
	"github.com/kovalyov-valentin/article-collector/internal/summary"
	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

// Хранилище, которое умеет выполнять запись всего прогона в одной транзакции
type ArticleStorage interface {
	Transact(ctx context.Context, fn storage.TxFunc) error
}

// Интерфейс источника
type Source interface {
	Name() string
	// Этот метод уже реализован у RSS источника
	Fetch(ctx context.Context) ([]model.Item, error)
}

// Получатель новых статей после успешного коммита, например телеграм канал
type Announcer interface {
	Announce(ctx context.Context, articles []model.Article) error
}

// Итоги одного прогона
type Report struct {
	Feeds int
	// Сколько записей прошло через сборщик (с учетом лимита на ленту)
	Entries int
	// Статьи, которые действительно добавились в хранилище
	Inserted []model.Article
	// Записи, url которых уже был в хранилище
	Duplicates int
	// Записи, отброшенные по ключевым словам
	Skipped int
}

// Структура сборщика
type Fetcher struct {
	// Хранилище статей
	articles ArticleStorage
	// Ленты, обходим строго в этом порядке
	sources []Source
	// Может быть nil, тогда никого не уведомляем
	announcer Announcer

	entriesPerFeed     int
	summaryMaxLen      int
	summaryPlaceholder string
	category           string
	// Как часто ходить по лентам. 0 - один прогон
	fetchInterval time.Duration
	// Фильтрация статей по ключевым словам
	filterKeywords []string
}

// Все параметры берем из конфига и прячем в неэкспортируемые поля,
// чтобы их нельзя было поменять извне
func NewFetcher(articleStorage ArticleStorage, sources []Source, announcer Announcer, cfg *config.Config) *Fetcher {
	keywords := make([]string, 0, len(cfg.FilterKeywords))
	for _, keyword := range cfg.FilterKeywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" {
			keywords = append(keywords, keyword)
		}
	}

	return &Fetcher{
		articles:           articleStorage,
		sources:            sources,
		announcer:          announcer,
		entriesPerFeed:     cfg.EntriesPerFeed,
		summaryMaxLen:      cfg.SummaryMaxLen,
		summaryPlaceholder: cfg.SummaryPlaceholder,
		category:           cfg.DefaultCategory,
		fetchInterval:      cfg.FetchInterval,
		filterKeywords:     keywords,
	}
}

// Start делает прогон сразу, и если задан fetchInterval, дальше повторяет его по тикеру,
// пока не отменят контекст. Без интервала это один прогон, как у задачи по крону
func (f *Fetcher) Start(ctx context.Context) error {
	if err := f.run(ctx); err != nil {
		return err
	}

	if f.fetchInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(f.fetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.run(ctx); err != nil {
				return err
			}
		}
	}
}

func (f *Fetcher) run(ctx context.Context) error {
	report, err := f.Fetch(ctx)
	if err != nil {
		return err
	}

	log.Printf(
		"[INFO] run finished: feeds: %d, entries: %d, inserted: %d, duplicates: %d, skipped: %d",
		report.Feeds, report.Entries, len(report.Inserted), report.Duplicates, report.Skipped,
	)

	if f.announcer == nil || len(report.Inserted) == 0 {
		return nil
	}

	// Статьи уже закоммичены, поэтому ошибка уведомления не должна ронять сборщик
	if err := f.announcer.Announce(ctx, report.Inserted); err != nil {
		log.Printf("[WARN] failed to announce %d new articles: %v", len(report.Inserted), err)
	}

	return nil
}

// Fetch обходит все ленты по очереди и пишет записи в одной транзакции.
// Любая ошибка откатывает весь прогон, частичного коммита не бывает
func (f *Fetcher) Fetch(ctx context.Context) (Report, error) {
	var report Report

	err := f.articles.Transact(ctx, func(ctx context.Context, tx storage.ArticleInserter) error {
		for _, src := range f.sources {
			items, err := src.Fetch(ctx)
			if err != nil {
				log.Printf("[ERROR] fetching items from source %s: %v", src.Name(), err)
				return fmt.Errorf("fetching source %s: %w", src.Name(), err)
			}

			report.Feeds++

			if err := f.processItems(ctx, tx, src, items, &report); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Report{}, err
	}

	return report, nil
}

// Метод для процессинга записей одной ленты
func (f *Fetcher) processItems(ctx context.Context, tx storage.ArticleInserter, src Source, items []model.Item, report *Report) error {
	if len(items) > f.entriesPerFeed {
		items = items[:f.entriesPerFeed]
	}

	for _, item := range items {
		report.Entries++

		// Проверка item, может его нужно скипнуть
		if f.itemShouldBeSkipped(item) {
			report.Skipped++
			continue
		}

		summaryText := summary.Extract(item.Summary, f.summaryMaxLen)
		if summaryText == "" {
			summaryText = f.summaryPlaceholder
		}

		article, inserted, err := UpsertArticle(ctx, tx, item.Title, item.Link, summaryText, item.SourceName, f.category)
		if err != nil {
			log.Printf("[ERROR] storing article: source: %s, feed: %s, url: %s: %v", src.Name(), item.SourceName, item.Link, err)
			return fmt.Errorf("storing article %s from %s: %w", item.Link, src.Name(), err)
		}

		if !inserted {
			report.Duplicates++
			continue
		}

		report.Inserted = append(report.Inserted, article)
	}

	return nil
}

// Проходимся по категориям записи и по title.
// Если там встречается одно из ключевых слов, запись пропускаем
func (f *Fetcher) itemShouldBeSkipped(item model.Item) bool {
	if len(f.filterKeywords) == 0 {
		return false
	}

	// Сет, чтобы быстро проверять, есть ли ключевое слово среди категорий
	categoriesSet := set.New(lo.Map(item.Categories, func(category string, _ int) string {
		return strings.ToLower(category)
	})...)
	title := strings.ToLower(item.Title)

	for _, keyword := range f.filterKeywords {
		if categoriesSet.Contains(keyword) || strings.Contains(title, keyword) {
			return true
		}
	}

	return false
}
