package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/article-collector/internal/config"
	"github.com/kovalyov-valentin/article-collector/internal/fetcher"
	"github.com/kovalyov-valentin/article-collector/internal/notifier"
	"github.com/kovalyov-valentin/article-collector/internal/source"
	"github.com/kovalyov-valentin/article-collector/internal/storage"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
)

func main() {
	// Конфиг читаем один раз и дальше передаем явно
	cfg, err := config.Load()
	if err != nil {
		log.Printf("[ERROR] failed to load config: %v", err)
		os.Exit(1)
	}

	// Graceful shutdown: незакоммиченный прогон откатится
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if code := exitCode(run(ctx, cfg)); code != 0 {
		cancel()
		os.Exit(code)
	}
}

// Отмена по сигналу - штатная остановка, все остальное - ошибка запуска
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		log.Println("[INFO] collector stopped")
		return 0
	default:
		log.Printf("[ERROR] collector failed: %v", err)
		return 1
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var articleStorage fetcher.ArticleStorage

	if cfg.DryRun {
		memory := storage.NewMemoryArticleStorage()
		defer func() {
			for _, article := range memory.Articles() {
				log.Printf("[INFO] dry run: %s | %s | %s", article.Source, article.Title, article.URL)
			}
		}()
		articleStorage = memory
	} else {
		// Подключение к БД открываем один раз на весь запуск
		db, err := sqlx.Connect("postgres", cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("%w: connecting to database: %w", storage.ErrStoreUnavailable, err)
		}
		defer db.Close()

		pg := storage.NewArticleStorage(db)
		if cfg.MigrateSchema {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		articleStorage = pg
	}

	// Уведомления в телеграм включаются только если задан токен
	var announcer fetcher.Announcer
	if cfg.TelegramBotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("creating telegram bot: %w", err)
		}
		announcer = notifier.New(botAPI, cfg.TelegramChannelID)
	}

	sources := lo.Map(cfg.Feeds, func(feedURL string, _ int) fetcher.Source {
		return source.NewRSSSource(feedURL, cfg.DefaultSource)
	})

	log.Printf("[INFO] collecting %d feeds, dry run: %v", len(sources), cfg.DryRun)

	return fetcher.NewFetcher(articleStorage, sources, announcer, cfg).Start(ctx)
}
