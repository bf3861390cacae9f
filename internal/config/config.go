package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
	"github.com/samber/lo"
)

// Конфиг храним в файле в формате hcl.
// Для каждого поля также указываем ключ переменной окружения
type Config struct {
	DatabaseDSN string `hcl:"database_dsn" env:"DATABASE_DSN"`
	// Список лент, которые обходим за один запуск. Порядок важен
	Feeds []string `hcl:"feeds" env:"FEEDS" default:"https://hnrss.org/frontpage,https://qiita.com/popular-items/feed,https://dev.to/feed"`
	// Сколько записей берем из каждой ленты
	EntriesPerFeed     int    `hcl:"entries_per_feed" env:"ENTRIES_PER_FEED" default:"20"`
	SummaryMaxLen      int    `hcl:"summary_max_len" env:"SUMMARY_MAX_LEN" default:"280"`
	SummaryPlaceholder string `hcl:"summary_placeholder" env:"SUMMARY_PLACEHOLDER" default:"(no summary)"`
	DefaultCategory    string `hcl:"default_category" env:"DEFAULT_CATEGORY" default:"General"`
	// Имя источника, если у ленты нет заголовка
	DefaultSource  string   `hcl:"default_source" env:"DEFAULT_SOURCE" default:"RSS"`
	FilterKeywords []string `hcl:"filter_keywords" env:"FILTER_KEYWORDS"`
	// 0 - отработать один раз и выйти (запуск по крону).
	// Иначе сборщик работает как воркер и ходит по лентам с этим интервалом
	FetchInterval time.Duration `hcl:"fetch_interval" env:"FETCH_INTERVAL" default:"0s"`
	MigrateSchema bool          `hcl:"migrate_schema" env:"MIGRATE_SCHEMA" default:"false"`
	// Пишем в память вместо БД, ничего не сохраняется
	DryRun            bool   `hcl:"dry_run" env:"DRY_RUN" default:"false"`
	TelegramBotToken  string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChannelID int64  `hcl:"telegram_channel_id" env:"TELEGRAM_CHANNEL_ID"`
}

// Файлы, в которых по умолчанию ищем конфиг
var defaultFiles = []string{"./config.hcl", "./config.local.hcl"}

// Load читает конфиг один раз при старте. Дальше он передается по указателю туда, где нужен.
// Если files не переданы, используются ./config.hcl и ./config.local.hcl
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = defaultFiles
	}

	var cfg Config

	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		// Префикс, чтобы переменные не пересеклись с переменными других программ
		EnvPrefix: "NAC",
		// Флаги командной строки не разбираем, все настраивается через файл и окружение
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Одна и та же лента может попасть в список дважды (файл + окружение), оставляем первую
	cfg.Feeds = lo.Uniq(lo.Filter(cfg.Feeds, func(feed string, _ int) bool {
		return strings.TrimSpace(feed) != ""
	}))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" && !c.DryRun {
		errs = append(errs, errors.New("database_dsn is required unless dry_run is set"))
	}
	if len(c.Feeds) == 0 {
		errs = append(errs, errors.New("feeds must not be empty"))
	}
	if c.EntriesPerFeed <= 0 {
		errs = append(errs, fmt.Errorf("entries_per_feed must be positive, got %d", c.EntriesPerFeed))
	}
	if c.SummaryMaxLen <= 0 {
		errs = append(errs, fmt.Errorf("summary_max_len must be positive, got %d", c.SummaryMaxLen))
	}
	if c.FetchInterval < 0 {
		errs = append(errs, fmt.Errorf("fetch_interval must not be negative, got %s", c.FetchInterval))
	}
	if c.TelegramBotToken != "" && c.TelegramChannelID == 0 {
		errs = append(errs, errors.New("telegram_channel_id is required when telegram_bot_token is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}
