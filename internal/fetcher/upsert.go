package fetcher

import (
	"context"

	"github.com/google/uuid"
	"github.com/kovalyov-valentin/article-collector/internal/model"
	"github.com/kovalyov-valentin/article-collector/internal/storage"
)

// Категория, которую получают все статьи этого сборщика
const DefaultCategory = "General"

// UpsertArticle записывает статью, если статьи с таким url еще нет.
// Если есть - ничего не пишет и ошибку не возвращает, существующая строка не меняется.
// Возвращает собранную статью и признак того, что строка действительно добавилась.
// Ошибки хранилища (storage.ErrStoreUnavailable, storage.ErrConstraintViolation) отдаются наверх
func UpsertArticle(
	ctx context.Context,
	store storage.ArticleInserter,
	title, url, summary, source, category string,
) (model.Article, bool, error) {
	if category == "" {
		category = DefaultCategory
	}

	article := model.Article{
		ID:       uuid.NewString(),
		Title:    title,
		URL:      url,
		Summary:  summary,
		Tags:     []string{},
		Category: category,
		Source:   source,
	}

	inserted, err := store.InsertIfAbsent(ctx, article)
	if err != nil {
		return model.Article{}, false, err
	}

	return article, inserted, nil
}
