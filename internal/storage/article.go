package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/article-collector/internal/model"
	"github.com/lib/pq"
)

// Все, что нужно сборщику от хранилища внутри транзакции
type ArticleInserter interface {
	InsertIfAbsent(ctx context.Context, article model.Article) (bool, error)
}

// Функция, которая выполняется внутри одной транзакции
type TxFunc func(ctx context.Context, tx ArticleInserter) error

// Схема таблицы. Уникальность url - единственный контракт, на который мы опираемся
const articleSchema = `CREATE TABLE IF NOT EXISTS "Article" (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	url         TEXT NOT NULL UNIQUE,
	summary     TEXT NOT NULL,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	category    TEXT NOT NULL DEFAULT 'General',
	source      TEXT NOT NULL,
	"createdAt" TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// При конфликте по url ничего не пишем и не возвращаем ошибку
const insertArticleQuery = `INSERT INTO "Article" (id, title, url, summary, tags, category, source, "createdAt")
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (url) DO NOTHING`

// Хранилище статей в Postgres
type ArticlePostgresStorage struct {
	db *sqlx.DB
}

func NewArticleStorage(db *sqlx.DB) *ArticlePostgresStorage {
	return &ArticlePostgresStorage{db: db}
}

// Создаем таблицу, если ее еще нет
func (s *ArticlePostgresStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, articleSchema); err != nil {
		return classifyError("creating article table", err)
	}

	return nil
}

// Вставка вне транзакции, каждая запись коммитится сразу
func (s *ArticlePostgresStorage) InsertIfAbsent(ctx context.Context, article model.Article) (bool, error) {
	return insertArticle(ctx, s.db, article)
}

// Transact выполняет fn в одной транзакции. Если fn вернула ошибку, откатываем все,
// что было записано, иначе коммитим один раз в конце
func (s *ArticlePostgresStorage) Transact(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError("beginning transaction", err)
	}

	if err := fn(ctx, articleTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, classifyError("rolling back", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError("committing transaction", err)
	}

	return nil
}

type articleTx struct {
	tx *sqlx.Tx
}

func (t articleTx) InsertIfAbsent(ctx context.Context, article model.Article) (bool, error) {
	return insertArticle(ctx, t.tx, article)
}

func insertArticle(ctx context.Context, db sqlx.ExecerContext, article model.Article) (bool, error) {
	if err := checkRequired(article); err != nil {
		return false, err
	}

	tags := article.Tags
	if tags == nil {
		// nil массив уйдет в базу как NULL, а нам нужен пустой
		tags = []string{}
	}

	res, err := db.ExecContext(
		ctx,
		insertArticleQuery,
		article.ID,
		article.Title,
		article.URL,
		article.Summary,
		pq.Array(tags),
		article.Category,
		article.Source,
	)
	if err != nil {
		return false, classifyError(fmt.Sprintf("inserting article %q", article.URL), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, classifyError("reading affected rows", err)
	}

	return affected > 0, nil
}
