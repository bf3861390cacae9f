package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kovalyov-valentin/article-collector/internal/model"
	"github.com/lib/pq"
)

var (
	// Хранилище недоступно: нет соединения, сервер упал или перезапускается
	ErrStoreUnavailable = errors.New("article store unavailable")
	// Нарушено ограничение, кроме уникальности url (например, пустое обязательное поле)
	ErrConstraintViolation = errors.New("article constraint violation")
)

// Пустые title и url для нас то же самое, что NULL в обязательной колонке
func checkRequired(article model.Article) error {
	switch {
	case article.ID == "":
		return fmt.Errorf("%w: id is empty", ErrConstraintViolation)
	case strings.TrimSpace(article.Title) == "":
		return fmt.Errorf("%w: title is empty (url %q)", ErrConstraintViolation, article.URL)
	case strings.TrimSpace(article.URL) == "":
		return fmt.Errorf("%w: url is empty (title %q)", ErrConstraintViolation, article.Title)
	}

	return nil
}

// Раскладываем ошибку драйвера по нашим двум категориям.
// Все остальное (например отмена контекста) возвращаем как есть
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		pqErr  *pq.Error
		netErr net.Error
	)

	switch {
	case errors.As(err, &pqErr):
		// SQLSTATE класс 23 - integrity constraint violation
		if pqErr.Code.Class() == "23" {
			return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
		}
		// 08 - connection exception, 57P0x - сервер выключается или недоступен
		if pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P") {
			return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
		}
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
