package model

import "time"

// Запись ленты в том виде, в котором ее отдает источник
type Item struct {
	// Название статьи
	Title string
	// Категории статьи из ленты
	Categories []string
	// Ссылка
	Link string
	// Дата публикации в источнике
	Date time.Time
	// Тело записи. Может содержать html разметку и html сущности
	Summary string
	// Имя источника, берется из заголовка самой ленты
	SourceName string
}

// Модель статьи, которую мы храним в таблице "Article"
type Article struct {
	// Непрозрачный идентификатор, генерируется при вставке
	ID    string
	Title string
	// Ключ идемпотентности. В таблице не может быть двух статей с одним url
	URL string
	// Короткий plain text, полученный из тела записи
	Summary string
	// При создании всегда пустой набор
	Tags     []string
	Category string
	Source   string
	// Время вставки, проставляет хранилище
	CreatedAt time.Time
}
