package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/article-collector/internal/botkit/markup"
	"github.com/kovalyov-valentin/article-collector/internal/model"
)

// Часть клиента botAPI, которая нам нужна. *tgbotapi.BotAPI ей удовлетворяет
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Announcer постит новые статьи в телеграм канал
type Announcer struct {
	bot Sender
	// id канала куда мы будем постить статьи
	channelID int64
}

func New(bot Sender, channelID int64) *Announcer {
	return &Announcer{
		bot:       bot,
		channelID: channelID,
	}
}

// Announce отправляет статьи по одной в том порядке, в котором они были добавлены.
// На первой ошибке останавливаемся
func (a *Announcer) Announce(ctx context.Context, articles []model.Article) error {
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.sendArticle(article); err != nil {
			return fmt.Errorf("sending article %s: %w", article.URL, err)
		}
	}

	return nil
}

// Метод отправки статьи
func (a *Announcer) sendArticle(article model.Article) error {
	// Сначала идет жирным заголовок, потом summary, потом источник курсивом и ссылка на статью
	const msgFormat = "*%s*\n\n%s\n\n_%s_\n%s"

	msg := tgbotapi.NewMessage(a.channelID, fmt.Sprintf(
		// Спец символы markdown встречаются в тексте как обычные символы, поэтому экранируем аргументы
		msgFormat,
		markup.EscapeForMarkdown(article.Title),
		markup.EscapeForMarkdown(article.Summary),
		markup.EscapeForMarkdown(article.Source),
		markup.EscapeForMarkdown(article.URL),
	))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := a.bot.Send(msg); err != nil {
		return err
	}

	return nil
}
