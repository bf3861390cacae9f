package markup

import (
	"strings"

	"github.com/samber/lo"
)

// Символы, которые в MarkdownV2 телеграма надо экранировать обратным слешем.
// Сам обратный слеш идет первым
const specialChars = "\\_*[]()~`>#+-=|{}.!"

var replacer = strings.NewReplacer(
	lo.FlatMap([]rune(specialChars), func(char rune, _ int) []string {
		return []string{string(char), "\\" + string(char)}
	})...,
)

// Функция которая делает escape спец символов markdown специально для телеграма
func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}
