package summary

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

// Длина summary по умолчанию, в символах
const DefaultMaxLen = 280

const ellipsis = "…"

// Extract превращает тело записи ленты в короткий plain text.
// Сначала декодируем html сущности, потом выкидываем разметку,
// склеивая текстовые фрагменты через один пробел, и обрезаем до maxLen символов.
// Пустой вход дает пустую строку, подстановку заглушки делает вызывающий код.
// Функция никогда не падает: на кривой разметке возвращаем то, что удалось достать
func Extract(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := html.UnescapeString(raw)

	// Без разметки и сущностей парсер не нужен, текст возвращаем как есть
	if !strings.ContainsAny(text, "<&") {
		return truncate(strings.TrimSpace(text), maxLen)
	}

	return truncate(plainText(text), maxLen)
}

// Обрезаем до maxLen символов (рун, а не байт) и добавляем многоточие
func truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	return string([]rune(text)[:maxLen]) + ellipsis
}

// Текст внутри этих элементов не является содержимым записи
const nonContentSelector = "script, style, template"

// Содержимое этих элементов html парсер отдает одним текстовым узлом вместе с разметкой.
// Такой текст разбираем повторно, иначе теги попадут в summary
var rawTextElements = map[string]bool{
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"noscript":  true,
	"plaintext": true,
	"textarea":  true,
	"title":     true,
	"xmp":       true,
}

func plainText(markup string) string {
	return strings.Join(textFragments(markup), " ")
}

func textFragments(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		// Если парсер все-таки упал, собираем текст токенайзером
		return tokenFragments(markup)
	}

	doc.Find(nonContentSelector).Remove()

	var fragments []string
	for _, node := range doc.Nodes {
		fragments = collectText(node, fragments)
	}

	return fragments
}

// Обходим дерево и собираем непустые текстовые узлы, обрезая пробелы по краям каждого
func collectText(node *nethtml.Node, fragments []string) []string {
	switch node.Type {
	case nethtml.TextNode:
		if isRawText(node) {
			// Каждый повторный разбор снимает минимум один тег, так что рекурсия конечна
			return append(fragments, textFragments(node.Data)...)
		}
		if text := strings.TrimSpace(node.Data); text != "" {
			fragments = append(fragments, text)
		}
		return fragments
	case nethtml.CommentNode, nethtml.DoctypeNode:
		return fragments
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		fragments = collectText(child, fragments)
	}

	return fragments
}

func isRawText(node *nethtml.Node) bool {
	return node.Parent != nil &&
		node.Parent.Type == nethtml.ElementNode &&
		rawTextElements[node.Parent.Data] &&
		strings.Contains(node.Data, "<")
}

// Запасной вариант: идем по токенам и берем только текст
func tokenText(markup string) string {
	return strings.Join(tokenFragments(markup), " ")
}

func tokenFragments(markup string) []string {
	var (
		fragments []string
		skipDepth int
		// Последний открытый тег, если его содержимое токенайзер отдает как сырой текст
		rawParent string
		tokenizer = nethtml.NewTokenizer(strings.NewReader(markup))
	)

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case nethtml.ErrorToken:
			return fragments
		case nethtml.StartTagToken, nethtml.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)

			rawParent = ""
			if tokenType == nethtml.StartTagToken && rawTextElements[tag] {
				rawParent = tag
			}

			switch {
			case !isNonContent(tag):
			case tokenType == nethtml.StartTagToken:
				skipDepth++
			case skipDepth > 0:
				skipDepth--
			}
		case nethtml.TextToken:
			if skipDepth > 0 {
				continue
			}

			text := string(tokenizer.Text())
			if rawParent != "" && strings.Contains(text, "<") {
				fragments = append(fragments, tokenFragments(text)...)
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				fragments = append(fragments, text)
			}
		default:
			rawParent = ""
		}
	}
}

func isNonContent(tag string) bool {
	switch tag {
	case "script", "style", "template":
		return true
	default:
		return false
	}
}
