package langid

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"tg-wp-mirror/internal/domain"
)

// Whatlang определяет язык статистически по триграммам.
type Whatlang struct{}

var _ domain.LanguageDetector = Whatlang{}

// Detect возвращает код ISO-639-1 или пустую строку, если язык не определён.
// Западный фарси (pes) в whatlanggo не имеет кода ISO-639-1 и отдаётся как "fa".
func (Whatlang) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Lang == -1 {
		return ""
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return iso6393Fallback[info.Lang.Iso6393()]
}

// iso6393Fallback покрывает языки whatlanggo без кода ISO-639-1.
var iso6393Fallback = map[string]string{
	"pes": "fa",
}
