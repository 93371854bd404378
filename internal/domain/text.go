package domain

// Ellipsis дописывается к обрезанному тексту.
const Ellipsis = "..."

// Truncate оставляет первые limit рун и дописывает Ellipsis.
// Повторное применение к результату ничего не меняет. limit <= 0 отключает обрезку.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + Ellipsis
}
