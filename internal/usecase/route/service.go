package route

import (
	"strings"

	"tg-wp-mirror/internal/domain"
)

// DefaultKey обозначает сайт по умолчанию.
const DefaultKey = "default"

// Service выбирает сайт назначения по языку текста.
type Service struct {
	detector domain.LanguageDetector
	targets  map[string]domain.Target
	fallback domain.Target
}

var _ domain.Router = (*Service)(nil)

// NewService создаёт маршрутизатор: destinations сопоставляет код языка с базовым URL.
func NewService(detector domain.LanguageDetector, destinations map[string]string, defaultURL string) *Service {
	targets := make(map[string]domain.Target, len(destinations))
	for lang, url := range destinations {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" || url == "" {
			continue
		}
		targets[lang] = domain.Target{Key: lang, BaseURL: url}
	}
	return &Service{
		detector: detector,
		targets:  targets,
		fallback: domain.Target{Key: DefaultKey, BaseURL: defaultURL},
	}
}

// Route определяет язык и сайт. Пустой текст и неизвестные языки идут на сайт по умолчанию.
func (s *Service) Route(text string) (string, domain.Target) {
	if strings.TrimSpace(text) == "" {
		return "", s.fallback
	}
	lang := strings.ToLower(s.detector.Detect(text))
	if target, ok := s.targets[lang]; ok {
		return lang, target
	}
	return lang, s.fallback
}

// Lookup возвращает сайт по сохранённому ключу; неизвестный ключ даёт сайт по умолчанию.
func (s *Service) Lookup(key string) domain.Target {
	if target, ok := s.targets[key]; ok {
		return target
	}
	return s.fallback
}
