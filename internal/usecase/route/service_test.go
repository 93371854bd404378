package route

import "testing"

type stubDetector map[string]string

func (s stubDetector) Detect(text string) string { return s[text] }

func TestRoute(t *testing.T) {
	detector := stubDetector{"سلام": "fa", "hello": "en", "hallo": "de"}
	svc := NewService(detector, map[string]string{"fa": "https://fa.example.com", "en": "https://example.com"}, "https://example.com")

	lang, target := svc.Route("سلام")
	if lang != "fa" || target.BaseURL != "https://fa.example.com" || target.Key != "fa" {
		t.Fatalf("персидский текст должен идти на fa: %s %+v", lang, target)
	}
	if _, target := svc.Route("hello"); target.BaseURL != "https://example.com" {
		t.Fatalf("английский текст должен идти на сайт по умолчанию: %+v", target)
	}
	if lang, target := svc.Route("hallo"); lang != "de" || target.Key != DefaultKey {
		t.Fatalf("неизвестный язык должен идти на сайт по умолчанию: %s %+v", lang, target)
	}
	if lang, target := svc.Route("  "); lang != "" || target.Key != DefaultKey {
		t.Fatalf("пустой текст должен идти на сайт по умолчанию: %q %+v", lang, target)
	}
}

func TestLookup(t *testing.T) {
	svc := NewService(stubDetector{}, map[string]string{"FA": "https://fa.example.com"}, "https://example.com")
	if got := svc.Lookup("fa"); got.BaseURL != "https://fa.example.com" {
		t.Fatalf("ожидали fa, получили %+v", got)
	}
	if got := svc.Lookup("gone"); got.Key != DefaultKey {
		t.Fatalf("неизвестный ключ должен давать сайт по умолчанию: %+v", got)
	}
	if got := svc.Lookup(""); got.Key != DefaultKey {
		t.Fatalf("пустой ключ должен давать сайт по умолчанию: %+v", got)
	}
}
