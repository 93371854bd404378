package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateLaw(t *testing.T) {
	inputs := []string{
		strings.Repeat("a", 500),
		strings.Repeat("سلام ", 100),
		"короткий",
		"",
		strings.Repeat("x", 10),
	}
	const limit = 10
	for _, in := range inputs {
		out := Truncate(in, limit)
		if utf8.RuneCountInString(in) <= limit {
			if out != in {
				t.Fatalf("короткий текст не должен меняться: %q -> %q", in, out)
			}
			continue
		}
		if !strings.HasSuffix(out, Ellipsis) {
			t.Fatalf("нет многоточия: %q", out)
		}
		if got := utf8.RuneCountInString(strings.TrimSuffix(out, Ellipsis)); got != limit {
			t.Fatalf("ожидали %d рун до многоточия, получили %d", limit, got)
		}
		if again := Truncate(out, limit); again != out {
			t.Fatalf("повторная обрезка изменила текст: %q -> %q", out, again)
		}
	}
}

func TestTruncateDisabled(t *testing.T) {
	in := strings.Repeat("a", 50)
	if Truncate(in, 0) != in {
		t.Fatalf("limit=0 отключает обрезку")
	}
}
