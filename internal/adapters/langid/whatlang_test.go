package langid

import "testing"

func TestWhatlangDetect(t *testing.T) {
	d := Whatlang{}
	if got := d.Detect("   "); got != "" {
		t.Fatalf("пустой текст не имеет языка, получили %q", got)
	}
	if got := d.Detect("این یک متن فارسی برای آزمایش تشخیص زبان است و باید درست شناسایی شود"); got != "fa" {
		t.Fatalf("ожидали fa, получили %q", got)
	}
	if got := d.Detect("This is an English sentence written to check that language detection works properly"); got != "en" {
		t.Fatalf("ожидали en, получили %q", got)
	}
}

func TestWhatlangFallbackCodes(t *testing.T) {
	if got := iso6393Fallback["pes"]; got != "fa" {
		t.Fatalf("pes должен отображаться в fa, получили %q", got)
	}
}
