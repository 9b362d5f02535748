package extract

import (
	"testing"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

func field(name string, text any) map[string]any {
	f := map[string]any{"name": name}
	if text != nil {
		f["text_value"] = text
	}
	return f
}

func event(fields ...any) domain.Event {
	return domain.Event{"custom_fields": fields}
}

func TestFindDomain(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "embedded in sentence", input: "visit example.co.uk today", want: "example.co.uk", wantOK: true},
		{name: "bare domain", input: "example.com", want: "example.com", wantOK: true},
		{name: "first of several", input: "a.io and b.io", want: "a.io", wantOK: true},
		{name: "hyphenated label", input: "my-site.example.org", want: "my-site.example.org", wantOK: true},
		{name: "cyrillic neighbours", input: "сайт: shop.example.ru, спасибо", want: "shop.example.ru", wantOK: true},
		{name: "url keeps host only", input: "https://example.com/path", want: "example.com", wantOK: true},
		{name: "underscore prefix rejected", input: "foo_example.com", wantOK: false},
		{name: "trailing dot rejected", input: "example.com.", wantOK: false},
		{name: "trailing hyphen rejected", input: "example.com-", wantOK: false},
		{name: "numeric tld rejected", input: "10.0.0.1", wantOK: false},
		{name: "single letter tld rejected", input: "example.c", wantOK: false},
		{name: "no dot", input: "localhost", wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "skips bad token before good one", input: "foo_bar.com then good.net", want: "good.net", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindDomain(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("FindDomain(%q) ok = %v, want %v (got %q)", tt.input, ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Errorf("FindDomain(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractorExtract(t *testing.T) {
	ex := NewExtractor("")

	tests := []struct {
		name   string
		event  domain.Event
		want   string
		wantOK bool
	}{
		{
			name:   "matching field",
			event:  event(field("домен", "visit example.co.uk today")),
			want:   "example.co.uk",
			wantOK: true,
		},
		{
			name:   "case-insensitive label",
			event:  event(field("ДОМЕН", "example.com")),
			want:   "example.com",
			wantOK: true,
		},
		{
			name:   "no custom fields",
			event:  domain.Event{"name": "task"},
			wantOK: false,
		},
		{
			name:   "custom fields not a list",
			event:  domain.Event{"custom_fields": "oops"},
			wantOK: false,
		},
		{
			name:   "no matching field",
			event:  event(field("site", "example.com")),
			wantOK: false,
		},
		{
			name:   "text value not a string",
			event:  event(field("домен", 42)),
			wantOK: false,
		},
		{
			name:   "first matching field without domain falls through",
			event:  event(field("домен", "n/a"), field("домен", "second.example.com")),
			want:   "second.example.com",
			wantOK: true,
		},
		{
			name:   "first matching field wins",
			event:  event(field("домен", "one.com"), field("домен", "two.com")),
			want:   "one.com",
			wantOK: true,
		},
		{
			name:   "malformed entries skipped",
			event:  event("string", 7, map[string]any{"text_value": "x.com"}, field("домен", "ok.com")),
			want:   "ok.com",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ex.Extract(tt.event)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Extract() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractIgnoresUnrelatedFields(t *testing.T) {
	ex := NewExtractor("домен")
	base := event(field("домен", "visit example.co.uk today"))
	noisy := event(
		field("priority", "high.example.com"),
		field("домен", "visit example.co.uk today"),
		field("owner", "ops.example.net"),
	)

	got1, ok1 := ex.Extract(base)
	got2, ok2 := ex.Extract(noisy)
	if got1 != got2 || ok1 != ok2 {
		t.Errorf("unrelated fields changed result: %q/%v vs %q/%v", got1, ok1, got2, ok2)
	}

	if _, ok := ex.Extract(event(field("priority", "high.example.com"))); ok {
		t.Error("expected no domain when no field carries the label")
	}
}

func TestCustomLabel(t *testing.T) {
	ex := NewExtractor("Website")
	if ex.Field() != "website" {
		t.Fatalf("Field() = %q, want website", ex.Field())
	}
	got, ok := ex.Extract(event(field("website", "status.example.io")))
	if !ok || got != "status.example.io" {
		t.Errorf("Extract() = (%q, %v)", got, ok)
	}
}
