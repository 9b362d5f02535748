package extract

import (
	"strings"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

// MaxFriendlyNameLen is the longest display name the monitoring API accepts.
const MaxFriendlyNameLen = 250

// Normalize reduces a domain or URL to a bare lowercase host so that wanted
// and existing monitors compare equal regardless of scheme, case or path.
func Normalize(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if rest, ok := strings.CutPrefix(d, "http://"); ok {
		d = rest
	} else if rest, ok := strings.CutPrefix(d, "https://"); ok {
		d = rest
	}
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return d
}

// BuildContext derives the monitor for a raw domain. The scheme is used
// as given; an empty scheme produces "://domain".
func BuildContext(raw, scheme string) domain.MonitorContext {
	d := Normalize(raw)
	return domain.MonitorContext{
		Domain:       d,
		MonitorURL:   scheme + "://" + d,
		FriendlyName: d,
	}
}

// ClipFriendlyName truncates a display name to MaxFriendlyNameLen characters.
func ClipFriendlyName(name string) string {
	if len(name) <= MaxFriendlyNameLen {
		return name
	}
	runes := []rune(name)
	if len(runes) <= MaxFriendlyNameLen {
		return name
	}
	return string(runes[:MaxFriendlyNameLen])
}
