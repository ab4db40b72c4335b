package dom

import (
	"net/url"
	"strings"
)

// ResolveURL makes target absolute: a bare "www." host gets an https
// scheme and a relative reference is resolved against base. Targets that
// cannot be resolved are returned trimmed but otherwise unchanged.
func ResolveURL(base, target string) string {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(strings.ToLower(target), "www.") {
		return "https://" + target
	}
	ref, err := url.Parse(target)
	if err != nil || ref.IsAbs() {
		return target
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return target
	}
	return b.ResolveReference(ref).String()
}
