package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, target, want string
	}{
		{"https://shop.test/cart", "https://other.test/x", "https://other.test/x"},
		{"https://shop.test/cart", "/login", "https://shop.test/login"},
		{"https://shop.test/a/b", "c?q=1", "https://shop.test/a/c?q=1"},
		{"https://shop.test/", "www.example.org", "https://www.example.org"},
		{"about:blank", "www.example.org/path", "https://www.example.org/path"},
		{"", "/login", "/login"},
		{"not a url", " /login ", "/login"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.target), "%q + %q", tt.base, tt.target)
	}
}
