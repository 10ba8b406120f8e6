package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		qname     string
		subdomain string
		parent    string
		ok        bool
	}{
		{"two labels", "example.com", "", "example.com", true},
		{"three labels", "www.example.com", "www", "example.com", true},
		{"deep chain", "a.b.c.example.com", "a.b.c", "example.com", true},
		{"trailing dot", "www.example.com.", "www", "example.com", true},
		{"single label", "localhost", "", "", false},
		{"empty", "", "", "", false},
		{"only dots", "...", "", "", false},
		{"consecutive dots", "a..example.com", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, parent, ok := Split(tt.qname)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.subdomain, sub)
			require.Equal(t, tt.parent, parent)
		})
	}
}
