package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

func TestIdentifierResolver(t *testing.T) {
	resolver := NewIdentifierResolver(map[string]string{
		"villa-coral-tulum":  "https://feeds.example.com/coral-tulum.ics",
		"villa-coral":        "https://feeds.example.com/coral.ics",
		"villa-azure-cabo":   "https://feeds.example.com/azure-cabo.ics",
		"villa-azure-anguil": "https://feeds.example.com/azure-anguilla.ics",
		" Casa-Sol ":         "https://feeds.example.com/sol.ics",
		"empty":              "",
	})

	cases := []struct {
		name    string
		raw     string
		wantKey string
	}{
		{"exact", "villa-coral", "villa-coral"},
		{"exact beats prefix", "Villa-Coral", "villa-coral"},
		{"preview suffix", "villa-coral-preview", "villa-coral"},
		{"numbered preview", "villa-coral-preview42", "villa-coral"},
		{"prefix qualifier", "villa-azure", "villa-azure-anguil"},
		{"prefix after preview strip", "villa-azure-preview3", "villa-azure-anguil"},
		{"registry keys normalised", "casa-sol", "casa-sol"},
		{"partial word is not a prefix match", "villa-cor", ""},
		{"unknown", "unknown-villa", ""},
		{"blank", "   ", ""},
		{"empty url ignored", "empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolver.Resolve(tc.raw)
			if tc.wantKey == "" {
				assert.Equal(t, models.Unconfigured, got)
				assert.False(t, got.IsConfigured())
				return
			}
			assert.True(t, got.IsConfigured())
			assert.Equal(t, tc.wantKey, got.Key)
		})
	}
}

func TestIdentifierResolverExactWinsRegardlessOfOrder(t *testing.T) {
	// Map iteration order varies between runs; the exact key must win every time.
	for i := 0; i < 20; i++ {
		resolver := NewIdentifierResolver(map[string]string{
			"a-b-c": "https://x/abc.ics",
			"a-b":   "https://x/ab.ics",
			"a-b-a": "https://x/aba.ics",
		})
		assert.Equal(t, "https://x/ab.ics", resolver.Resolve("a-b").URL)
		assert.Equal(t, "a-b", resolver.Resolve("a").Key)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "villa-azure", NormalizeIdentifier("  VILLA-AZURE-Preview12 "))
	assert.Equal(t, "villa-preview-house", NormalizeIdentifier("villa-preview-house"))
	assert.Equal(t, []string{"a", "b"}, NewIdentifierResolver(map[string]string{"b": "u", "a": "u"}).Keys())
}
