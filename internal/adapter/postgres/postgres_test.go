package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSSLMode(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgres://u:p@localhost/db?sslmode=require", "require"},
		{"postgres://u:p@localhost/db?sslmode=DISABLE", "disable"},
		{"postgres://u:p@localhost/db", "prefer (default)"},
		{"://bad", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractSSLMode(tt.url), tt.url)
	}
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "SELECT", queryName("select user_id FROM consents"))
	assert.Equal(t, "INSERT", queryName("\n  INSERT INTO consents"))
	assert.Equal(t, "unknown", queryName("   "))
}
