package s3storage

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ilkoid/specmatch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenshotKey(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	uuidRe := `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

	tests := []struct {
		name        string
		prefix      string
		contentType string
		pattern     string
	}{
		{"png with slash prefix", "screenshots/", "image/png", `^screenshots/2026/03/09/` + uuidRe + `\.png$`},
		{"jpeg without slash", "shots", "image/jpeg", `^shots/2026/03/09/` + uuidRe + `\.jpg$`},
		{"no prefix", "", "image/webp", `^2026/03/09/` + uuidRe + `\.webp$`},
		{"unknown type", "", "application/octet-stream", `\.bin$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ScreenshotKey(tt.prefix, tt.contentType, now)
			assert.Regexp(t, regexp.MustCompile(tt.pattern), key)
		})
	}
}

func TestScreenshotKey_Unique(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, ScreenshotKey("p", "image/png", now), ScreenshotKey("p", "image/png", now))
}

func TestNew(t *testing.T) {
	c, err := New(config.S3Config{
		Endpoint:  "localhost:9000",
		Region:    "us-east-1",
		Bucket:    "screens",
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "uploads/",
	})
	require.NoError(t, err)
	assert.Equal(t, "screens", c.bucket)
	assert.True(t, strings.HasPrefix(c.NewKey("image/png"), "uploads/"))
}
