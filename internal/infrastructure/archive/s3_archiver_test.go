package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight/backend/internal/domain/platform"
	infraconfig "github.com/finsight/backend/internal/infrastructure/config"
)

func TestArchiveKey(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	key := archiveKey("user-1", platform.Shopify, "orders", at)
	assert.Equal(t, "raw/user-1/shopify/orders/20260115T103000.000Z.json", key)
}

func TestNewS3ArchiverValidation(t *testing.T) {
	_, err := NewS3Archiver(nil)
	assert.Error(t, err)

	_, err = NewS3Archiver(&infraconfig.ArchiveConfig{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
