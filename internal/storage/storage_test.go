package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "exports/7/42/v3.pdf", ExportKey(7, 42, 3))
	assert.Equal(t, "exports/7/42/", ExportPrefix(7, 42))
	assert.Equal(t, "avatars/7/abc.png", AvatarKey(7, "abc", ".png"))
}

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, IsNoSuchKey(nil))
	assert.True(t, IsNoSuchKey(fmt.Errorf("stat: %w", minio.ErrorResponse{Code: "NoSuchKey"})))
	assert.True(t, IsNoSuchKey(errors.New("The specified key does not exist.")))
	assert.False(t, IsNoSuchKey(errors.New("connection refused")))
}

func TestParseBucketLookup(t *testing.T) {
	got, err := parseBucketLookup(" PATH ")
	assert.NoError(t, err)
	assert.Equal(t, minio.BucketLookupPath, got)

	_, err = parseBucketLookup("virtual")
	assert.Error(t, err)
}
