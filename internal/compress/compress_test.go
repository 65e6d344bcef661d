// internal/compress/compress_test.go
package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-service/internal/models"
)

func TestCompress_ShrinksRedundantData(t *testing.T) {
	svc := NewService()

	// Highly repetitive content compresses well.
	data := bytes.Repeat([]byte("academic transcript line\n"), 2000)
	result, err := svc.Compress([]models.DocumentFile{
		{Name: "transcript.txt", ContentType: "text/plain", Data: data},
	})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	assert.Equal(t, "transcript.txt.gz", result.Files[0].Name)
	assert.Less(t, result.CompressedSizes[0], result.OriginalSizes[0])
	assert.Greater(t, result.Savings(), 0.10)
}

func TestCompress_KeepsIncompressibleOriginal(t *testing.T) {
	svc := NewService()

	// Pseudo-random bytes do not compress; the original must come back.
	data := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(data)
	result, err := svc.Compress([]models.DocumentFile{
		{Name: "photo.jpg", ContentType: "image/jpeg", Data: data},
	})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	assert.Equal(t, "photo.jpg", result.Files[0].Name)
	assert.Equal(t, result.OriginalSizes[0], result.CompressedSizes[0])
	assert.Equal(t, float64(0), result.Savings())
}

func TestCompress_Empty(t *testing.T) {
	svc := NewService()

	result, err := svc.Compress(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Equal(t, float64(0), result.Savings())
}
