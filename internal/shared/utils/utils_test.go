package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{2097152, "2.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5分钟", FormatUptime(5*time.Minute+10*time.Second))
	assert.Equal(t, "2小时3分钟", FormatUptime(2*time.Hour+3*time.Minute))
	assert.Equal(t, "1天1小时0分钟", FormatUptime(25*time.Hour))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestEnsureDirForFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a", "b", "hosts.local")

	require.NoError(t, EnsureDirForFile(file))

	info, err := os.Stat(filepath.Dir(file))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
