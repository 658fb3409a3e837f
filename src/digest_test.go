package rawxfer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDigestKnownValues(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", digest_bytes(nil).String())
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", digest_bytes([]byte("abc")).String())
}

func TestDigestMatchesIgnoresCase(t *testing.T) {
	var d = digest_bytes([]byte("abc"))

	assert.True(t, d.Matches("900150983CD24FB0D6963F7D28E17F72"))
	assert.False(t, d.Matches("900150983cd24fb0d6963f7d28e17f73"))
	assert.False(t, d.Matches(""))
}

func TestDigestParse(t *testing.T) {
	var d, err = digest_parse("900150983cd24fb0d6963f7d28e17f72")
	require.NoError(t, err)
	assert.Equal(t, digest_bytes([]byte("abc")), d)

	for _, bad := range []string{"", "900150983cd24fb0d6963f7d28e17f7", "900150983cd24fb0d6963f7d28e17f7g", strings.Repeat("0", 33)} {
		_, err = digest_parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestDigestReaderAndFileAgree(t *testing.T) {
	var dir = t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOfN(rapid.Byte(), 0, 3*DIGEST_COPY_BUFF).Draw(t, "data")

		var d, n, err = digest_reader(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, digest_bytes(data), d)

		var path = filepath.Join(dir, "f")
		require.NoError(t, os.WriteFile(path, data, 0644))

		var fd, ferr = digest_file(path)
		require.NoError(t, ferr)
		assert.Equal(t, d, fd)
	})
}

func TestDigestFileMissing(t *testing.T) {
	var _, err = digest_file(filepath.Join(t.TempDir(), "nope"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}
