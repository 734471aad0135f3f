package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSourceList(t *testing.T) {
	in := `# filter sources
https://example.com/a.txt

  https://example.com/b.txt  
# disabled: https://example.com/c.txt
/srv/lists/local.txt
https://example.com/a.txt
`
	got, err := ReadSourceList(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/a.txt",
		"https://example.com/b.txt",
		"/srv/lists/local.txt",
	}, got)
}

func TestReadSourceList_Empty(t *testing.T) {
	got, err := ReadSourceList(strings.NewReader("\n# only comments\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadLines_NormalizesCRLF(t *testing.T) {
	got, err := readLines(strings.NewReader("  ||a.test^\r\n\n! c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"  ||a.test^", "", "! c"}, got)
}

func TestReadLines_LongLine(t *testing.T) {
	long := strings.Repeat("a", 200*1024)
	got, err := readLines(strings.NewReader(long + "\nb"))
	require.NoError(t, err)
	assert.Equal(t, []string{long, "b"}, got)
}
