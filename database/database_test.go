package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `# services dictionary
ssh 22/tcp   # The Secure Shell (SSH) Protocol

http	80/tcp www
  indented   value with   inner spaces  
#commented out
ssh 22/udp
`
	db, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, db.Len())
	assert.Equal(t, []string{"http", "indented", "ssh"}, db.Keys())

	v, ok := db.Lookup("http")
	require.True(t, ok)
	assert.Equal(t, "80/tcp www", v)

	v, ok = db.Lookup("indented")
	require.True(t, ok)
	assert.Equal(t, "value with   inner spaces", v)

	// later duplicates win
	v, ok = db.Lookup("ssh")
	require.True(t, ok)
	assert.Equal(t, "22/udp", v)

	_, ok = db.Lookup("#commented")
	assert.False(t, ok)
}

func TestParseMissingValue(t *testing.T) {
	_, err := Parse(strings.NewReader("ok value\nlonely\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingValue)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo bar\n"), 0o644))

	db, err := Load(path)
	require.NoError(t, err)
	v, ok := db.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewCopiesEntries(t *testing.T) {
	entries := map[string]string{"foo": "bar"}
	db := New(entries)
	entries["foo"] = "changed"

	v, _ := db.Lookup("foo")
	assert.Equal(t, "bar", v)
}

func TestNilDatabase(t *testing.T) {
	var db *Database
	_, ok := db.Lookup("x")
	assert.False(t, ok)
	assert.Zero(t, db.Len())
	assert.Nil(t, db.Keys())
}
