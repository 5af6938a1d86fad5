package generate

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataURI(mime string, content string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func TestDecodeAttachment(t *testing.T) {
	mime, data, err := DecodeAttachment(Attachment{
		Name: "notes.txt",
		URL:  dataURI("text/plain", "hello world"),
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, []byte("hello world"), data)
}

func TestDecodeAttachment_NotADataURI(t *testing.T) {
	_, _, err := DecodeAttachment(Attachment{Name: "x", URL: "https://example.com/file.png"})
	assert.Error(t, err)
}

func TestDecodeAttachment_BadBase64(t *testing.T) {
	_, _, err := DecodeAttachment(Attachment{Name: "x", URL: "data:text/plain;base64,!!!not-base64!!!"})
	assert.Error(t, err)
}

func TestDecodeAttachments_SavesFilesAndSkipsBadOnes(t *testing.T) {
	dir := t.TempDir()

	saved, err := DecodeAttachments(dir, []Attachment{
		{Name: "good.txt", URL: dataURI("text/plain", "content one")},
		{Name: "bad.png", URL: "https://example.com/bad.png"},
		{Name: "../escape.txt", URL: dataURI("text/plain", "content two")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, "good.txt", saved[0].Name)
	assert.Equal(t, 11, saved[0].Size)
	content, err := os.ReadFile(saved[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "content one", string(content))

	// path traversal in names is flattened to the basename
	assert.Equal(t, "escape.txt", saved[1].Name)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), saved[1].Path)
}

func TestDecodeAttachments_EmptyNameGetsDefault(t *testing.T) {
	saved, err := DecodeAttachments(t.TempDir(), []Attachment{
		{Name: "", URL: dataURI("text/plain", "anonymous")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "attachment", saved[0].Name)
}

func TestIsTextAttachment(t *testing.T) {
	assert.True(t, IsTextAttachment("photo.bin", "text/plain"))
	assert.True(t, IsTextAttachment("data.csv", "application/octet-stream"))
	assert.True(t, IsTextAttachment("README.md", ""))
	assert.False(t, IsTextAttachment("photo.png", "image/png"))
}

func TestSummarizeAttachments(t *testing.T) {
	dir := t.TempDir()
	saved, err := DecodeAttachments(dir, []Attachment{
		{Name: "notes.txt", URL: dataURI("text/plain", "line one\nline two")},
		{Name: "logo.png", URL: dataURI("image/png", "pngbytes")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	summary := SummarizeAttachments(saved)
	assert.Contains(t, summary, "notes.txt (text/plain): preview: line one\\nline two")
	assert.Contains(t, summary, "logo.png (image/png): 8 bytes")
}

func TestSummarizeAttachments_PreviewIsBounded(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}

	dir := t.TempDir()
	saved, err := DecodeAttachments(dir, []Attachment{
		{Name: "big.txt", URL: "data:text/plain;base64," + base64.StdEncoding.EncodeToString(long)},
	})
	require.NoError(t, err)

	summary := SummarizeAttachments(saved)
	assert.Less(t, len(summary), 1200)
}
