package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir)

	resp, err := svc.Upload("u1", "cv.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.True(t, strings.HasPrefix(resp.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(resp.Filename, ".pdf"))

	data, err := os.ReadFile(filepath.Join(dir, resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	require.NoError(t, svc.Delete("u1", resp.ID))
	_, err = os.Stat(filepath.Join(dir, resp.Filename))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	svc := NewService(t.TempDir())

	_, err := svc.Upload("u1", "malware.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Upload("u1", "noextension", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	svc := NewService(t.TempDir())

	resp, err := svc.Upload("u1", "photo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete("u2", resp.ID), ErrUnauthorized)
	assert.ErrorIs(t, svc.Delete("u1", "no-such-id"), ErrFileNotFound)
	assert.NoError(t, svc.Delete("u1", resp.ID))
}
