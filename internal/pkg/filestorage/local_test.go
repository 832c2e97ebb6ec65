package filestorage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["image"][0]
}

func TestCheckImage(t *testing.T) {
	assert.NoError(t, CheckImage(multipartFile(t, "banner.PNG", []byte("png")), AnnouncementImageRules))

	err := CheckImage(multipartFile(t, "notes.pdf", []byte("pdf")), AnnouncementImageRules)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	small := ImageRules{AllowedExtensions: []string{".jpg"}, MaxBytes: 2}
	err = CheckImage(multipartFile(t, "big.jpg", []byte("too big")), small)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSaveAndDeleteFile(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir, "")
	require.NoError(t, err)

	url, err := storage.SaveFileWithPath(multipartFile(t, "a.jpg", []byte("jpeg-bytes")), "announcements")
	require.NoError(t, err)
	assert.Regexp(t, `^/uploads/announcements/[0-9a-f-]{36}\.jpg$`, url)

	onDisk := storage.GetFullPath(url)
	assert.Equal(t, dir, filepath.Dir(filepath.Dir(onDisk)))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, storage.DeleteFile(url))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, storage.DeleteFile(url))
}

func TestGetFullPathRejectsForeignURLs(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	assert.Empty(t, storage.GetFullPath("https://elsewhere.test/x.png"))
	assert.NotContains(t, storage.GetFullPath("/uploads/../../etc/passwd"), "..")
}
