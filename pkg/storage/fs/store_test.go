package fs

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/vecinal/certdesk/pkg/storage"
)

func TestStore_PutOverwritesAndLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, "http://localhost:3200/uploads")
	require.NoError(t, err)
	ctx := context.Background()
	key := "certificates/C-00100/Certificado_Residencia_C-00100.pdf"

	info, err := s.Put(ctx, key, bytes.NewReader([]byte("first")), "application/pdf")
	require.NoError(t, err)
	require.Equal(t, int64(5), info.Size)
	require.Equal(t, "http://localhost:3200/uploads/"+key, info.URL)

	_, err = s.Put(ctx, key, bytes.NewReader([]byte("second")), "application/pdf")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	require.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Join(root, "certificates", "C-00100"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_ExistsAndDelete(t *testing.T) {
	s, err := New(t.TempDir(), "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "proofs/C-00101/comprobante_C-00101.png")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Put(ctx, "proofs/C-00101/comprobante_C-00101.png", bytes.NewReader([]byte("x")), "")
	require.NoError(t, err)
	ok, err = s.Exists(ctx, "proofs/C-00101/comprobante_C-00101.png")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(ctx, "proofs/C-00101/comprobante_C-00101.png"))
	require.ErrorIs(t, s.Delete(ctx, "proofs/C-00101/comprobante_C-00101.png"), storage.ErrNotFound)
}

func TestStore_RejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir(), "/uploads")
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../escape.pdf", bytes.NewReader(nil), "")
	require.Error(t, err)
}

func TestController_ServesFilesNotDirectories(t *testing.T) {
	s, err := New(t.TempDir(), "/uploads")
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "certificates/C-00100/doc.pdf", bytes.NewReader([]byte("%PDF")), "")
	require.NoError(t, err)

	r := mux.NewRouter()
	NewController("uploads", s).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/certificates/C-00100/doc.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "%PDF", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/certificates/C-00100/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
