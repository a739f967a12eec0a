package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-service/library"
	"library-service/server"
)

func TestLoadCatalogue(t *testing.T) {
	c, err := loadCatalogue("catalogue.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, c.Books)
	assert.Equal(t, entry{BookID: 1, Title: "1984", Author: "George Orwell", ISBN: "978-0451524935"}, c.Books[0])

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("books: [oops"), 0o644))
	_, err = loadCatalogue(bad)
	assert.Error(t, err)
}

func TestSeedAgainstServer(t *testing.T) {
	lib, err := library.NewLibraryManager()
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	ts := httptest.NewServer(server.New(lib, nil).Router())
	t.Cleanup(ts.Close)

	books := []entry{
		{BookID: 1, Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593"},
		{BookID: 1, Title: "Dune again", Author: "Frank Herbert", ISBN: "978-0441013593"},
		{BookID: 2, Title: "", Author: "Nobody", ISBN: "0"},
	}
	var out bytes.Buffer
	ok, failed := seed(context.Background(), ts.Client(), ts.URL, books, &out)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "Importing: Dune by Frank Herbert... SUCCESS (ID: 1)\n")
	assert.Contains(t, out.String(), "ERROR - book with id: 1 already exists\n")
	assert.Contains(t, out.String(), "ERROR - title must not be empty\n")

	all, err := lib.ListBooks()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
