package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(t *testing.T, b Blob, data string) {
	t.Helper()
	w, err := b.Create(context.Background())
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func get(t *testing.T, b Blob) string {
	t.Helper()
	r, err := b.Open(context.Background())
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestLocateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "edges.snap")
	b, err := Locate(path, nil)
	require.NoError(t, err)
	require.IsType(t, &File{}, b)
	assert.Equal(t, path, b.String())

	put(t, b, "cells")
	assert.FileExists(t, path)
}

func TestLocateS3(t *testing.T) {
	for _, loc := range []string{"s3://snapshots/tenants/acme/edges.snap", "s3://snapshots/edges.snap"} {
		b, err := Locate(loc, newFakeS3())
		require.NoError(t, err, loc)
		require.IsType(t, &Object{}, b)
		assert.Equal(t, loc, b.String())
	}
}

func TestLocateErrors(t *testing.T) {
	for _, loc := range []string{"", "s3://snapshots", "s3://snapshots/", "s3://snapshots/dir/", "s3:///edges.snap"} {
		_, err := Locate(loc, newFakeS3())
		assert.Error(t, err, loc)
	}
	_, err := Locate("s3://snapshots/edges.snap", nil)
	assert.ErrorIs(t, err, ErrNoS3Client)
}
