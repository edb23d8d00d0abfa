package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/internal/fakecms"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

func heroProject(t *testing.T) (*fakecms.Store, *httptest.Server) {
	t.Helper()
	store := fakecms.New("en")
	hero := store.BlockType(t, "hero")
	store.Field(t, hero.ID, models.Field{APIKey: "title", FieldType: models.FieldTypeString})
	page := store.Model(t, "page")
	store.Container(t, page.ID, "sections", models.FieldTypeRichText, false, hero.ID)
	for _, title := range []string{"one", "two"} {
		store.Record(t, page.ID, map[string]any{
			"sections": []any{map[string]any{"item_type": hero.ID, "attributes": map[string]any{"title": title}}},
		})
	}
	server := httptest.NewServer(fakecms.NewServer(store, "secret"))
	t.Cleanup(server.Close)
	return store, server
}

func baseArgs(t *testing.T, serverURL string) []string {
	return []string{
		"-url", serverURL,
		"-token", "secret",
		"-source", "hero",
		"-batch-pause", "1ms",
		"-log", filepath.Join(t.TempDir(), "run.log"),
	}
}

func TestMainAnalyze(t *testing.T) {
	_, server := heroProject(t)

	var out bytes.Buffer
	err := Main(context.Background(), append(baseArgs(t, server.URL), "analyze"), &out)
	require.NoError(t, err)

	var report analysisReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "hero", report.SourceType)
	assert.Equal(t, 2, report.TotalAffectedRecords)
	require.Len(t, report.ReferencingFields, 1)
	assert.Equal(t, "sections", report.ReferencingFields[0].FieldKey)
}

func TestMainConvert(t *testing.T) {
	store, server := heroProject(t)
	dir := t.TempDir()

	var out bytes.Buffer
	args := append(baseArgs(t, server.URL), "-checkpoint-dir", dir, "convert")
	require.NoError(t, Main(context.Background(), args, &out))

	var report conversionReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.MigratedRecordCount)
	assert.Equal(t, 1, report.ConvertedFieldCount)

	dest, ok := store.TypeByKey(report.DestinationType)
	require.True(t, ok)
	assert.False(t, dest.ModularBlock)
	assert.Equal(t, 2, store.ItemCount(dest.ID))

	matches, err := filepath.Glob(filepath.Join(dir, "*.cbor"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestMainUnknownSource(t *testing.T) {
	_, server := heroProject(t)
	args := baseArgs(t, server.URL)
	args[5] = "banner"

	err := Main(context.Background(), append(args, "analyze"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banner")
}

func TestMainTextLog(t *testing.T) {
	_, server := heroProject(t)
	logPath := filepath.Join(t.TempDir(), "text.log")
	args := append(baseArgs(t, server.URL), "-log", logPath, "-log-format", "text", "-verbose", "analyze")

	require.NoError(t, Main(context.Background(), args, &bytes.Buffer{}))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source=hero")
	assert.Contains(t, string(data), "level=DEBUG")
}
