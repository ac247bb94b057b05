package analysis

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "analyses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	record, err := store.Create("https://example.com/article")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, record.AnalysisID)
	assert.Equal(t, "Analysis queued", record.Status.Message)
	assert.Equal(t, 0, record.Status.Progress)

	got, err := store.Get(record.AnalysisID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://example.com/article", got.URL)
	assert.False(t, got.Complete)
	assert.Nil(t, got.Success)
	assert.Nil(t, got.Result)
	require.Len(t, got.LogMessages, 1)
	assert.Contains(t, got.LogMessages[0], "Analysis queued")
}

func TestStore_GetUnknownID(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_UpdateStatus(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create("https://example.com/article")
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(record.AnalysisID, "Scraping article content", 5, "Web Scraping", 1))
	require.NoError(t, store.UpdateStatus(record.AnalysisID, "Cleaning article text", 17, "Text Processing", 2))

	got, err := store.Get(record.AnalysisID)
	require.NoError(t, err)

	// Latest status wins; every update stays in the log
	assert.Equal(t, "Cleaning article text", got.Status.Message)
	assert.Equal(t, 17, got.Status.Progress)
	assert.Equal(t, "Text Processing", got.Status.StepName)
	assert.Equal(t, 2, got.Status.Step)
	require.Len(t, got.LogMessages, 3)
	assert.Contains(t, got.LogMessages[1], "Scraping article content")
	assert.Contains(t, got.LogMessages[2], "Cleaning article text")
}

func TestStore_ProgressClamped(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create("https://example.com/article")
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(record.AnalysisID, "overshoot", 150, "x", 1))
	got, _ := store.Get(record.AnalysisID)
	assert.Equal(t, 100, got.Status.Progress)

	require.NoError(t, store.UpdateStatus(record.AnalysisID, "undershoot", -5, "x", 1))
	got, _ = store.Get(record.AnalysisID)
	assert.Equal(t, 0, got.Status.Progress)
}

func TestStore_UpdateStatusUnknownID(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateStatus(uuid.New(), "message", 10, "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_SetResult(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create("https://example.com/article")
	require.NoError(t, err)

	misleading := true
	confidence := 0.8
	result := &Result{
		URL: "https://example.com/article",
		Article: ArticleRecord{
			Headline: "Headline",
			Claims:   []string{"claim"},
			Summary:  "summary",
		},
		ReferenceProcessing: ReferenceProcessing{
			Successful: []SuccessfulReference{},
			Skipped:    []SkippedReference{},
		},
		MaxReferencesUsed: 3,
		CrossReference: &MisleadingAnalysis{
			IsMisleading: &misleading,
			Reasons:      []string{"No corroborating sources found"},
			Explanation:  "explanation",
			Confidence:   &confidence,
		},
		CrossReferenceMeta: &CrossReferenceMeta{RefTitles: []string{}, RefCount: 0},
	}
	require.NoError(t, store.SetResult(record.AnalysisID, result))

	got, err := store.Get(record.AnalysisID)
	require.NoError(t, err)
	assert.True(t, got.Complete)
	require.NotNil(t, got.Success)
	assert.True(t, *got.Success)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Headline", got.Result.Article.Headline)
	require.NotNil(t, got.Result.CrossReference)
	assert.True(t, *got.Result.CrossReference.IsMisleading)
	assert.Equal(t, 0.8, *got.Result.CrossReference.Confidence)
}

func TestStore_SetError(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create("https://example.com/article")
	require.NoError(t, err)

	require.NoError(t, store.SetError(record.AnalysisID, "Failed to analyse article"))

	got, err := store.Get(record.AnalysisID)
	require.NoError(t, err)
	assert.True(t, got.Complete)
	require.NotNil(t, got.Success)
	assert.False(t, *got.Success)
	require.NotNil(t, got.Error)
	assert.Equal(t, "Failed to analyse article", *got.Error)
	assert.Nil(t, got.Result)
}

func TestStore_SinkFor(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create("https://example.com/article")
	require.NoError(t, err)

	sink := store.SinkFor(record.AnalysisID)
	sink.Update("Scraping article content", 5, "Web Scraping", 1)

	got, err := store.Get(record.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "Scraping article content", got.Status.Message)
	assert.Equal(t, 5, got.Status.Progress)
}
