package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, max int) *Store {
	t.Helper()
	s, err := NewStore(Options{
		PersistDir:  t.TempDir(),
		MaxMessages: max,
		AutoSave:    true,
	})
	require.NoError(t, err)
	return s
}

func TestAddMessageAndHistory(t *testing.T) {
	s := newTestStore(t, 50)
	conv := s.CreateConversation()

	require.NoError(t, s.AddMessage(conv.ID, RoleUser, "hello", nil))
	require.NoError(t, s.AddMessage(conv.ID, RoleAssistant, "greetings", nil))

	hist := s.GetHistory(conv.ID, 0)
	require.Len(t, hist, 2)
	assert.Equal(t, RoleUser, hist[0].Role)
	assert.Equal(t, "hello", hist[0].Content)
	assert.Equal(t, RoleAssistant, hist[1].Role)
	assert.NotEmpty(t, hist[0].ID)
}

func TestTrimKeepsMostRecent(t *testing.T) {
	s := newTestStore(t, 5)
	conv := s.CreateConversation()

	for i := 0; i < 12; i++ {
		require.NoError(t, s.AddMessage(conv.ID, RoleUser, fmt.Sprintf("msg-%d", i), nil))
	}

	hist := s.GetHistory(conv.ID, 0)
	require.Len(t, hist, 5)
	assert.Equal(t, "msg-7", hist[0].Content)
	assert.Equal(t, "msg-11", hist[4].Content)
}

func TestHistoryLimit(t *testing.T) {
	s := newTestStore(t, 50)
	conv := s.CreateConversation()
	for i := 0; i < 10; i++ {
		require.NoError(t, s.AddMessage(conv.ID, RoleUser, fmt.Sprintf("m%d", i), nil))
	}

	hist := s.GetHistory(conv.ID, 3)
	require.Len(t, hist, 3)
	assert.Equal(t, "m7", hist[0].Content)
	assert.Equal(t, "m9", hist[2].Content)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(Options{PersistDir: dir, AutoSave: true})
	require.NoError(t, err)
	conv := s1.CreateConversation()
	require.NoError(t, s1.AddMessage(conv.ID, RoleUser, "remember me", map[string]interface{}{"k": "v"}))
	require.NoError(t, s1.AddMessage(conv.ID, RoleAssistant, "noted", nil))

	// Fresh store over the same directory sees the same record
	s2, err := NewStore(Options{PersistDir: dir, AutoSave: true})
	require.NoError(t, err)

	hist := s2.GetHistory(conv.ID, 0)
	require.Len(t, hist, 2)
	assert.Equal(t, "remember me", hist[0].Content)
	assert.Equal(t, "v", hist[0].Metadata["k"])
	assert.Equal(t, "noted", hist[1].Content)
}

func TestMalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conv_bad.json"), []byte("{not json"), 0644))

	s1, err := NewStore(Options{PersistDir: dir, AutoSave: true})
	require.NoError(t, err)
	good := s1.CreateConversation()
	require.NoError(t, s1.AddMessage(good.ID, RoleUser, "still works", nil))

	s2, err := NewStore(Options{PersistDir: dir, AutoSave: true})
	require.NoError(t, err)
	assert.Len(t, s2.GetHistory(good.ID, 0), 1)
	assert.Len(t, s2.ListConversations(), 1)
}

func TestUnknownFieldsIgnored(t *testing.T) {
	dir := t.TempDir()
	body := `{"id":"conv_future","created_at":"2026-01-02T15:04:05Z","schema_rev":9,"messages":[{"role":"user","content":"hi","timestamp":"2026-01-02T15:04:06Z","mood":"fine"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conv_future.json"), []byte(body), 0644))

	s, err := NewStore(Options{PersistDir: dir})
	require.NoError(t, err)

	hist := s.GetHistory("conv_future", 0)
	require.Len(t, hist, 1)
	assert.Equal(t, "hi", hist[0].Content)
}

func TestGetOrCreateActive(t *testing.T) {
	s := newTestStore(t, 50)

	first := s.GetOrCreateActive()
	second := s.GetOrCreateActive()
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, s.ActiveID())
}

func TestClearAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Options{PersistDir: dir, AutoSave: true})
	require.NoError(t, err)

	conv := s.CreateConversation()
	require.NoError(t, s.AddMessage(conv.ID, RoleUser, "wipe this", nil))

	require.NoError(t, s.ClearConversation(conv.ID))
	assert.Empty(t, s.GetHistory(conv.ID, 0))

	require.NoError(t, s.DeleteConversation(conv.ID))
	assert.Error(t, s.SetActive(conv.ID))
	_, err = os.Stat(filepath.Join(dir, conv.ID+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnknownConversationErrors(t *testing.T) {
	s := newTestStore(t, 50)
	assert.Error(t, s.AddMessage("conv_nope", RoleUser, "x", nil))
	assert.Error(t, s.ClearConversation("conv_nope"))
	assert.Error(t, s.DeleteConversation("conv_nope"))
	assert.Nil(t, s.GetHistory("conv_nope", 0))
}
