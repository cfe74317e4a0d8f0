package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)

	missing, err := s.GetUserByExternalID("analyst1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := s.CreateUser("analyst1", "hash")
	require.NoError(t, err)
	assert.Equal(t, "analyst1", created.ExternalUserID)

	found, err := s.GetUserByExternalID("analyst1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("analyst1", "hash")
	require.NoError(t, err)

	session, err := s.CreateSession(user.ID, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Nil(t, session.Title)

	require.NoError(t, s.UpdateSessionTitle(session.ID, user.ID, "subscriber trends"))

	got, err := s.GetSessionByID(session.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Title)
	assert.Equal(t, "subscriber trends", *got.Title)

	// A session is invisible to a different user.
	other, err := s.CreateUser("analyst2", "hash")
	require.NoError(t, err)
	hidden, err := s.GetSessionByID(session.ID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, hidden)

	sessions, err := s.GetSessionsByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestMessagePersistenceAndFeedback(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("analyst1", "hash")
	require.NoError(t, err)
	session, err := s.CreateSession(user.ID, nil)
	require.NoError(t, err)

	userMsg := Message{SessionID: session.ID, Sender: "user", Content: "total subscribers last month"}
	require.NoError(t, s.CreateMessage(&userMsg))

	modelMsg := Message{
		SessionID: session.ID,
		Sender:    "model",
		Content:   "Analysis complete: 月度订户总数 (1 rows)",
		Prompt:    "total subscribers last month",
		SQL:       `SELECT SUM(subs) AS "Total" FROM network_summary`,
	}
	require.NoError(t, s.CreateMessage(&modelMsg))

	messages, err := s.GetMessagesBySessionID(session.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	var stored *Message
	for i := range messages {
		if messages[i].Sender == "model" {
			stored = &messages[i]
		}
	}
	require.NotNil(t, stored)
	assert.Equal(t, modelMsg.SQL, stored.SQL)
	assert.False(t, stored.NegativeFeedback)

	require.NoError(t, s.UpdateMessageFeedback(modelMsg.ID, true))
	got, err := s.GetMessageByID(modelMsg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.NegativeFeedback)
	assert.Equal(t, "total subscribers last month", got.Prompt)

	assert.Error(t, s.UpdateMessageFeedback("no-such-id", true))
}

func TestDeleteSessionRemovesTranscript(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("analyst1", "hash")
	require.NoError(t, err)
	session, err := s.CreateSession(user.ID, nil)
	require.NoError(t, err)
	msg := Message{SessionID: session.ID, Sender: "user", Content: "hello"}
	require.NoError(t, s.CreateMessage(&msg))

	// Another user cannot delete it.
	other, err := s.CreateUser("analyst2", "hash")
	require.NoError(t, err)
	assert.Error(t, s.DeleteSession(session.ID, other.ID))

	require.NoError(t, s.DeleteSession(session.ID, user.ID))

	gone, err := s.GetSessionByID(session.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	messages, err := s.GetMessagesBySessionID(session.ID, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestActionLogAppendOnly(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendAction("total subscribers", `SELECT SUM(subs) FROM network_summary`, "SUCCESS", ""))
	require.NoError(t, s.AppendAction("wipe it", "DROP TABLE network_summary", "BLOCKED", "security block"))
	require.NoError(t, s.AppendAction("total subscribers", `SELECT SUM(subs) FROM network_summary`, "FEEDBACK_GOOD", "user thumbs up"))

	records, err := s.GetRecentActions(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, "FEEDBACK_GOOD", records[0].Status)
	assert.Equal(t, "BLOCKED", records[1].Status)
	assert.Equal(t, "security block", records[1].ErrorMessage)
	assert.Equal(t, "SUCCESS", records[2].Status)
	assert.False(t, records[0].Timestamp.IsZero())
}
