package core

import (
	"context"
	"fmt"
	"log"

	"telcoza.com/net-insight/internal/lake"
	"telcoza.com/net-insight/internal/store"
)

// InsightService ties the workflow to the operational store: it persists the
// conversation, drives the analyst, and serves feedback and export requests.
type InsightService struct {
	dbStore *store.SQLiteStore
	analyst *Analyst
	lake    Querier
}

func NewInsightService(db *store.SQLiteStore, analyst *Analyst, lk Querier) *InsightService {
	return &InsightService{
		dbStore: db,
		analyst: analyst,
		lake:    lk,
	}
}

// GetOrCreateUser style helpers used by the auth middleware and handlers.
func (s *InsightService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(externalUserID)
}

func (s *InsightService) CreateUser(externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(externalUserID, passwordHash)
}

func (s *InsightService) CreateSession(userID int64) (*store.Session, error) {
	session, err := s.dbStore.CreateSession(userID, nil) // Titled on first question
	if err != nil {
		return nil, fmt.Errorf("failed to create session in DB: %w", err)
	}
	return session, nil
}

func (s *InsightService) GetSessions(userID int64) ([]store.Session, error) {
	return s.dbStore.GetSessionsByUserID(userID)
}

func (s *InsightService) GetSessionDetails(sessionID string, userID int64) (*store.Session, []store.Message, error) {
	session, err := s.dbStore.GetSessionByID(sessionID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, nil, nil // Not found
	}

	messages, err := s.dbStore.GetMessagesBySessionID(sessionID, 100, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get messages for session: %w", err)
	}
	return session, messages, nil
}

// AskQuestion runs one user question through the workflow, persisting both
// sides of the exchange. The returned Outcome is everything the presentation
// layer needs to render tables, charts and errors.
func (s *InsightService) AskQuestion(ctx context.Context, sessionID string, userID int64, question string) (*store.Message, Outcome, error) {
	session, err := s.dbStore.GetSessionByID(sessionID, userID)
	if err != nil {
		return nil, Outcome{}, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, Outcome{}, fmt.Errorf("session not found")
	}

	userMsg := store.Message{
		SessionID: sessionID,
		Sender:    RoleUser,
		Content:   question,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return nil, Outcome{}, fmt.Errorf("failed to store user message: %w", err)
	}

	outcome := s.analyst.Ask(ctx, sessionID, question)

	modelMsg := store.Message{
		SessionID: sessionID,
		Sender:    RoleModel,
		Content:   summarize(outcome),
		Prompt:    question,
		SQL:       outcome.SQL,
	}
	if err := s.dbStore.CreateMessage(&modelMsg); err != nil {
		// The outcome still stands; losing the transcript row is logged only.
		log.Printf("Failed to store model message for session %s: %v", sessionID, err)
	}

	if session.Title == nil || *session.Title == "" {
		if err := s.dbStore.UpdateSessionTitle(sessionID, userID, truncateTitle(question)); err != nil {
			log.Printf("Failed to save title for session %s: %v", sessionID, err)
		}
	}

	return &modelMsg, outcome, nil
}

// DeleteSession removes a session with its transcript and drops the analyst's
// in-memory history for it.
func (s *InsightService) DeleteSession(sessionID string, userID int64) error {
	if err := s.dbStore.DeleteSession(sessionID, userID); err != nil {
		return err
	}
	s.analyst.EndSession(sessionID)
	return nil
}

// GetRecentActions exposes the audit trail of terminal workflow outcomes,
// newest first.
func (s *InsightService) GetRecentActions(limit int) ([]store.ActionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.dbStore.GetRecentActions(limit)
}

// SetMessageFeedback flags a model message and records the verdict in the
// action log.
func (s *InsightService) SetMessageFeedback(messageID string, userID int64, negative bool) error {
	msg, err := s.dbStore.GetMessageByID(messageID)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("message not found for feedback")
	}
	if owned, err := s.dbStore.GetSessionByID(msg.SessionID, userID); err != nil || owned == nil {
		return fmt.Errorf("message not found for feedback")
	}

	if err := s.dbStore.UpdateMessageFeedback(messageID, negative); err != nil {
		return err
	}
	s.analyst.LogFeedback(msg.Prompt, msg.SQL, negative)
	return nil
}

// ExportMessageResult re-executes the SQL behind a model message so its
// result set can be downloaded. The statement passes through the sanitizer
// again; sanitization is idempotent, so an already-capped query is unchanged.
func (s *InsightService) ExportMessageResult(ctx context.Context, messageID string, userID int64) (lake.QueryResult, string, error) {
	msg, err := s.dbStore.GetMessageByID(messageID)
	if err != nil {
		return lake.QueryResult{}, "", fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return lake.QueryResult{}, "", fmt.Errorf("message not found")
	}
	if owned, err := s.dbStore.GetSessionByID(msg.SessionID, userID); err != nil || owned == nil {
		return lake.QueryResult{}, "", fmt.Errorf("message not found")
	}
	if msg.SQL == "" {
		return lake.QueryResult{}, "", fmt.Errorf("message has no query result to export")
	}

	safeSQL, err := SanitizeSQL(msg.SQL)
	if err != nil {
		return lake.QueryResult{}, "", err
	}
	result, err := s.lake.Query(ctx, safeSQL)
	if err != nil {
		return lake.QueryResult{}, "", fmt.Errorf("failed to re-execute query for export: %w", err)
	}
	return result, msg.Prompt, nil
}

func summarize(outcome Outcome) string {
	switch outcome.Status {
	case StatusSuccess:
		return fmt.Sprintf("Analysis complete: %s (%d rows)", outcome.Title, len(outcome.Rows))
	case StatusSuccessEmpty:
		return "The query succeeded but returned no rows."
	case StatusChatOnly:
		return outcome.Answer
	default:
		return outcome.ErrorMessage
	}
}

func truncateTitle(question string) string {
	const maxTitleRunes = 40
	runes := []rune(question)
	if len(runes) <= maxTitleRunes {
		return question
	}
	return string(runes[:maxTitleRunes]) + "..."
}
