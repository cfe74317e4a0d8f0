package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"telcoza.com/net-insight/internal/lake"
)

// Conversation roles, matching the sender values the store persists.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one entry of a session's rolling history.
type Turn struct {
	Role    string
	Content string
}

// Status is the terminal classification of one workflow run. Every status is
// also what gets written to the action log.
type Status string

const (
	StatusSuccess      Status = "SUCCESS"
	StatusSuccessEmpty Status = "SUCCESS_EMPTY"
	StatusBlocked      Status = "BLOCKED"
	StatusFailed       Status = "FAILED"
	StatusChatOnly     Status = "CHAT_ONLY"
	StatusFeedbackGood Status = "FEEDBACK_GOOD"
	StatusFeedbackBad  Status = "FEEDBACK_BAD"
)

const (
	defaultMaxAttempts = 3
	defaultTopK        = 2
	maxHistoryTurns    = 6

	// On retries the model only needs the error-repair context, not the
	// original question again.
	retryPlaceholder = "retry"

	exhaustedMessage   = "The data structure proved too complex; the analysis could not be completed after several attempts."
	unavailableMessage = "The analysis service is temporarily unavailable. Please try again later."
)

// Outcome is the fully resolved result of one user question. Nothing other
// than this escapes the workflow to the presentation layer.
type Outcome struct {
	Status       Status    `json:"status"`
	Columns      []string  `json:"columns,omitempty"`
	Rows         [][]any   `json:"rows,omitempty"`
	Chart        ChartType `json:"chart,omitempty"`
	Title        string    `json:"title,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	Answer       string    `json:"answer,omitempty"`
	SQL          string    `json:"sql,omitempty"`
	Attempts     int       `json:"attempts"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Completer is the language-model seam: one blocking completion round trip.
type Completer interface {
	Complete(ctx context.Context, systemInstruction string, turns []Turn) (string, error)
}

// Querier is the analytical-database seam the workflow executes against.
type Querier interface {
	Query(ctx context.Context, sqlText string) (lake.QueryResult, error)
	DescribeSchema(ctx context.Context) (string, error)
	FirstTable(ctx context.Context) (string, error)
}

// ActionLogger records terminal outcomes. Failures are swallowed: logging
// must never abort the workflow.
type ActionLogger interface {
	AppendAction(question, sqlText, status, errorMessage string) error
}

// queryAttempt is the state of one execution cycle. It is replaced wholesale
// on every retry, never mutated in place.
type queryAttempt struct {
	question  string
	directive ParsedDirective
	index     int
	lastError string
}

type session struct {
	mu      sync.Mutex
	history []Turn
}

// Analyst drives the generate -> sanitize -> execute -> retry workflow. Each
// session gets an independent rolling history; the lake and the example index
// are the only shared resources and are read-only.
type Analyst struct {
	llm       Completer
	lake      Querier
	retriever Retriever
	logbook   ActionLogger

	maxAttempts int
	topK        int

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewAnalyst(llm Completer, lk Querier, retriever Retriever, logbook ActionLogger, maxAttempts, topK int) *Analyst {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Analyst{
		llm:         llm,
		lake:        lk,
		retriever:   retriever,
		logbook:     logbook,
		maxAttempts: maxAttempts,
		topK:        topK,
		sessions:    make(map[string]*session),
	}
}

func (a *Analyst) session(id string) *session {
	a.mu.RLock()
	s, ok := a.sessions[id]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok = a.sessions[id]; !ok {
		s = &session{}
		a.sessions[id] = s
	}
	return s
}

// EndSession drops a session's rolling history.
func (a *Analyst) EndSession(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

// Ask runs one user question to a terminal outcome. The per-session lock
// keeps the generate/sanitize/execute stages of an attempt strictly
// sequential; concurrent sessions do not share any mutable state.
func (a *Analyst) Ask(ctx context.Context, sessionID, question string) Outcome {
	sess := a.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	raw, err := a.generate(ctx, question, sess.history)
	if err != nil {
		sess.history = nil
		a.logAction(question, "", StatusFailed, err.Error())
		return Outcome{Status: StatusFailed, Attempts: 1, ErrorMessage: unavailableMessage}
	}

	directive := ParseDirective(raw)
	if directive.SQL == "" {
		// Not a query: the reply is a conversational answer. This is a
		// terminal state, not a failure.
		a.logAction(question, "", StatusChatOnly, raw)
		sess.history = appendCapped(sess.history,
			Turn{Role: RoleUser, Content: question},
			Turn{Role: RoleModel, Content: raw})
		return Outcome{Status: StatusChatOnly, Answer: raw, Attempts: 1}
	}

	attempt := queryAttempt{question: question, directive: directive, index: 1}

	for {
		safeSQL, err := SanitizeSQL(attempt.directive.SQL)
		var violation *SecurityViolationError
		if errors.As(err, &violation) {
			// Non-recoverable: terminate immediately, no retry budget spent.
			sess.history = nil
			a.logAction(question, attempt.directive.SQL, StatusBlocked, violation.Error())
			return Outcome{
				Status:       StatusBlocked,
				SQL:          attempt.directive.SQL,
				Attempts:     attempt.index,
				ErrorMessage: violation.Error(),
			}
		}

		result, execErr := a.lake.Query(ctx, safeSQL)
		if execErr == nil {
			sess.history = nil
			if result.Empty() {
				a.logAction(question, safeSQL, StatusSuccessEmpty, "")
				return Outcome{
					Status:   StatusSuccessEmpty,
					Columns:  result.Columns,
					SQL:      safeSQL,
					Title:    attempt.directive.Title,
					Attempts: attempt.index,
				}
			}
			a.logAction(question, safeSQL, StatusSuccess, "")
			return Outcome{
				Status:   StatusSuccess,
				Columns:  result.Columns,
				Rows:     result.Rows,
				Chart:    attempt.directive.Chart,
				Title:    attempt.directive.Title,
				Comment:  attempt.directive.Comment,
				SQL:      safeSQL,
				Attempts: attempt.index,
			}
		}

		if attempt.index >= a.maxAttempts {
			sess.history = nil
			a.logAction(question, safeSQL, StatusFailed, execErr.Error())
			return Outcome{
				Status:       StatusFailed,
				SQL:          safeSQL,
				Attempts:     attempt.index,
				ErrorMessage: exhaustedMessage,
			}
		}

		sess.history = appendCapped(sess.history,
			Turn{Role: RoleUser, Content: a.repairInstruction(ctx, attempt.index, execErr)})

		raw, err = a.generate(ctx, retryPlaceholder, sess.history)
		if err != nil {
			sess.history = nil
			a.logAction(question, safeSQL, StatusFailed, err.Error())
			return Outcome{Status: StatusFailed, SQL: safeSQL, Attempts: attempt.index, ErrorMessage: unavailableMessage}
		}

		next := ParseDirective(raw)
		if next.SQL == "" {
			// A retry reply with no SQL cannot be executed; carry the
			// previous directive's metadata and burn the attempt.
			next = attempt.directive
		}
		attempt = queryAttempt{
			question:  question,
			directive: next,
			index:     attempt.index + 1,
			lastError: execErr.Error(),
		}
	}
}

// repairInstruction builds the synthetic user turn fed back after a failed
// execution. The turn before the final attempt demands an unconditional
// fallback query so the loop terminates with some result.
func (a *Analyst) repairInstruction(ctx context.Context, attemptIndex int, execErr error) string {
	if attemptIndex < a.maxAttempts-1 {
		return fmt.Sprintf("Execution error: %s. Fix the column name or syntax and output a corrected query.", execErr)
	}

	table, err := a.lake.FirstTable(ctx)
	if err != nil {
		log.Printf("Could not resolve fallback table: %v", err)
		return fmt.Sprintf("Execution error: %s. Last chance: output an unconditional SELECT * FROM <table> LIMIT 10 against the most relevant table as a safe fallback.", execErr)
	}
	return fmt.Sprintf("Execution error: %s. Last chance: output exactly SELECT * FROM %s LIMIT 10 as a safe fallback.", execErr, table)
}

// generate composes the prompt from the live schema and retrieved reference
// cases, then performs one completion round trip.
func (a *Analyst) generate(ctx context.Context, question string, history []Turn) (string, error) {
	schemaText, err := a.lake.DescribeSchema(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to describe schema: %w", err)
	}

	examples, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		// Retrieval degradation must never abort the question.
		log.Printf("Example retrieval degraded: %v", err)
		examples = nil
	}

	systemPrompt := ComposeSystemPrompt(schemaText, FormatExamples(examples))

	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Content: question})

	return a.llm.Complete(ctx, systemPrompt, turns)
}

// LogFeedback records an explicit user verdict on a produced result.
func (a *Analyst) LogFeedback(question, sqlText string, negative bool) {
	if negative {
		a.logAction(question, sqlText, StatusFeedbackBad, "user thumbs down")
		return
	}
	a.logAction(question, sqlText, StatusFeedbackGood, "user thumbs up")
}

func (a *Analyst) logAction(question, sqlText string, status Status, detail string) {
	if a.logbook == nil {
		return
	}
	if err := a.logbook.AppendAction(question, sqlText, string(status), detail); err != nil {
		log.Printf("Action log write failed (ignored): %v", err)
	}
}

func appendCapped(history []Turn, turns ...Turn) []Turn {
	history = append(history, turns...)
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	return history
}
