package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tickettriage/internal/errors"
	"tickettriage/internal/models"
	"tickettriage/internal/searchindex"
)

// Store persists a ticket and its generated analysis in one logical
// operation and returns the identity under which it was stored.
//
// When the ticket carries no ID, one is derived from the current
// timestamp. Storing again under the same ID replaces the ticket row
// but appends new question and test-case rows; callers that want a
// clean replacement must Delete first.
//
// The returned identity is valid even when an error is returned: the
// ticket row may have been written in a degraded form, or the row may
// be durable while the search index failed to persist. Callers that
// need certainty should follow up with Get.
func (s *Store) Store(ctx context.Context, ticket models.Ticket) (string, error) {
	id := ticket.ID
	if id == "" {
		id = s.newTicketID()
	}
	key := ticket.Key
	if key == "" {
		key = id
	}
	// Fixed-width fractional seconds keep creation order stable for
	// tickets stored within the same second: the column is TEXT and
	// ORDER BY compares bytes.
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")

	analysisData, err := json.Marshal(ticket.Analysis)
	if err != nil {
		return id, errors.Wrap(err, "marshal analysis")
	}

	tx, err := s.dbs.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return id, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO tickets
    (id, ticket_key, title, description, created_at, updated_at, analysis_data)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, key, ticket.Title, ticket.Description, now, now, string(analysisData)); err != nil {
		// A database created by an older version of the tool may be
		// missing columns; retry with the reduced shape so the ticket is
		// at least findable.
		s.logger.LogAttrs(ctx, slog.LevelWarn, "full insert failed, retrying with reduced columns",
			slog.String("ticket_id", id), errors.SlogError(err))
		if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO tickets (id, title, description)
VALUES (?, ?, ?)`, id, ticket.Title, ticket.Description); err != nil {
			return id, errors.Wrap(err, "insert ticket", slog.String("ticket_id", id))
		}
	}

	for _, q := range questionRows(ticket) {
		if _, err = tx.ExecContext(ctx, `INSERT INTO questions (ticket_id, question_text, question_type)
VALUES (?, ?, ?)`, id, q.text, string(q.questionType)); err != nil {
			return id, errors.Wrap(err, "insert question", slog.String("ticket_id", id))
		}
	}

	for _, testCase := range ticket.TestCases {
		if _, err = tx.ExecContext(ctx, `INSERT INTO test_cases (ticket_id, test_case_text)
VALUES (?, ?)`, id, testCase); err != nil {
			return id, errors.Wrap(err, "insert test case", slog.String("ticket_id", id))
		}
	}

	if err = tx.Commit(); err != nil {
		return id, errors.Wrap(err, "commit transaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Upsert(id, searchindex.Entry{
		Title:       ticket.Title,
		Description: ticket.Description,
		Key:         key,
		CreatedAt:   now,
	})
	if err = s.index.Save(); err != nil {
		return id, errors.Wrap(err, "save search index", slog.String("ticket_id", id))
	}

	return id, nil
}

type questionRow struct {
	text         string
	questionType models.QuestionType
}

// questionRows flattens the categorized analysis questions and the flat
// question list into rows, each tagged with its source category.
func questionRows(ticket models.Ticket) []questionRow {
	var rows []questionRow
	for _, q := range ticket.Analysis.SuggestedQuestions {
		rows = append(rows, questionRow{text: q, questionType: models.QuestionTypeSuggested})
	}
	for _, q := range ticket.Analysis.DesignQuestions {
		rows = append(rows, questionRow{text: q, questionType: models.QuestionTypeDesign})
	}
	for _, q := range ticket.Analysis.BusinessQuestions {
		rows = append(rows, questionRow{text: q, questionType: models.QuestionTypeBusiness})
	}
	for _, q := range ticket.Questions {
		rows = append(rows, questionRow{text: q, questionType: models.QuestionTypeGeneral})
	}
	return rows
}

// newTicketID derives a human-inspectable identity from the current
// timestamp, adding a counter suffix when several tickets are stored
// within the same second.
func (s *Store) newTicketID() string {
	base := fmt.Sprintf("ticket_%s", time.Now().UTC().Format("20060102_150405"))
	s.mu.Lock()
	defer s.mu.Unlock()
	id := base
	for n := 2; ; n++ {
		if _, taken := s.index.Get(id); !taken {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// Delete removes the ticket and every question and test-case row that
// references it, all keyed by the same identity. It reports true only
// when a ticket row was actually removed; deleting a missing ticket is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.dbs.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM questions WHERE ticket_id = ?`, id); err != nil {
		return false, errors.Wrap(err, "delete questions", slog.String("ticket_id", id))
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM test_cases WHERE ticket_id = ?`, id); err != nil {
		return false, errors.Wrap(err, "delete test cases", slog.String("ticket_id", id))
	}

	var result sql.Result
	if result, err = tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id); err != nil {
		return false, errors.Wrap(err, "delete ticket", slog.String("ticket_id", id))
	}
	var affected int64
	if affected, err = result.RowsAffected(); err != nil {
		return false, errors.Wrap(err, "rows affected")
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit transaction")
	}

	deleted := affected > 0

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Delete(id)
	if err = s.index.Save(); err != nil {
		return deleted, errors.Wrap(err, "save search index", slog.String("ticket_id", id))
	}

	return deleted, nil
}

// DeleteAll unconditionally empties all three tables and clears the
// search index.
func (s *Store) DeleteAll(ctx context.Context) error {
	tx, err := s.dbs.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"questions", "test_cases", "tickets"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrap(err, "empty table", slog.String("table", table))
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Clear()
	if err = s.index.Save(); err != nil {
		return errors.Wrap(err, "save search index")
	}

	return nil
}
