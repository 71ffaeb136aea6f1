package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"io/fs"
	"log/slog"
	"path/filepath"

	"tickettriage/internal/errors"
	"tickettriage/internal/models"
)

// Get fetches the ticket stored under id together with all of its
// questions and test cases. Returns ErrNotFound when no ticket row
// exists. An analysis payload that cannot be parsed yields an empty
// analysis rather than an error.
func (s *Store) Get(ctx context.Context, id string) (*models.StoredTicket, error) {
	var (
		ticket       models.StoredTicket
		analysisData sql.NullString
		err          error
	)

	stmt := `SELECT id, COALESCE(ticket_key, id), COALESCE(title, ''), COALESCE(description, ''),
       COALESCE(created_at, ''), COALESCE(updated_at, ''), analysis_data
FROM tickets WHERE id = ?`
	if err = s.dbs.ReadOnly.QueryRowContext(ctx, stmt, id).Scan(
		&ticket.ID,
		&ticket.Key,
		&ticket.Title,
		&ticket.Description,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&analysisData,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(ErrNotFound, "read ticket", slog.String("ticket_id", id))
		}
		return nil, errors.Wrap(err, "read ticket", slog.String("ticket_id", id))
	}

	if analysisData.Valid && analysisData.String != "" {
		if err = json.Unmarshal([]byte(analysisData.String), &ticket.Analysis); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "unparseable analysis payload",
				slog.String("ticket_id", id), errors.SlogError(err))
			ticket.Analysis = models.Analysis{}
		}
	}

	// Prefer the current column names but tolerate databases that still
	// carry only the legacy ones.
	if ticket.Questions, err = s.childTexts(ctx, id,
		`SELECT question_text FROM questions WHERE ticket_id = ? AND question_text IS NOT NULL ORDER BY id`,
		`SELECT question FROM questions WHERE ticket_id = ? AND question IS NOT NULL ORDER BY id`,
	); err != nil {
		return nil, errors.Wrap(err, "read questions", slog.String("ticket_id", id))
	}
	if ticket.TestCases, err = s.childTexts(ctx, id,
		`SELECT test_case_text FROM test_cases WHERE ticket_id = ? AND test_case_text IS NOT NULL ORDER BY id`,
		`SELECT test_case FROM test_cases WHERE ticket_id = ? AND test_case IS NOT NULL ORDER BY id`,
	); err != nil {
		return nil, errors.Wrap(err, "read test cases", slog.String("ticket_id", id))
	}

	return &ticket, nil
}

// childTexts runs stmt and falls back to legacyStmt when the current
// column is missing. When neither column resolves, the rows are treated
// as unreadable and an empty list is returned.
func (s *Store) childTexts(ctx context.Context, id, stmt, legacyStmt string) ([]string, error) {
	var texts []string
	err := s.dbs.ReadOnly.SelectContext(ctx, &texts, stmt, id)
	if err == nil {
		return texts, nil
	}
	if err = s.dbs.ReadOnly.SelectContext(ctx, &texts, legacyStmt, id); err == nil {
		return texts, nil
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "neither current nor legacy column resolved",
		slog.String("ticket_id", id), errors.SlogError(err))
	return nil, nil
}

// Search scans the search index for tickets whose title, description,
// or key contains query as a case-insensitive substring and attaches
// live question and test-case counts to each hit. Results follow index
// insertion order, capped at limit (default 10). An empty query matches
// every indexed ticket; this mirrors the tool's historical behavior and
// is what the browse view relies on.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.SearchMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	hits := s.index.Search(query, limit)
	s.mu.Unlock()

	matches := make([]models.SearchMatch, 0, len(hits))
	for _, hit := range hits {
		match := models.SearchMatch{
			ID:          hit.ID,
			Key:         hit.Key,
			Title:       hit.Title,
			Description: hit.Description,
			CreatedAt:   hit.CreatedAt,
		}
		var err error
		if match.QuestionCount, match.TestCaseCount, err = s.childCounts(ctx, hit.ID); err != nil {
			return nil, errors.Wrap(err, "count children", slog.String("ticket_id", hit.ID))
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// List returns up to limit tickets ordered by creation time descending,
// each with live question and test-case counts. The list is read from
// the tickets table directly, bypassing the search index.
func (s *Store) List(ctx context.Context, limit int) ([]models.TicketSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.dbs.ReadOnly.QueryContext(ctx, `SELECT id, COALESCE(ticket_key, id), COALESCE(title, ''),
       COALESCE(description, ''), COALESCE(created_at, ''), COALESCE(updated_at, '')
FROM tickets
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query tickets")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("could not close rows", errors.SlogError(closeErr))
		}
	}()

	var summaries []models.TicketSummary
	for rows.Next() {
		var summary models.TicketSummary
		if err = rows.Scan(&summary.ID, &summary.Key, &summary.Title, &summary.Description,
			&summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		summaries = append(summaries, summary)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	for i := range summaries {
		if summaries[i].QuestionCount, summaries[i].TestCaseCount, err = s.childCounts(ctx, summaries[i].ID); err != nil {
			return nil, errors.Wrap(err, "count children", slog.String("ticket_id", summaries[i].ID))
		}
	}
	return summaries, nil
}

func (s *Store) childCounts(ctx context.Context, id string) (questions int, testCases int, err error) {
	if err = s.dbs.ReadOnly.GetContext(ctx, &questions,
		`SELECT COUNT(*) FROM questions WHERE ticket_id = ?`, id); err != nil {
		return 0, 0, errors.Wrap(err, "count questions")
	}
	if err = s.dbs.ReadOnly.GetContext(ctx, &testCases,
		`SELECT COUNT(*) FROM test_cases WHERE ticket_id = ?`, id); err != nil {
		return 0, 0, errors.Wrap(err, "count test cases")
	}
	return questions, testCases, nil
}

// Statistics reports row counts for the whole store plus the cumulative
// byte size of everything under the storage directory. Risk and screen
// counts are constant zero until those tables exist.
func (s *Store) Statistics(ctx context.Context) (models.Statistics, error) {
	var (
		stats models.Statistics
		err   error
	)
	if err = s.dbs.ReadOnly.GetContext(ctx, &stats.TotalTickets, `SELECT COUNT(*) FROM tickets`); err != nil {
		return stats, errors.Wrap(err, "count tickets")
	}
	if err = s.dbs.ReadOnly.GetContext(ctx, &stats.TotalQuestions, `SELECT COUNT(*) FROM questions`); err != nil {
		return stats, errors.Wrap(err, "count questions")
	}
	if err = s.dbs.ReadOnly.GetContext(ctx, &stats.TotalTestCases, `SELECT COUNT(*) FROM test_cases`); err != nil {
		return stats, errors.Wrap(err, "count test cases")
	}
	if stats.StorageBytes, err = s.storageSize(); err != nil {
		return stats, errors.Wrap(err, "measure storage size")
	}
	return stats, nil
}

// storageSize walks the storage directory and sums file sizes. Files
// that disappear mid-walk (e.g. WAL checkpoints) are skipped.
func (s *Store) storageSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			if errors.Is(infoErr, fs.ErrNotExist) {
				return nil
			}
			return infoErr
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "walk storage directory", slog.String("dir", s.dir))
	}
	return total, nil
}

// Timeline groups tickets by calendar date of creation, ascending by
// date, for charting.
func (s *Store) Timeline(ctx context.Context) ([]models.TimelinePoint, error) {
	rows, err := s.dbs.ReadOnly.QueryContext(ctx, `SELECT DATE(created_at) AS date, COUNT(*) AS count
FROM tickets
WHERE created_at IS NOT NULL
GROUP BY DATE(created_at)
ORDER BY date`)
	if err != nil {
		return nil, errors.Wrap(err, "query timeline")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("could not close rows", errors.SlogError(closeErr))
		}
	}()

	var points []models.TimelinePoint
	for rows.Next() {
		var point models.TimelinePoint
		if err = rows.Scan(&point.Date, &point.Count); err != nil {
			return nil, errors.Wrap(err, "scan timeline point")
		}
		points = append(points, point)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return points, nil
}
