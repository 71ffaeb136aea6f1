package store

import (
	"context"
	"log/slog"
	"time"

	"tickettriage/internal/errors"
	"tickettriage/internal/models"
)

// Dump is a complete export of the store for backup or offline inspection.
type Dump struct {
	ExportedAt string                `json:"exported_at"`
	Tickets    []models.StoredTicket `json:"tickets"`
}

// Export returns every ticket with all of its questions and test cases.
func (s *Store) Export(ctx context.Context) (*Dump, error) {
	rows, err := s.dbs.ReadOnly.QueryContext(ctx,
		`SELECT id FROM tickets ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query ticket ids")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("could not close rows", errors.SlogError(closeErr))
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan ticket id")
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	dump := Dump{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Tickets:    make([]models.StoredTicket, 0, len(ids)),
	}
	for _, id := range ids {
		var ticket *models.StoredTicket
		if ticket, err = s.Get(ctx, id); err != nil {
			return nil, errors.Wrap(err, "export ticket", slog.String("ticket_id", id))
		}
		dump.Tickets = append(dump.Tickets, *ticket)
	}
	return &dump, nil
}
