package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tickettriage/internal/errors"
	"tickettriage/internal/models"
	"tickettriage/internal/store"
)

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// limitParam parses the optional ?limit= query parameter; zero means the
// store's default.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}

func (app *application) listTickets(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	summaries, err := app.store.List(r.Context(), limit)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []models.TicketSummary{}
	}
	app.writeJSON(w, r, http.StatusOK, summaries)
}

func (app *application) storeTicket(w http.ResponseWriter, r *http.Request) {
	var ticket models.Ticket
	if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	if ticket.Title == "" || ticket.Description == "" {
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	}
	id, err := app.store.Store(r.Context(), ticket)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, map[string]string{"id": id})
}

func (app *application) getTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := app.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, ticket)
}

func (app *application) deleteTicket(w http.ResponseWriter, r *http.Request) {
	deleted, err := app.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if !deleted {
		app.notFound(w, r)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

func (app *application) searchTickets(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	matches, err := app.store.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if matches == nil {
		matches = []models.SearchMatch{}
	}
	app.writeJSON(w, r, http.StatusOK, matches)
}

func (app *application) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := app.store.Statistics(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, stats)
}

func (app *application) timeline(w http.ResponseWriter, r *http.Request) {
	points, err := app.store.Timeline(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if points == nil {
		points = []models.TimelinePoint{}
	}
	app.writeJSON(w, r, http.StatusOK, points)
}

func (app *application) exportTickets(w http.ResponseWriter, r *http.Request) {
	dump, err := app.store.Export(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="tickets-export.json"`)
	app.writeJSON(w, r, http.StatusOK, dump)
}
