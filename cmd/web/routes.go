package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	api := alice.New()

	mux.Handle("GET /api/healthy", api.ThenFunc(app.healthy))
	mux.Handle("GET /api/tickets", api.ThenFunc(app.listTickets))
	mux.Handle("POST /api/tickets", api.ThenFunc(app.storeTicket))
	mux.Handle("GET /api/tickets/{id}", api.ThenFunc(app.getTicket))
	mux.Handle("DELETE /api/tickets/{id}", api.ThenFunc(app.deleteTicket))
	mux.Handle("GET /api/search", api.ThenFunc(app.searchTickets))
	mux.Handle("GET /api/stats", api.ThenFunc(app.statistics))
	mux.Handle("GET /api/timeline", api.ThenFunc(app.timeline))
	mux.Handle("GET /api/export", api.ThenFunc(app.exportTickets))

	return app.recoverPanic(app.logRequest(commonHeaders(mux)))
}
