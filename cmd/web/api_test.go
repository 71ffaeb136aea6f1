package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tickettriage/internal/models"
	"tickettriage/internal/store"
	"tickettriage/internal/testhelpers"

	"github.com/stretchr/testify/require"
)

// newTestServer starts the API against a store in a fresh temp directory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	s, err := store.New(context.Background(), t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	app := application{
		logger: logger,
		store:  s,
	}
	server := httptest.NewServer(app.routes())
	t.Cleanup(server.Close)
	return server
}

func postTicket(t *testing.T, server *httptest.Server, ticket models.Ticket) string {
	t.Helper()
	body, err := json.Marshal(ticket)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/api/tickets", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestAPI_Healthy(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	var status struct {
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/healthy", &status))
	require.Equal(t, "ok", status.Status)
}

func TestAPI_TicketLifecycle(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	id := postTicket(t, server, models.Ticket{
		Title:       "Enable Editing of Occupation",
		Description: "Profile change",
		Analysis: models.Analysis{
			DesignQuestions: []string{"Which breakpoints?"},
		},
		TestCases: []string{"Empty value rejected"},
	})

	var ticket models.StoredTicket
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/tickets/"+id, &ticket))
	require.Equal(t, "Enable Editing of Occupation", ticket.Title)
	require.Equal(t, []string{"Which breakpoints?"}, ticket.Questions)

	var summaries []models.TicketSummary
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/tickets", &summaries))
	require.Len(t, summaries, 1)
	require.Equal(t, 1, summaries[0].QuestionCount)
	require.Equal(t, 1, summaries[0].TestCaseCount)

	var matches []models.SearchMatch
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/search?q=occup", &matches))
	require.Len(t, matches, 1)
	require.Equal(t, id, matches[0].ID)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/tickets/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/api/tickets/"+id, nil))
}

func TestAPI_StoreValidation(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "malformed JSON", body: "{not json", wantStatus: http.StatusBadRequest},
		{name: "missing title", body: `{"description":"d"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "missing description", body: `{"title":"t"}`, wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/tickets", "application/json",
				bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			_ = resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPI_StatsTimelineExport(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	for i := range 3 {
		postTicket(t, server, models.Ticket{
			ID:          fmt.Sprintf("api-%d", i),
			Title:       "t",
			Description: "d",
			Questions:   []string{"q"},
		})
	}

	var stats models.Statistics
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/stats", &stats))
	require.Equal(t, 3, stats.TotalTickets)
	require.Equal(t, 3, stats.TotalQuestions)

	var points []models.TimelinePoint
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/timeline", &points))
	require.Len(t, points, 1)
	require.Equal(t, 3, points[0].Count)

	var dump store.Dump
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/export", &dump))
	require.Len(t, dump.Tickets, 3)
}

func TestAPI_InvalidLimit(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	require.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/api/tickets?limit=bogus", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/api/search?q=x&limit=-1", nil))
}
