package mailapi

import (
	"io"
	"net/http"
	"time"
)

const maxReportBytes = 1 << 20

func (a *API) handleToday(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.TodaysEmails(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   time.Now().UTC().Format("2006-01-02"),
		"count":  len(items),
		"emails": emptyIfNil(items),
	})
}

func (a *API) handleFollowUps(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.OpenFollowUps(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(items),
		"follow_ups": emptyIfNil(items),
	})
}

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.PendingEmails(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(items),
		"emails": emptyIfNil(items),
	})
}

// emptyIfNil keeps empty collections serializing as [] instead of null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func readBody(r *http.Request) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
