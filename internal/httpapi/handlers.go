package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"quizbot/internal/dispatch"
	rtsup "quizbot/internal/runtime/supervisor"
	"quizbot/internal/scheduler"
	"quizbot/internal/stats"
)

// Report is the /healthz body.
type Report struct {
	Status      string                    `json:"status"`
	Uptime      string                    `json:"uptime"`
	Sessions    int                       `json:"sessions"`
	Entities    map[string]int            `json:"entities,omitempty"`
	Supervisors map[string]rtsup.Counters `json:"supervisors,omitempty"`
	Dispatch    dispatch.Stats            `json:"dispatch"`
	Schedules   []scheduler.ScheduleInfo  `json:"schedules,omitempty"`
}

func healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rep := Report{Status: "ok"}
		if d.Health != nil {
			rep = d.Health()
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func listStats(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "stats disabled")
			return
		}
		mode := strings.TrimSpace(r.URL.Query().Get("mode"))
		recs, err := d.Store.ListStats(r.Context(), mode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "count": len(recs), "items": recs})
	}
}

func getStat(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "stats disabled")
			return
		}
		v := mux.Vars(r)
		rec, ok, err := d.Store.GetStat(r.Context(), v["mode"], v["id"])
		switch {
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		case !ok:
			writeError(w, http.StatusNotFound, "no stats for "+v["mode"]+"/"+v["id"])
		default:
			writeJSON(w, http.StatusOK, rec)
		}
	}
}

func overview(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "stats disabled")
			return
		}
		ov, err := stats.Summarize(r.Context(), d.Store)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ov)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
