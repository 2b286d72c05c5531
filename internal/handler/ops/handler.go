package ops

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caritasdigital/misionbot/internal/model/catalog"
	"github.com/caritasdigital/misionbot/internal/model/session"
	"github.com/caritasdigital/misionbot/internal/service/history"
	"github.com/caritasdigital/misionbot/pkg/utils"
)

// Handler exposes read-only operational state.
type Handler struct {
	catalog     *catalog.Catalog
	sessions    session.Store
	transcripts *history.Service
}

// New creates the ops handler.
func New(cat *catalog.Catalog, sessions session.Store, transcripts *history.Service) *Handler {
	return &Handler{
		catalog:     cat,
		sessions:    sessions,
		transcripts: transcripts,
	}
}

// RegisterRoutes mounts the ops endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/stats", h.handleStats)
	r.Get("/transcripts/{userID}", h.handleTranscript)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	users, exchanges := 0, 0
	if h.transcripts != nil {
		users, exchanges = h.transcripts.Totals()
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"catalogEntries":   h.catalog.Len(),
		"donationFactsSet": h.catalog.Facts().HasDonationData(),
		"sessions":         h.sessions.Len(),
		"transcriptUsers":  users,
		"exchanges":        exchanges,
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if h.transcripts == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "transcripts disabled")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.transcripts.Transcript(userID))
}
