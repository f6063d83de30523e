package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/CrowderSoup/teamboard/database"
	"github.com/CrowderSoup/teamboard/services"
)

// maxImportSize caps uploaded backup documents.
const maxImportSize = 32 * 1024 * 1024

// DatabaseHandler handles the administrative export/import bulk path.
type DatabaseHandler struct {
	store      *database.Store
	dispatcher *services.Dispatcher
	log        zerolog.Logger
}

func NewDatabaseHandler(store *database.Store, dispatcher *services.Dispatcher, log zerolog.Logger) *DatabaseHandler {
	return &DatabaseHandler{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Export streams the versioned backup document as a download.
func (h *DatabaseHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Export()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to export database")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "teamboard-backup-"+time.Now().Format("2006-01-02")+".json"))
	json.NewEncoder(w).Encode(doc)
}

// Import replaces the whole store with an uploaded backup document. The
// store ends either fully imported or restored to its prior state; the
// reply says which.
func (h *DatabaseHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or malformed upload")
		return
	}

	file, _, err := r.FormFile("backupFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "backup file is required")
		return
	}
	defer file.Close()

	var doc database.ExportDocument
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup document")
		return
	}

	restored, err := h.store.Import(&doc)
	if err != nil {
		if errors.Is(err, database.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Bool("restored", restored).Msg("import failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    "import failed",
			"restored": restored,
		})
		return
	}

	h.dispatcher.BroadcastState()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
