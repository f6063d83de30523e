package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CrowderSoup/teamboard/database"
	"github.com/CrowderSoup/teamboard/services"
)

// maxSoundSize caps uploaded sound assets at 5MB.
const maxSoundSize = 5 * 1024 * 1024

// SoundHandler handles custom sound uploads. Deletion goes through the
// realtime channel; only the multipart intake lives on HTTP.
type SoundHandler struct {
	store      *database.Store
	dispatcher *services.Dispatcher
	soundsDir  string
	log        zerolog.Logger
}

func NewSoundHandler(store *database.Store, dispatcher *services.Dispatcher, soundsDir string, log zerolog.Logger) *SoundHandler {
	return &SoundHandler{
		store:      store,
		dispatcher: dispatcher,
		soundsDir:  soundsDir,
		log:        log,
	}
}

// Upload accepts a multipart form with a sound name and an audio file.
// The asset lands on disk under a server-generated opaque filename; the
// metadata row is the source of truth, so any failure after the file is
// written removes the file again.
func (h *SoundHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSoundSize)
	if err := r.ParseMultipartForm(maxSoundSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or malformed upload")
		return
	}

	name := strings.TrimSpace(r.FormValue("soundName"))
	file, header, err := r.FormFile("soundFile")
	if name == "" || err != nil {
		writeError(w, http.StatusBadRequest, "sound name and file are required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "audio/") {
		writeError(w, http.StatusBadRequest, "only audio files are allowed")
		return
	}

	if err := os.MkdirAll(h.soundsDir, 0o755); err != nil {
		h.log.Error().Err(err).Msg("failed to create sounds directory")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	filename := uuid.NewString() + filepath.Ext(header.Filename)
	path := filepath.Join(h.soundsDir, filename)

	dst, err := os.Create(path)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create sound file")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		h.log.Error().Err(err).Msg("failed to write sound file")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	dst.Close()

	sound, err := h.store.CreateCustomSound(name, filename, header.Filename)
	if err != nil {
		os.Remove(path)
		if errors.Is(err, database.ErrConflict) {
			writeError(w, http.StatusConflict, "a sound with that name already exists")
			return
		}
		if errors.Is(err, database.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to store custom sound")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.dispatcher.BroadcastState()

	writeJSON(w, http.StatusOK, sound)
}
