package database

import (
	"database/sql"
	"fmt"
	"time"
)

// ExportVersion tags the backup document format.
const ExportVersion = 1

// ExportDocument is the versioned backup of every table, including
// original ids so an import reproduces the store exactly.
type ExportDocument struct {
	Version      int               `json:"version"`
	ExportedAt   string            `json:"exportedAt"`
	Columns      []Column          `json:"columns"`
	Tasks        []Task            `json:"tasks"`
	Events       []Event           `json:"events"`
	CustomSounds []CustomSound     `json:"customSounds"`
	AdminMessage string            `json:"adminMessage"`
	Settings     map[string]string `json:"settings"`
}

// Export snapshots the entire store into one document.
func (s *Store) Export() (*ExportDocument, error) {
	state, err := s.FullState()
	if err != nil {
		return nil, err
	}

	doc := &ExportDocument{
		Version:      ExportVersion,
		ExportedAt:   time.Now().UTC().Format(time.RFC3339),
		Columns:      state.Columns,
		Tasks:        state.Tasks,
		Events:       state.Events,
		CustomSounds: []CustomSound{},
		AdminMessage: state.AdminMessage,
		Settings:     map[string]string{},
	}

	// FullState omits sound created_at; the backup keeps full rows.
	rows, err := s.db.Query("SELECT id, name, filename, original_name, created_at FROM custom_sounds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query custom sounds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cs CustomSound
		if err := rows.Scan(&cs.ID, &cs.Name, &cs.Filename, &cs.OriginalName, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan custom sound: %w", err)
		}
		doc.CustomSounds = append(doc.CustomSounds, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read custom sounds: %w", err)
	}

	settingRows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer settingRows.Close()
	for settingRows.Next() {
		var key, value string
		if err := settingRows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		doc.Settings[key] = value
	}
	if err := settingRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	return doc, nil
}

// Import replaces the entire store with the document's contents,
// preserving original ids. On any failure the transaction rolls back
// and the pre-import snapshot is re-applied; restored reports whether
// that recovery succeeded (it is true on the happy path too, since
// nothing was lost). The store ends either fully imported or exactly as
// it was.
func (s *Store) Import(doc *ExportDocument) (restored bool, err error) {
	if doc == nil || doc.Version != ExportVersion {
		return true, fmt.Errorf("%w: unsupported backup version", ErrValidation)
	}

	snapshot, err := s.Export()
	if err != nil {
		return true, fmt.Errorf("failed to snapshot current state: %w", err)
	}

	if err := s.replaceAll(doc); err != nil {
		if restoreErr := s.replaceAll(snapshot); restoreErr != nil {
			return false, fmt.Errorf("import failed (%v) and restore failed: %w", err, restoreErr)
		}
		return true, fmt.Errorf("import failed, previous state restored: %w", err)
	}

	return true, nil
}

// replaceAll clears every table and repopulates it from doc inside one
// transaction.
func (s *Store) replaceAll(doc *ExportDocument) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"columns", "tasks", "events", "custom_sounds", "admin_message", "settings"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertAll(tx, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertAll(tx *sql.Tx, doc *ExportDocument) error {
	for _, c := range doc.Columns {
		if _, err := tx.Exec("INSERT INTO columns (id, title, position) VALUES (?, ?, ?)", c.ID, c.Title, c.Position); err != nil {
			return fmt.Errorf("failed to insert column %d: %w", c.ID, err)
		}
	}
	for _, t := range doc.Tasks {
		if _, err := tx.Exec(
			"INSERT INTO tasks (id, title, column_id, created_at, position) VALUES (?, ?, ?, ?, ?)",
			t.ID, t.Title, t.ColumnID, t.CreatedAt, t.Position,
		); err != nil {
			return fmt.Errorf("failed to insert task %d: %w", t.ID, err)
		}
	}
	for _, e := range doc.Events {
		if _, err := tx.Exec(
			"INSERT INTO events (id, date, title, description) VALUES (?, ?, ?, ?)",
			e.ID, e.Date, e.Title, e.Description,
		); err != nil {
			return fmt.Errorf("failed to insert event %d: %w", e.ID, err)
		}
	}
	for _, cs := range doc.CustomSounds {
		if _, err := tx.Exec(
			"INSERT INTO custom_sounds (id, name, filename, original_name, created_at) VALUES (?, ?, ?, ?, ?)",
			cs.ID, cs.Name, cs.Filename, cs.OriginalName, cs.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert custom sound %d: %w", cs.ID, err)
		}
	}
	if doc.AdminMessage != "" {
		if _, err := tx.Exec("INSERT INTO admin_message (id, message) VALUES (1, ?)", doc.AdminMessage); err != nil {
			return fmt.Errorf("failed to insert admin message: %w", err)
		}
	}
	for key, value := range doc.Settings {
		if _, err := tx.Exec("INSERT INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", key, err)
		}
	}
	return nil
}
