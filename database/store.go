package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const marqueeKey = "marqueeConfig"

// Store handles all database operations for board state.
type Store struct {
	db *sql.DB

	// now is swappable in tests; returns epoch milliseconds.
	now func() int64
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

// FullState assembles the authoritative snapshot from every table. It
// always reads fresh; an empty database yields a valid empty state.
func (s *Store) FullState() (*FullState, error) {
	state := &FullState{
		Columns:      []Column{},
		Tasks:        []Task{},
		Events:       []Event{},
		CustomSounds: []CustomSound{},
		Marquee:      MarqueeConfig{Enabled: false, Speed: 15},
	}

	rows, err := s.db.Query("SELECT id, title, position FROM columns ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.ID, &c.Title, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		state.Columns = append(state.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	taskRows, err := s.db.Query("SELECT id, title, column_id, created_at, position FROM tasks ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer taskRows.Close()
	for taskRows.Next() {
		var t Task
		if err := taskRows.Scan(&t.ID, &t.Title, &t.ColumnID, &t.CreatedAt, &t.Position); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		state.Tasks = append(state.Tasks, t)
	}
	if err := taskRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	eventRows, err := s.db.Query("SELECT id, date, title, COALESCE(description, '') FROM events ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer eventRows.Close()
	for eventRows.Next() {
		var e Event
		if err := eventRows.Scan(&e.ID, &e.Date, &e.Title, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		state.Events = append(state.Events, e)
	}
	if err := eventRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	soundRows, err := s.db.Query("SELECT id, name, filename, original_name FROM custom_sounds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query custom sounds: %w", err)
	}
	defer soundRows.Close()
	for soundRows.Next() {
		var cs CustomSound
		if err := soundRows.Scan(&cs.ID, &cs.Name, &cs.Filename, &cs.OriginalName); err != nil {
			return nil, fmt.Errorf("failed to scan custom sound: %w", err)
		}
		state.CustomSounds = append(state.CustomSounds, cs)
	}
	if err := soundRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read custom sounds: %w", err)
	}

	var message string
	err = s.db.QueryRow("SELECT message FROM admin_message WHERE id = 1").Scan(&message)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query admin message: %w", err)
	}
	state.AdminMessage = message

	var marqueeJSON string
	err = s.db.QueryRow("SELECT value FROM settings WHERE key = ?", marqueeKey).Scan(&marqueeJSON)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query marquee config: %w", err)
	}
	if marqueeJSON != "" {
		if err := json.Unmarshal([]byte(marqueeJSON), &state.Marquee); err != nil {
			return nil, fmt.Errorf("failed to unmarshal marquee config: %w", err)
		}
	}

	return state, nil
}

// CreateColumn appends a column at the right edge of the board.
func (s *Store) CreateColumn(title string) (*Column, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}

	var position int
	err := s.db.QueryRow("SELECT COALESCE(MAX(position),0)+1 FROM columns").Scan(&position)
	if err != nil {
		return nil, fmt.Errorf("failed to compute column position: %w", err)
	}

	res, err := s.db.Exec("INSERT INTO columns (title, position) VALUES (?, ?)", title, position)
	if err != nil {
		return nil, fmt.Errorf("failed to insert column: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get column id: %w", err)
	}

	return &Column{ID: id, Title: title, Position: position}, nil
}

func (s *Store) UpdateColumn(id int64, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	_, err := s.db.Exec("UPDATE columns SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to update column: %w", err)
	}
	return nil
}

// DeleteColumn removes a column and every task in it as one unit. A
// partial delete would leave orphaned tasks, so both statements share a
// transaction.
func (s *Store) DeleteColumn(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tasks WHERE column_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete column tasks: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM columns WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReorderColumns rewrites every column's position to its index in ids,
// atomically. Calling it twice with the same list is a no-op the second
// time.
func (s *Store) ReorderColumns(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids required", ErrValidation)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for index, id := range ids {
		if _, err := tx.Exec("UPDATE columns SET position = ? WHERE id = ?", index, id); err != nil {
			return fmt.Errorf("failed to reposition column %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateTask appends a task at the bottom of the given column.
func (s *Store) CreateTask(title string, columnID int64) (*Task, error) {
	if strings.TrimSpace(title) == "" || columnID == 0 {
		return nil, fmt.Errorf("%w: title & column_id required", ErrValidation)
	}

	var position int
	err := s.db.QueryRow("SELECT COALESCE(MAX(position),0)+1 FROM tasks WHERE column_id = ?", columnID).Scan(&position)
	if err != nil {
		return nil, fmt.Errorf("failed to compute task position: %w", err)
	}

	createdAt := s.now()
	res, err := s.db.Exec(
		"INSERT INTO tasks (title, column_id, created_at, position) VALUES (?, ?, ?, ?)",
		title, columnID, createdAt, position,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get task id: %w", err)
	}

	return &Task{ID: id, Title: title, ColumnID: columnID, CreatedAt: createdAt, Position: position}, nil
}

// UpdateTask applies a partial update. A nil title leaves the title
// alone; resetCreated stamps created_at to now.
func (s *Store) UpdateTask(id int64, title *string, resetCreated bool) error {
	sets := []string{}
	params := []any{}
	if title != nil {
		sets = append(sets, "title = ?")
		params = append(params, *title)
	}
	if resetCreated {
		sets = append(sets, "created_at = ?")
		params = append(params, s.now())
	}
	if len(sets) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	params = append(params, id)

	_, err := s.db.Exec("UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", params...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// ReorderTasks rewrites position and column assignment for every task in
// taskIDs so that columnID holds exactly that ordered list. When
// movedTaskID is non-zero its elapsed timer is reset, but only if the
// store itself observes the task changing column — the client's claim
// alone is not trusted.
func (s *Store) ReorderTasks(columnID int64, taskIDs []int64, movedTaskID int64) error {
	if columnID == 0 || len(taskIDs) == 0 {
		return fmt.Errorf("%w: column_id and task_ids are required", ErrValidation)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	crossedColumn := false
	if movedTaskID != 0 {
		var previousColumn int64
		err := tx.QueryRow("SELECT column_id FROM tasks WHERE id = ?", movedTaskID).Scan(&previousColumn)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: task %d", ErrNotFound, movedTaskID)
		}
		if err != nil {
			return fmt.Errorf("failed to query moved task: %w", err)
		}
		crossedColumn = previousColumn != columnID
	}

	for index, id := range taskIDs {
		if _, err := tx.Exec("UPDATE tasks SET position = ?, column_id = ? WHERE id = ?", index, columnID, id); err != nil {
			return fmt.Errorf("failed to reposition task %d: %w", id, err)
		}
	}

	if movedTaskID != 0 && crossedColumn {
		if _, err := tx.Exec("UPDATE tasks SET created_at = ? WHERE id = ?", s.now(), movedTaskID); err != nil {
			return fmt.Errorf("failed to reset task timer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTask(id int64) error {
	_, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *Store) CreateEvent(date, title, description string) (*Event, error) {
	if date == "" || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: date & title required", ErrValidation)
	}

	res, err := s.db.Exec("INSERT INTO events (date, title, description) VALUES (?, ?, ?)", date, title, description)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get event id: %w", err)
	}

	return &Event{ID: id, Date: date, Title: title, Description: description}, nil
}

// UpdateEvent applies a partial update; nil fields are untouched.
func (s *Store) UpdateEvent(id int64, date, title, description *string) error {
	sets := []string{}
	params := []any{}
	if date != nil {
		sets = append(sets, "date = ?")
		params = append(params, *date)
	}
	if title != nil {
		sets = append(sets, "title = ?")
		params = append(params, *title)
	}
	if description != nil {
		sets = append(sets, "description = ?")
		params = append(params, *description)
	}
	if len(sets) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	params = append(params, id)

	_, err := s.db.Exec("UPDATE events SET "+strings.Join(sets, ", ")+" WHERE id = ?", params...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (s *Store) DeleteEvent(id int64) error {
	_, err := s.db.Exec("DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// CreateCustomSound records metadata for an uploaded asset. Names are
// unique; a collision is a conflict the caller must surface before the
// asset is kept.
func (s *Store) CreateCustomSound(name, filename, originalName string) (*CustomSound, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}

	var existing int64
	err := s.db.QueryRow("SELECT id FROM custom_sounds WHERE name = ?", name).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: sound name %q already exists", ErrConflict, name)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check sound name: %w", err)
	}

	createdAt := s.now() / 1000
	res, err := s.db.Exec(
		"INSERT INTO custom_sounds (name, filename, original_name, created_at) VALUES (?, ?, ?, ?)",
		name, filename, originalName, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert custom sound: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get sound id: %w", err)
	}

	return &CustomSound{ID: id, Name: name, Filename: filename, OriginalName: originalName, CreatedAt: createdAt}, nil
}

// CustomSoundByID returns the metadata row, or ErrNotFound.
func (s *Store) CustomSoundByID(id int64) (*CustomSound, error) {
	var cs CustomSound
	err := s.db.QueryRow(
		"SELECT id, name, filename, original_name, created_at FROM custom_sounds WHERE id = ?", id,
	).Scan(&cs.ID, &cs.Name, &cs.Filename, &cs.OriginalName, &cs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: sound %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query custom sound: %w", err)
	}
	return &cs, nil
}

func (s *Store) DeleteCustomSound(id int64) error {
	_, err := s.db.Exec("DELETE FROM custom_sounds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete custom sound: %w", err)
	}
	return nil
}

// SetAdminMessage upserts the singleton banner row.
func (s *Store) SetAdminMessage(message string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO admin_message (id, message) VALUES (1, ?)", message)
	if err != nil {
		return fmt.Errorf("failed to upsert admin message: %w", err)
	}
	return nil
}

// SetMarqueeConfig validates the shape and upserts it into settings.
func (s *Store) SetMarqueeConfig(config MarqueeConfig) error {
	value, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal marquee config: %w", err)
	}
	return s.SetSetting(marqueeKey, string(value))
}

// SetSetting upserts one key in the open settings map. Values are
// JSON-encoded strings; any key round-trips through export/import.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}
