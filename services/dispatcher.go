package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/CrowderSoup/teamboard/database"
)

// Channel operation types, client→server. Every one of them mutates or
// fans out, so every one of them is admin-only; a viewer connection can
// only receive.
const (
	OpColumnsCreate      = "columns:create"
	OpColumnsUpdate      = "columns:update"
	OpColumnsDelete      = "columns:delete"
	OpColumnsReorder     = "columns:reorder"
	OpTasksCreate        = "tasks:create"
	OpTasksUpdate        = "tasks:update"
	OpTasksReorder       = "tasks:reorder"
	OpTasksDelete        = "tasks:delete"
	OpEventsCreate       = "events:create"
	OpEventsUpdate       = "events:update"
	OpEventsDelete       = "events:delete"
	OpSoundBroadcast     = "sound:broadcast"
	OpSoundsCustomDelete = "sounds:custom:delete"
	OpAdminMessageUpdate = "adminMessage:update"
	OpSettingsMarquee    = "settings:marquee:update"
)

// clientEnvelope is the frame shape for client→server intents. ID is an
// acknowledgement id echoed on the reply.
type clientEnvelope struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type columnsCreatePayload struct {
	Title string `json:"title" validate:"required"`
}

type columnsUpdatePayload struct {
	ID    int64  `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
}

type idPayload struct {
	ID int64 `json:"id" validate:"required"`
}

type columnsReorderPayload struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

type tasksCreatePayload struct {
	Title    string `json:"title" validate:"required"`
	ColumnID int64  `json:"column_id" validate:"required"`
}

type tasksUpdatePayload struct {
	ID           int64   `json:"id" validate:"required"`
	Title        *string `json:"title"`
	ResetCreated bool    `json:"reset_created"`
}

type tasksReorderPayload struct {
	ColumnID    int64   `json:"column_id" validate:"required"`
	TaskIDs     []int64 `json:"task_ids" validate:"required,min=1"`
	MovedTaskID int64   `json:"moved_task_id_to_reset_timer"`
}

type eventsCreatePayload struct {
	Date        string `json:"date" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

type eventsUpdatePayload struct {
	ID          int64   `json:"id" validate:"required"`
	Date        *string `json:"date"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type soundBroadcastPayload struct {
	Sound    string `json:"sound" validate:"required"`
	IsCustom bool   `json:"isCustom"`
}

type adminMessagePayload struct {
	Message *string `json:"message" validate:"required"`
}

type marqueePayload struct {
	Config *marqueeConfigShape `json:"config" validate:"required"`
}

// Both fields are pointers so a missing enabled/speed is rejected
// instead of defaulting.
type marqueeConfigShape struct {
	Enabled *bool    `json:"enabled" validate:"required"`
	Speed   *float64 `json:"speed" validate:"required"`
}

type successResult struct {
	Success bool `json:"success"`
}

type initialState struct {
	*database.FullState
	Role Role `json:"role"`
}

// Dispatcher routes channel intents to store mutations and triggers the
// full-state broadcast after every commit.
type Dispatcher struct {
	store     *database.Store
	hub       *Hub
	soundsDir string
	validate  *validator.Validate
	log       zerolog.Logger
}

func NewDispatcher(store *database.Store, hub *Hub, soundsDir string, log zerolog.Logger) *Dispatcher {
	validate := validator.New()
	// Report field names as their json tags, so validation errors read
	// like the wire format.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Dispatcher{
		store:     store,
		hub:       hub,
		soundsDir: soundsDir,
		validate:  validate,
		log:       log,
	}
}

// SendInitialState pushes the authoritative snapshot, plus the client's
// resolved role, to one freshly connected client.
func (d *Dispatcher) SendInitialState(c *Client) {
	state, err := d.store.FullState()
	if err != nil {
		d.log.Error().Err(err).Msg("failed to get initial state")
		c.Push(ServerMessage{Type: MsgError, Payload: errorPayload{Message: "failed to get initial state"}})
		return
	}
	c.Push(ServerMessage{Type: MsgStateInitial, Payload: initialState{FullState: state, Role: c.Role}})
}

// BroadcastState recomputes the full snapshot and pushes it to every
// connected client, the originator included.
func (d *Dispatcher) BroadcastState() {
	state, err := d.store.FullState()
	if err != nil {
		d.log.Error().Err(err).Msg("failed to broadcast state update")
		d.hub.Broadcast(ServerMessage{Type: MsgError, Payload: errorPayload{Message: "failed to broadcast state update"}}, nil)
		return
	}
	d.hub.Broadcast(ServerMessage{Type: MsgStateUpdated, Payload: state}, nil)
}

type errorPayload struct {
	Message string `json:"message"`
}

// Dispatch handles one raw inbound frame from a client connection.
func (d *Dispatcher) Dispatch(c *Client, raw []byte) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.log.Warn().Err(err).Msg("failed to unmarshal client message")
		c.Push(ServerMessage{Type: MsgError, Payload: errorPayload{Message: "malformed message"}})
		return
	}

	d.log.Debug().Str("type", env.Type).Str("role", string(c.Role)).Msg("received message")

	// Every operation mutates state or fans out to other clients, so
	// the whole dispatch table is gated on admin.
	if c.Role != RoleAdmin {
		c.Push(ServerMessage{ID: env.ID, Type: MsgError, Payload: errorPayload{Message: "forbidden"}})
		return
	}

	result, mutated, err := d.handle(c, env.Type, env.Payload)
	if err != nil {
		c.Push(ServerMessage{ID: env.ID, Type: MsgError, Payload: errorPayload{Message: errorMessage(err)}})
		return
	}

	c.Push(ServerMessage{ID: env.ID, Type: MsgResult, Payload: result})

	if mutated {
		d.BroadcastState()
	}
}

// handle executes one operation. It reports whether the store was
// mutated, which decides whether a state broadcast follows.
func (d *Dispatcher) handle(c *Client, opType string, payload json.RawMessage) (any, bool, error) {
	switch opType {
	case OpColumnsCreate:
		var p columnsCreatePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		column, err := d.store.CreateColumn(p.Title)
		return column, err == nil, err

	case OpColumnsUpdate:
		var p columnsUpdatePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.UpdateColumn(p.ID, p.Title)
		return successResult{Success: true}, err == nil, err

	case OpColumnsDelete:
		var p idPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.DeleteColumn(p.ID)
		return successResult{Success: true}, err == nil, err

	case OpColumnsReorder:
		var p columnsReorderPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.ReorderColumns(p.IDs)
		return successResult{Success: true}, err == nil, err

	case OpTasksCreate:
		var p tasksCreatePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		task, err := d.store.CreateTask(p.Title, p.ColumnID)
		return task, err == nil, err

	case OpTasksUpdate:
		var p tasksUpdatePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.UpdateTask(p.ID, p.Title, p.ResetCreated)
		return successResult{Success: true}, err == nil, err

	case OpTasksReorder:
		var p tasksReorderPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.ReorderTasks(p.ColumnID, p.TaskIDs, p.MovedTaskID)
		return successResult{Success: true}, err == nil, err

	case OpTasksDelete:
		var p idPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.DeleteTask(p.ID)
		return successResult{Success: true}, err == nil, err

	case OpEventsCreate:
		var p eventsCreatePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		event, err := d.store.CreateEvent(p.Date, p.Title, p.Description)
		return event, err == nil, err

	case OpEventsUpdate:
		var p eventsUpdatePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.UpdateEvent(p.ID, p.Date, p.Title, p.Description)
		return successResult{Success: true}, err == nil, err

	case OpEventsDelete:
		var p idPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.DeleteEvent(p.ID)
		return successResult{Success: true}, err == nil, err

	case OpSoundBroadcast:
		var p soundBroadcastPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		// Ephemeral fan-out: no persistence, no replay, and the sender
		// is skipped because it already played the sound locally.
		d.hub.Broadcast(ServerMessage{Type: MsgSoundPlay, Payload: p}, c)
		return successResult{Success: true}, false, nil

	case OpSoundsCustomDelete:
		var p idPayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		return d.deleteCustomSound(p.ID)

	case OpAdminMessageUpdate:
		var p adminMessagePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.SetAdminMessage(*p.Message)
		return successResult{Success: true}, err == nil, err

	case OpSettingsMarquee:
		var p marqueePayload
		if err := d.decode(payload, &p); err != nil {
			return nil, false, err
		}
		err := d.store.SetMarqueeConfig(database.MarqueeConfig{
			Enabled: *p.Config.Enabled,
			Speed:   *p.Config.Speed,
		})
		return successResult{Success: true}, err == nil, err
	}

	return nil, false, fmt.Errorf("%w: unknown message type %q", database.ErrValidation, opType)
}

// deleteCustomSound removes the asset best-effort, then the metadata
// row. The row is the source of truth; a missing file must not block
// the delete.
func (d *Dispatcher) deleteCustomSound(id int64) (any, bool, error) {
	sound, err := d.store.CustomSoundByID(id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}
	if sound != nil {
		path := filepath.Join(d.soundsDir, sound.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.log.Warn().Err(err).Str("file", sound.Filename).Msg("failed to remove sound file")
		}
		if err := d.store.DeleteCustomSound(id); err != nil {
			return nil, false, err
		}
	}
	return successResult{Success: true}, true, nil
}

func (d *Dispatcher) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload required", database.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", database.ErrValidation)
	}
	if err := d.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s required", database.ErrValidation, fieldErrs[0].Field())
		}
		return fmt.Errorf("%w: invalid payload", database.ErrValidation)
	}
	return nil
}

// errorMessage flattens a store error into the short client-facing text.
func errorMessage(err error) string {
	if errors.Is(err, database.ErrValidation) ||
		errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, database.ErrConflict) {
		return err.Error()
	}
	return "internal error"
}
