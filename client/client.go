// Package client is the Go client for the realtime board channel. It
// dials the server with a credential, receives full-state snapshots,
// and issues mutation intents as acknowledged round trips.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/teamboard/database"
	"github.com/CrowderSoup/teamboard/services"
)

// InitialState is the first push after a successful connection: the
// snapshot plus the role the server resolved for this connection.
type InitialState struct {
	database.FullState
	Role string `json:"role"`
}

// SoundCommand is the ephemeral sound fan-out payload. It is delivered
// at most once; a client offline at send time never sees it.
type SoundCommand struct {
	Sound    string `json:"sound"`
	IsCustom bool   `json:"isCustom"`
}

// Handlers are the push callbacks. Nil fields are ignored. They are
// invoked from the client's read loop, one at a time.
type Handlers struct {
	OnInitialState func(InitialState)
	OnStateUpdated func(database.FullState)
	OnSoundPlay    func(SoundCommand)
	OnError        func(message string)
}

type serverMessage struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type clientEnvelope struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client is one connection to the realtime channel.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan serverMessage
	closed  bool
}

// Dial connects and authenticates. The server refuses the upgrade when
// the credential resolves to no role.
func Dial(serverURL, credential string, handlers Handlers) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("key", credential)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		handlers: handlers,
		pending:  make(map[int64]chan serverMessage),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		var msg serverMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.closed = true
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}

		switch msg.Type {
		case services.MsgStateInitial:
			if c.handlers.OnInitialState != nil {
				var state InitialState
				if json.Unmarshal(msg.Payload, &state) == nil {
					c.handlers.OnInitialState(state)
				}
			}
		case services.MsgStateUpdated:
			if c.handlers.OnStateUpdated != nil {
				var state database.FullState
				if json.Unmarshal(msg.Payload, &state) == nil {
					c.handlers.OnStateUpdated(state)
				}
			}
		case services.MsgSoundPlay:
			if c.handlers.OnSoundPlay != nil {
				var cmd SoundCommand
				if json.Unmarshal(msg.Payload, &cmd) == nil {
					c.handlers.OnSoundPlay(cmd)
				}
			}
		case services.MsgError:
			if c.handlers.OnError != nil {
				c.handlers.OnError(errorText(msg.Payload))
			}
		}
	}
}

func errorText(payload json.RawMessage) string {
	var p struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(payload, &p) == nil && p.Message != "" {
		return p.Message
	}
	return "unknown error"
}

// call sends one intent and waits for its acknowledgement. The reply is
// the server's result payload; an error reply becomes a Go error.
func (c *Client) call(ctx context.Context, opType string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("connection closed")
	}
	c.nextID++
	id := c.nextID
	ch := make(chan serverMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(clientEnvelope{ID: id, Type: opType, Payload: payload})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to send %s: %w", opType, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return nil, errors.New("connection closed")
		}
		if msg.Type == services.MsgError {
			return nil, errors.New(errorText(msg.Payload))
		}
		return msg.Payload, nil
	}
}

func (c *Client) callInto(ctx context.Context, opType string, payload, result any) error {
	raw, err := c.call(ctx, opType, payload)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(raw, result)
}

func (c *Client) CreateColumn(ctx context.Context, title string) (*database.Column, error) {
	var column database.Column
	err := c.callInto(ctx, services.OpColumnsCreate, map[string]any{"title": title}, &column)
	if err != nil {
		return nil, err
	}
	return &column, nil
}

func (c *Client) UpdateColumn(ctx context.Context, id int64, title string) error {
	return c.callInto(ctx, services.OpColumnsUpdate, map[string]any{"id": id, "title": title}, nil)
}

func (c *Client) DeleteColumn(ctx context.Context, id int64) error {
	return c.callInto(ctx, services.OpColumnsDelete, map[string]any{"id": id}, nil)
}

func (c *Client) ReorderColumns(ctx context.Context, ids []int64) error {
	return c.callInto(ctx, services.OpColumnsReorder, map[string]any{"ids": ids}, nil)
}

func (c *Client) CreateTask(ctx context.Context, title string, columnID int64) (*database.Task, error) {
	var task database.Task
	err := c.callInto(ctx, services.OpTasksCreate, map[string]any{"title": title, "column_id": columnID}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial update; a nil title is untouched.
func (c *Client) UpdateTask(ctx context.Context, id int64, title *string, resetCreated bool) error {
	payload := map[string]any{"id": id, "reset_created": resetCreated}
	if title != nil {
		payload["title"] = *title
	}
	return c.callInto(ctx, services.OpTasksUpdate, payload, nil)
}

// ReorderTasks declares the full ordered contents of one column.
// movedTaskID, when non-zero, nominates the task that just crossed a
// column boundary for an elapsed-timer reset; the server verifies the
// move actually happened.
func (c *Client) ReorderTasks(ctx context.Context, columnID int64, taskIDs []int64, movedTaskID int64) error {
	payload := map[string]any{"column_id": columnID, "task_ids": taskIDs}
	if movedTaskID != 0 {
		payload["moved_task_id_to_reset_timer"] = movedTaskID
	}
	return c.callInto(ctx, services.OpTasksReorder, payload, nil)
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.callInto(ctx, services.OpTasksDelete, map[string]any{"id": id}, nil)
}

func (c *Client) CreateEvent(ctx context.Context, date, title, description string) (*database.Event, error) {
	var event database.Event
	err := c.callInto(ctx, services.OpEventsCreate,
		map[string]any{"date": date, "title": title, "description": description}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEvent applies a partial update; nil fields are untouched.
func (c *Client) UpdateEvent(ctx context.Context, id int64, date, title, description *string) error {
	payload := map[string]any{"id": id}
	if date != nil {
		payload["date"] = *date
	}
	if title != nil {
		payload["title"] = *title
	}
	if description != nil {
		payload["description"] = *description
	}
	return c.callInto(ctx, services.OpEventsUpdate, payload, nil)
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.callInto(ctx, services.OpEventsDelete, map[string]any{"id": id}, nil)
}

// BroadcastSound relays a sound command to every other connected
// client. Fire-and-forget: nothing is persisted and there is no replay.
func (c *Client) BroadcastSound(ctx context.Context, sound string, isCustom bool) error {
	return c.callInto(ctx, services.OpSoundBroadcast, map[string]any{"sound": sound, "isCustom": isCustom}, nil)
}

func (c *Client) DeleteCustomSound(ctx context.Context, id int64) error {
	return c.callInto(ctx, services.OpSoundsCustomDelete, map[string]any{"id": id}, nil)
}

func (c *Client) SetAdminMessage(ctx context.Context, message string) error {
	return c.callInto(ctx, services.OpAdminMessageUpdate, map[string]any{"message": message}, nil)
}

func (c *Client) SetMarqueeConfig(ctx context.Context, config database.MarqueeConfig) error {
	return c.callInto(ctx, services.OpSettingsMarquee, map[string]any{"config": config}, nil)
}
