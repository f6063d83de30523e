package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/teamboard/client"
	"github.com/CrowderSoup/teamboard/database"
)

func dialTest(t *testing.T, ts *testServer, key string) (*client.Client, chan client.InitialState, chan database.FullState, chan client.SoundCommand) {
	t.Helper()

	initials := make(chan client.InitialState, 8)
	updates := make(chan database.FullState, 8)
	sounds := make(chan client.SoundCommand, 8)

	c, err := client.Dial(ts.wsURL(), key, client.Handlers{
		OnInitialState: func(s client.InitialState) { initials <- s },
		OnStateUpdated: func(s database.FullState) { updates <- s },
		OnSoundPlay:    func(cmd client.SoundCommand) { sounds <- cmd },
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, initials, updates, sounds
}

func waitInitial(t *testing.T, ch chan client.InitialState) client.InitialState {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial state")
		return client.InitialState{}
	}
}

func waitUpdate(t *testing.T, ch chan database.FullState) database.FullState {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state update")
		return database.FullState{}
	}
}

func assertSilent[T any](t *testing.T, ch chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("expected no message, got %+v", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConnectionRefusedWithoutRole(t *testing.T) {
	ts := newTestServer(t)

	_, err := client.Dial(ts.wsURL(), "not-a-key", client.Handlers{})
	assert.Error(t, err)

	_, err = client.Dial(ts.wsURL(), "", client.Handlers{})
	assert.Error(t, err)
}

func TestInitialStateCarriesRole(t *testing.T) {
	ts := newTestServer(t)

	_, initials, _, _ := dialTest(t, ts, testAdminKey)
	initial := waitInitial(t, initials)
	assert.Equal(t, "admin", initial.Role)
	assert.Empty(t, initial.Columns)

	_, viewerInitials, _, _ := dialTest(t, ts, testViewerKey)
	assert.Equal(t, "viewer", waitInitial(t, viewerInitials).Role)
}

func TestMutationBroadcastsToAllClients(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	admin, adminInitials, adminUpdates, _ := dialTest(t, ts, testAdminKey)
	_, viewerInitials, viewerUpdates, _ := dialTest(t, ts, testViewerKey)
	waitInitial(t, adminInitials)
	waitInitial(t, viewerInitials)

	column, err := admin.CreateColumn(ctx, "Todo")
	require.NoError(t, err)
	assert.Equal(t, "Todo", column.Title)
	assert.Equal(t, 1, column.Position)

	// Everyone gets the snapshot, the originator included.
	adminState := waitUpdate(t, adminUpdates)
	viewerState := waitUpdate(t, viewerUpdates)
	require.Len(t, adminState.Columns, 1)
	assert.Equal(t, adminState, viewerState)
}

func TestColumnReorderScenario(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	admin, initials, updates, _ := dialTest(t, ts, testAdminKey)
	waitInitial(t, initials)

	todo, err := admin.CreateColumn(ctx, "Todo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), todo.ID)
	assert.Equal(t, 1, todo.Position)
	waitUpdate(t, updates)

	done, err := admin.CreateColumn(ctx, "Done")
	require.NoError(t, err)
	assert.Equal(t, 2, done.Position)
	waitUpdate(t, updates)

	require.NoError(t, admin.ReorderColumns(ctx, []int64{done.ID, todo.ID}))
	state := waitUpdate(t, updates)
	require.Len(t, state.Columns, 2)
	assert.Equal(t, "Done", state.Columns[0].Title)
	assert.Equal(t, "Todo", state.Columns[1].Title)
}

func TestViewerMutationForbidden(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	column, err := ts.store.CreateColumn("Col")
	require.NoError(t, err)
	task, err := ts.store.CreateTask("keep me", column.ID)
	require.NoError(t, err)

	viewer, initials, updates, _ := dialTest(t, ts, testViewerKey)
	waitInitial(t, initials)

	err = viewer.DeleteTask(ctx, task.ID)
	require.Error(t, err)
	assert.Equal(t, "forbidden", err.Error())

	// No write happened and no broadcast went out.
	state, err := ts.store.FullState()
	require.NoError(t, err)
	require.Len(t, state.Tasks, 1)
	assert.Equal(t, task.ID, state.Tasks[0].ID)
	assertSilent(t, updates)
}

func TestValidationRejectedBeforeWrite(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	admin, initials, updates, _ := dialTest(t, ts, testAdminKey)
	waitInitial(t, initials)

	_, err := admin.CreateColumn(ctx, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	state, err := ts.store.FullState()
	require.NoError(t, err)
	assert.Empty(t, state.Columns)
	assertSilent(t, updates)
}

func TestSoundBroadcastSkipsSender(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	admin, adminInitials, _, adminSounds := dialTest(t, ts, testAdminKey)
	_, viewerInitials, _, viewerSounds := dialTest(t, ts, testViewerKey)
	waitInitial(t, adminInitials)
	waitInitial(t, viewerInitials)

	require.NoError(t, admin.BroadcastSound(ctx, "horn", false))

	select {
	case cmd := <-viewerSounds:
		assert.Equal(t, "horn", cmd.Sound)
		assert.False(t, cmd.IsCustom)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer never received sound command")
	}

	assertSilent(t, adminSounds)
}

func TestTaskMoveResetsTimerOnlyOnRealMove(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	admin, initials, updates, _ := dialTest(t, ts, testAdminKey)
	waitInitial(t, initials)

	col1, err := admin.CreateColumn(ctx, "One")
	require.NoError(t, err)
	waitUpdate(t, updates)
	col2, err := admin.CreateColumn(ctx, "Two")
	require.NoError(t, err)
	waitUpdate(t, updates)

	task, err := admin.CreateTask(ctx, "Write spec", col1.ID)
	require.NoError(t, err)
	waitUpdate(t, updates)

	// Cross-column move without nominating a reset: timer unchanged.
	require.NoError(t, admin.ReorderTasks(ctx, col2.ID, []int64{task.ID}, 0))
	state := waitUpdate(t, updates)
	require.Len(t, state.Tasks, 1)
	assert.Equal(t, col2.ID, state.Tasks[0].ColumnID)
	assert.Equal(t, task.CreatedAt, state.Tasks[0].CreatedAt)

	// In-column reorder forging the reset flag: still unchanged.
	require.NoError(t, admin.ReorderTasks(ctx, col2.ID, []int64{task.ID}, task.ID))
	state = waitUpdate(t, updates)
	assert.Equal(t, task.CreatedAt, state.Tasks[0].CreatedAt)
}

func TestAdminMessageAndMarqueeOverChannel(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	admin, initials, updates, _ := dialTest(t, ts, testAdminKey)
	waitInitial(t, initials)

	require.NoError(t, admin.SetAdminMessage(ctx, "standup at ten"))
	state := waitUpdate(t, updates)
	assert.Equal(t, "standup at ten", state.AdminMessage)

	require.NoError(t, admin.SetMarqueeConfig(ctx, database.MarqueeConfig{Enabled: true, Speed: 25}))
	state = waitUpdate(t, updates)
	assert.Equal(t, database.MarqueeConfig{Enabled: true, Speed: 25}, state.Marquee)
}
