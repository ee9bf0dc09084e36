package client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/adapter/api"
	"campuschat/internal/adapter/api/handler"
	apimiddleware "campuschat/internal/adapter/api/middleware"
	"campuschat/internal/adapter/api/router"
	"campuschat/internal/adapter/repository"
	"campuschat/internal/domain/entity"
	domainrepo "campuschat/internal/domain/repository"
	"campuschat/internal/infrastructure/auth"
	ws "campuschat/internal/infrastructure/websocket"
	"campuschat/internal/usecase"
)

// testBackend runs the real server stack against an in-memory database
// so the engine is exercised over an actual wire.
type testBackend struct {
	serverURL string
	hubURL    string
	userRepo  domainrepo.UserRepository
	chatRepo  domainrepo.ChatRepository
	tokens    *auth.TokenManager
}

func startBackend(t *testing.T, dbName string) *testBackend {
	t.Helper()

	db, err := repository.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName))
	require.NoError(t, err)

	userRepo := repository.NewGormUserRepository(db)
	chatRepo := repository.NewGormChatRepository(db)

	tokenManager := auth.NewTokenManager("e2e-secret", 3600)
	authUseCase := usecase.NewAuthUseCase(userRepo, tokenManager)

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub()
	hub.Start(ctx)

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, hub)

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()

	router.Setup(e,
		handler.NewAuthHandler(authUseCase),
		handler.NewChatHandler(chatUseCase),
		handler.NewWebSocketHandler(hub, authUseCase),
		apimiddleware.NewAuthMiddleware(authUseCase),
	)

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &testBackend{
		serverURL: srv.URL,
		hubURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/chatHub",
		userRepo:  userRepo,
		chatRepo:  chatRepo,
		tokens:    tokenManager,
	}
}

func (b *testBackend) addUser(t *testing.T, id, name, email string) {
	t.Helper()
	hash, err := auth.HashPassword("password")
	require.NoError(t, err)
	require.NoError(t, b.userRepo.Create(context.Background(), &entity.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}))
}

func (b *testBackend) tokenFor(t *testing.T, id, email string) TokenFunc {
	t.Helper()
	token, err := b.tokens.Generate(id, email)
	require.NoError(t, err)
	return staticToken(token)
}

func (b *testBackend) newView(t *testing.T, selfID, email string, pageSize int, notify func(Event)) *ChatView {
	t.Helper()
	view := NewChatView(ViewConfig{
		SelfID:      selfID,
		ServerURL:   b.serverURL,
		HubURL:      b.hubURL,
		Token:       b.tokenFor(t, selfID, email),
		PageSize:    pageSize,
		BackoffBase: 20 * time.Millisecond,
		BackoffMax:  100 * time.Millisecond,
		Notify:      notify,
	})
	t.Cleanup(func() { view.Close() })
	return view
}

func TestChatViewConversationEndToEnd(t *testing.T) {
	backend := startBackend(t, "e2e_conversation")
	backend.addUser(t, "u-admin", "Admin", "admin@campus.local")
	backend.addUser(t, "u-jane", "Jane Smith", "jane@campus.local")

	ctx := context.Background()
	adminView := backend.newView(t, "u-admin", "admin@campus.local", 5, nil)

	require.NoError(t, adminView.Open(ctx))
	assert.Equal(t, StatusConnected, adminView.ConnectionStatus())
	assert.Equal(t, StateBrowsing, adminView.State())

	// The directory excludes the caller and carries no room yet.
	users, err := adminView.SearchUsers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u-jane", users[0].ID)
	assert.Empty(t, users[0].ChatRoomID)

	// Selecting creates the direct room, joins it and loads the (empty)
	// first history page.
	require.NoError(t, adminView.SelectUser(ctx, users[0]))
	assert.Equal(t, StateConversing, adminView.State())
	assert.Empty(t, adminView.Messages())

	// A sent message reaches the timeline via the live-channel echo.
	require.NoError(t, adminView.Send(ctx, "Hello Jane"))
	assert.Eventually(t, func() bool {
		return len(adminView.Messages()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	echoed := adminView.Messages()[0]
	assert.Equal(t, "Hello Jane", echoed.Content)
	assert.Equal(t, "u-admin", echoed.SenderID)
	assert.True(t, echoed.IsOwnMessage)

	// Jane opens her widget: the admin now resolves to the shared room,
	// and history carries the message with ownership flipped.
	janeView := backend.newView(t, "u-jane", "jane@campus.local", 5, nil)
	require.NoError(t, janeView.Open(ctx))

	counterparts, err := janeView.SearchUsers(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, counterparts, 1)
	assert.NotEmpty(t, counterparts[0].ChatRoomID)

	require.NoError(t, janeView.SelectUser(ctx, counterparts[0]))
	require.Len(t, janeView.Messages(), 1)
	assert.Equal(t, "Hello Jane", janeView.Messages()[0].Content)
	assert.False(t, janeView.Messages()[0].IsOwnMessage)

	// Live delivery to the counterpart while both are in the room.
	require.NoError(t, adminView.Send(ctx, "Are you there?"))
	assert.Eventually(t, func() bool {
		return len(janeView.Messages()) == 2
	}, 3*time.Second, 10*time.Millisecond)
	latest := janeView.Messages()[1]
	assert.Equal(t, "Are you there?", latest.Content)
	assert.False(t, latest.IsOwnMessage)

	// Jane shows as online in the admin's directory overlay.
	assert.Eventually(t, func() bool {
		refreshed, err := adminView.SearchUsers(ctx, "jane")
		return err == nil && len(refreshed) == 1 && refreshed[0].IsOnline
	}, 3*time.Second, 50*time.Millisecond)

	// Back returns to the list and drops conversation state; reopening
	// reloads history from the server.
	require.NoError(t, adminView.Back(ctx))
	assert.Equal(t, StateBrowsing, adminView.State())
	assert.Empty(t, adminView.Messages())

	users, err = adminView.SearchUsers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NoError(t, adminView.SelectUser(ctx, users[0]))
	require.Len(t, adminView.Messages(), 2)
	assert.Equal(t, "Hello Jane", adminView.Messages()[0].Content)
	assert.Equal(t, "Are you there?", adminView.Messages()[1].Content)
}

func TestChatViewRoomReusedAcrossSelections(t *testing.T) {
	backend := startBackend(t, "e2e_room_reuse")
	backend.addUser(t, "u-admin", "Admin", "admin@campus.local")
	backend.addUser(t, "u-jane", "Jane Smith", "jane@campus.local")

	ctx := context.Background()
	view := backend.newView(t, "u-admin", "admin@campus.local", 5, nil)
	require.NoError(t, view.Open(ctx))

	users, err := view.SearchUsers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NoError(t, view.SelectUser(ctx, users[0]))

	rooms, err := backend.chatRepo.ListRoomsByUserID(ctx, "u-admin")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	firstRoom := rooms[0].ID

	require.NoError(t, view.Back(ctx))

	// The second selection resolves to the same room instead of
	// creating a duplicate.
	users, err = view.SearchUsers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, firstRoom, users[0].ChatRoomID)
	require.NoError(t, view.SelectUser(ctx, users[0]))

	rooms, err = backend.chatRepo.ListRoomsByUserID(ctx, "u-admin")
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestChatViewHistoryPagination(t *testing.T) {
	backend := startBackend(t, "e2e_pagination")
	backend.addUser(t, "u-admin", "Admin", "admin@campus.local")
	backend.addUser(t, "u-jane", "Jane Smith", "jane@campus.local")

	ctx := context.Background()
	room := &entity.Room{
		ID:             "r-history",
		IsGroup:        false,
		ParticipantIDs: []string{"u-admin", "u-jane"},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, backend.chatRepo.CreateRoom(ctx, room))

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 7; i++ {
		require.NoError(t, backend.chatRepo.CreateMessage(ctx, &entity.Message{
			ID:       fmt.Sprintf("m%d", i),
			RoomID:   "r-history",
			SenderID: "u-jane",
			Content:  fmt.Sprintf("message %d", i),
			SentAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	view := backend.newView(t, "u-admin", "admin@campus.local", 3, nil)
	require.NoError(t, view.Open(ctx))

	users, err := view.SearchUsers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NoError(t, view.SelectUser(ctx, users[0]))

	contents := func() []string {
		var out []string
		for _, m := range view.Messages() {
			out = append(out, m.ID)
		}
		return out
	}

	// First page is the newest three, rendered ascending.
	assert.Equal(t, []string{"m4", "m5", "m6"}, contents())

	require.NoError(t, view.LoadOlder(ctx))
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5", "m6"}, contents())

	require.NoError(t, view.LoadOlder(ctx))
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6"}, contents())

	// History is exhausted; further loads fetch nothing.
	require.NoError(t, view.LoadOlder(ctx))
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6"}, contents())
}

func TestChatViewSendValidation(t *testing.T) {
	backend := startBackend(t, "e2e_send_validation")
	backend.addUser(t, "u-admin", "Admin", "admin@campus.local")

	view := backend.newView(t, "u-admin", "admin@campus.local", 5, nil)

	err := view.Send(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_REQUEST")

	// No conversation is open, so even valid content has nowhere to go.
	err = view.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_REQUEST")
}

func TestChatViewEmitsStateEvents(t *testing.T) {
	backend := startBackend(t, "e2e_state_events")
	backend.addUser(t, "u-admin", "Admin", "admin@campus.local")
	backend.addUser(t, "u-jane", "Jane Smith", "jane@campus.local")

	events := make(chan Event, 64)
	view := backend.newView(t, "u-admin", "admin@campus.local", 5, func(event Event) {
		select {
		case events <- event:
		default:
		}
	})

	ctx := context.Background()
	require.NoError(t, view.Open(ctx))

	users, err := view.SearchUsers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NoError(t, view.SelectUser(ctx, users[0]))
	require.NoError(t, view.Back(ctx))

	var states []ViewState
	deadline := time.After(time.Second)
	for len(states) < 3 {
		select {
		case event := <-events:
			if event.Kind == EventStateChanged {
				states = append(states, event.State)
			}
		case <-deadline:
			t.Fatalf("expected three state transitions, saw %v", states)
		}
	}
	assert.Equal(t, []ViewState{StateSelecting, StateConversing, StateBrowsing}, states)
}
