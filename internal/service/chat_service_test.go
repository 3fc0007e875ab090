package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyroomhq/studyroom-chat/internal/cache"
	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/internal/moderation"
	"github.com/studyroomhq/studyroom-chat/internal/registry"
	"github.com/studyroomhq/studyroom-chat/internal/repository"
)

// fakeRepo is an in-memory Repository whose failure modes can be toggled
// per test.
type fakeRepo struct {
	mu       sync.Mutex
	nextID   uint
	admins   map[string]string
	messages []domain.Message
	mutes    map[string]map[string]string // room -> username -> mutedBy

	saveErr   error
	deleteErr error
	listErr   error
	listCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID: 1,
		admins: make(map[string]string),
		mutes:  make(map[string]map[string]string),
	}
}

func (r *fakeRepo) FindOrCreateUser(ctx context.Context, username string) (*domain.User, error) {
	return &domain.User{Username: username}, nil
}

func (r *fakeRepo) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	return &domain.User{Username: username, PasswordHash: passwordHash}, nil
}

func (r *fakeRepo) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return nil, repository.ErrUserNotFound
}

func (r *fakeRepo) FindOrCreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	return &domain.Room{Name: name}, nil
}

func (r *fakeRepo) GetAdmin(ctx context.Context, room string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admins[room], nil
}

func (r *fakeRepo) SetAdmin(ctx context.Context, room, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.admins[room] == "" {
		r.admins[room] = username
	}
	return nil
}

func (r *fakeRepo) SaveMessage(ctx context.Context, msg *domain.Message) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return 0, r.saveErr
	}
	msg.ID = r.nextID
	r.nextID++
	r.messages = append(r.messages, *msg)
	return msg.ID, nil
}

func (r *fakeRepo) SoftDeleteMessage(ctx context.Context, id uint, deletedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i := range r.messages {
		if r.messages[i].ID == id && !r.messages[i].Deleted {
			r.messages[i].Deleted = true
			r.messages[i].DeletedBy = deletedBy
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

func (r *fakeRepo) ListMessages(ctx context.Context, room string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Message
	for _, m := range r.messages {
		if m.Room == room && !m.Deleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) AddMute(ctx context.Context, room, username, mutedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mutes[room] == nil {
		r.mutes[room] = make(map[string]string)
	}
	r.mutes[room][username] = mutedBy
	return nil
}

func (r *fakeRepo) RemoveMute(ctx context.Context, room, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mutes[room], username)
	return nil
}

func (r *fakeRepo) ListMutes(ctx context.Context, room string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for u := range r.mutes[room] {
		out = append(out, u)
	}
	return out, nil
}

// fakeAssistant returns a canned reply.
type fakeAssistant struct {
	reply string
	err   error
	calls int
}

func (a *fakeAssistant) Complete(ctx context.Context, prompt string) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return a.reply, nil
}

func (a *fakeAssistant) Enabled() bool { return true }
func (a *fakeAssistant) Model() string { return "fake-model" }

// testConn captures every frame delivered to one connection, decoded to a
// generic map for assertions on type and fields.
type testConn struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
	dead bool
}

func newTestConn(id string) *testConn { return &testConn{id: id} }

func (c *testConn) ID() string { return c.id }

func (c *testConn) TrySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return false
	}
	c.sent = append(c.sent, payload)
	return true
}

func (c *testConn) Close() {}

func (c *testConn) kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

func (c *testConn) frames(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, len(c.sent))
	for i, raw := range c.sent {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))
		out[i] = m
	}
	return out
}

func (c *testConn) framesOfType(t *testing.T, frameType string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, f := range c.frames(t) {
		if f["type"] == frameType {
			out = append(out, f)
		}
	}
	return out
}

func newTestService(repo repository.Repository) (ChatService, *registry.Registry, *moderation.State) {
	reg := registry.New()
	mod := moderation.NewState()
	msgCache := cache.NewMemoryMessageCache()
	history := NewHistoryService(repo, msgCache, time.Minute)
	svc := NewChatService(reg, mod, repo, history, msgCache, nil)
	return svc, reg, mod
}

func TestHandleConnect_FirstUserBecomesAdmin(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, mod := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")

	req.True(mod.IsAdmin("math", "alice"))
	req.Equal("alice", repo.admins["math"])
	req.NotEmpty(alice.framesOfType(t, domain.FrameAdminStatus))
	req.NotEmpty(alice.framesOfType(t, domain.FrameHistory))
}

func TestHandleConnect_SecondUserIsNotAdmin(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, mod := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	req.True(mod.IsAdmin("math", "alice"))
	req.False(mod.IsAdmin("math", "bob"))
	req.Empty(bob.framesOfType(t, domain.FrameAdminStatus))

	// Alice sees her own arrival and then bob's.
	joins := alice.framesOfType(t, domain.FrameUserJoined)
	req.Len(joins, 2)
	req.Equal("bob", joins[1]["username"])
}

func TestHandleConnect_AnonymousJoinIsSilent(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, mod := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	anon := newTestConn("c-anon")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, anon, "math", domain.Anonymous)

	// Only alice's own join was announced; the anonymous arrival was not.
	req.Len(alice.framesOfType(t, domain.FrameUserJoined), 1)
	req.False(mod.IsAdmin("math", domain.Anonymous))

	// The anonymous visitor still gets history and the presence snapshot.
	req.NotEmpty(anon.framesOfType(t, domain.FrameHistory))
	req.NotEmpty(anon.framesOfType(t, domain.FrameOnlineUsers))
}

func TestHandleConnect_AdminSurvivesRestartViaSeed(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.admins["math"] = "alice"
	repo.mutes["math"] = map[string]string{"bob": "alice"}

	svc, _, mod := newTestService(repo)
	ctx := context.Background()

	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, bob, "math", "bob")

	req.True(mod.IsAdmin("math", "alice"))
	req.False(mod.IsAdmin("math", "bob"))
	req.True(mod.IsMuted("math", "bob"))
}

func TestHandleFrame_ChatIsPersistedAndBroadcast(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"hi @bob"}`))

	chats := bob.framesOfType(t, domain.FrameChat)
	req.Len(chats, 1)
	req.Equal("alice", chats[0]["username"])
	req.Equal("hi @bob", chats[0]["message"])
	req.NotNil(chats[0]["id"])
	req.Equal([]interface{}{"bob"}, chats[0]["mentions"])

	req.Len(repo.messages, 1)
	req.Equal("hi @bob", repo.messages[0].Content)
}

func TestHandleFrame_MalformedInputBecomesPlainChat(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte("hello"))

	chats := bob.framesOfType(t, domain.FrameChat)
	req.Len(chats, 1)
	req.Equal("alice", chats[0]["username"])
	req.Equal("hello", chats[0]["message"])
	req.Empty(bob.framesOfType(t, domain.FrameError))
}

func TestHandleFrame_MutedSenderGetsPrivateError(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"mute_user","username":"alice","target_username":"bob"}`))

	muted := alice.framesOfType(t, domain.FrameUserMuted)
	req.Len(muted, 1)
	req.Equal("bob", muted[0]["username"])
	req.Equal("alice", muted[0]["by"])

	svc.HandleFrame(ctx, bob, "math", "bob", []byte(`{"type":"chat","username":"bob","message":"let me in"}`))

	errs := bob.framesOfType(t, domain.FrameError)
	req.Len(errs, 1)
	req.Empty(alice.framesOfType(t, domain.FrameChat))
	req.Empty(repo.messages)
}

func TestHandleFrame_UnmuteRestoresSending(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"mute_user","username":"alice","target_username":"bob"}`))
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"unmute_user","username":"alice","target_username":"bob"}`))

	unmuted := alice.framesOfType(t, domain.FrameUserUnmuted)
	req.Len(unmuted, 1)
	req.Empty(repo.mutes["math"])

	svc.HandleFrame(ctx, bob, "math", "bob", []byte(`{"type":"chat","username":"bob","message":"back"}`))
	req.Len(alice.framesOfType(t, domain.FrameChat), 1)
}

func TestHandleFrame_NonAdminMuteIsDroppedSilently(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, mod := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, bob, "math", "bob", []byte(`{"type":"mute_user","username":"bob","target_username":"alice"}`))

	req.False(mod.IsMuted("math", "alice"))
	req.Empty(bob.framesOfType(t, domain.FrameError))
	req.Empty(alice.framesOfType(t, domain.FrameUserMuted))
}

func TestHandleFrame_RepeatMuteRebroadcastsWithoutNewRecord(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")

	mute := []byte(`{"type":"mute_user","username":"alice","target_username":"bob"}`)
	svc.HandleFrame(ctx, alice, "math", "alice", mute)
	svc.HandleFrame(ctx, alice, "math", "alice", mute)

	req.Len(alice.framesOfType(t, domain.FrameUserMuted), 2)
	req.Len(repo.mutes["math"], 1)
}

func TestHandleFrame_UnmuteNeverMutedIsSilent(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"unmute_user","username":"alice","target_username":"bob"}`))

	req.Empty(alice.framesOfType(t, domain.FrameUserUnmuted))
}

func TestHandleFrame_TypingIsBroadcastNotPersisted(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"typing","username":"alice"}`))
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"stop_typing","username":"alice"}`))

	req.Len(bob.framesOfType(t, domain.FrameTyping), 1)
	req.Len(bob.framesOfType(t, domain.FrameStopTyping), 1)
	req.Empty(repo.messages)
}

func TestHandleFrame_AdminDeletesMessage(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, bob, "math", "bob", []byte(`{"type":"chat","username":"bob","message":"oops"}`))
	req.Len(repo.messages, 1)
	id := repo.messages[0].ID

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"delete_message","username":"alice","message_id":1}`))

	deleted := bob.framesOfType(t, domain.FrameMsgDeleted)
	req.Len(deleted, 1)
	req.Equal(float64(id), deleted[0]["message_id"])
	req.Equal("alice", deleted[0]["deleted_by"])
	req.True(repo.messages[0].Deleted)
	req.Equal("alice", repo.messages[0].DeletedBy)
}

func TestHandleFrame_DeleteUnknownMessageIsSilent(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"delete_message","username":"alice","message_id":99}`))

	req.Empty(alice.framesOfType(t, domain.FrameMsgDeleted))
}

func TestHandleFrame_DeleteByNonAdminIsDropped(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"keep me"}`))
	svc.HandleFrame(ctx, bob, "math", "bob", []byte(`{"type":"delete_message","username":"bob","message_id":1}`))

	req.False(repo.messages[0].Deleted)
	req.Empty(alice.framesOfType(t, domain.FrameMsgDeleted))
}

func TestHandleFrame_DeleteFailureStillBroadcasts(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"x"}`))

	repo.deleteErr = errors.New("db down")
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"delete_message","username":"alice","message_id":1}`))

	req.Len(alice.framesOfType(t, domain.FrameMsgDeleted), 1)
}

func TestHandleFrame_PersistFailureBroadcastsWithoutID(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.saveErr = errors.New("db down")
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"still here"}`))

	chats := bob.framesOfType(t, domain.FrameChat)
	req.Len(chats, 1)
	req.Equal("still here", chats[0]["message"])
	_, hasID := chats[0]["id"]
	req.False(hasID)
}

func TestHandleFrame_FrameUsernameOverridesHandshake(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	// The claimed username wins over the handshake identity.
	svc.HandleFrame(ctx, bob, "math", "bob", []byte(`{"type":"chat","username":"carol","message":"hi"}`))

	chats := alice.framesOfType(t, domain.FrameChat)
	req.Len(chats, 1)
	req.Equal("carol", chats[0]["username"])
}

func TestHandleFrame_ChatWithAttachment(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(
		`{"type":"chat","username":"alice","message":"notes","file_url":"/files/n.pdf","filename":"n.pdf","file_type":"application/pdf","file_size":1234}`))

	chats := bob.framesOfType(t, domain.FrameChat)
	req.Len(chats, 1)
	req.Equal("/files/n.pdf", chats[0]["file_url"])
	req.Equal("n.pdf", chats[0]["filename"])
	req.Equal("application/pdf", chats[0]["file_type"])
	req.Equal(float64(1234), chats[0]["file_size"])

	req.True(repo.messages[0].HasAttachment())
}

func TestHandleFrame_AssistantPromptGetsReply(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	reg := registry.New()
	mod := moderation.NewState()
	msgCache := cache.NewMemoryMessageCache()
	history := NewHistoryService(repo, msgCache, time.Minute)
	helper := &fakeAssistant{reply: "the answer is 42"}
	svc := NewChatService(reg, mod, repo, history, msgCache, helper)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"@bot what is the answer?"}`))

	chats := alice.framesOfType(t, domain.FrameChat)
	req.Len(chats, 2)
	req.Equal("alice", chats[0]["username"])
	req.Equal(domain.AssistantUsername, chats[1]["username"])
	req.Equal("the answer is 42", chats[1]["message"])
	req.Equal(1, helper.calls)

	// Both the question and the reply are persisted.
	req.Len(repo.messages, 2)
	req.Equal(domain.AssistantUsername, repo.messages[1].Username)
}

func TestHandleFrame_AssistantFailureIsPrivate(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	reg := registry.New()
	mod := moderation.NewState()
	msgCache := cache.NewMemoryMessageCache()
	history := NewHistoryService(repo, msgCache, time.Minute)
	helper := &fakeAssistant{err: errors.New("rate limited")}
	svc := NewChatService(reg, mod, repo, history, msgCache, helper)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"@bot help"}`))

	req.Len(alice.framesOfType(t, domain.FrameError), 1)
	req.Empty(bob.framesOfType(t, domain.FrameError))
	req.Len(repo.messages, 1)
}

func TestHandleDisconnect_LastConnectionAnnouncesLeave(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, reg, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	svc.HandleDisconnect(ctx, bob, "math", "bob")

	lefts := alice.framesOfType(t, domain.FrameUserLeft)
	req.Len(lefts, 1)
	req.Equal("bob", lefts[0]["username"])
	req.Equal([]string{"alice"}, reg.Online("math"))
}

func TestHandleDisconnect_OtherConnectionsKeepPresence(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, reg, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob1 := newTestConn("c-bob-1")
	bob2 := newTestConn("c-bob-2")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob1, "math", "bob")
	svc.HandleConnect(ctx, bob2, "math", "bob")

	svc.HandleDisconnect(ctx, bob1, "math", "bob")

	req.Empty(alice.framesOfType(t, domain.FrameUserLeft))
	req.Equal([]string{"alice", "bob"}, reg.Online("math"))
}

func TestBroadcast_PrunedUserDepartureIsAnnounced(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, reg, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleConnect(ctx, bob, "math", "bob")

	// Bob's socket dies without a disconnect; the next fan-out prunes it
	// and announces the departure to the survivors.
	bob.kill()
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","message":"anyone here?"}`))

	lefts := alice.framesOfType(t, domain.FrameUserLeft)
	req.Len(lefts, 1)
	req.Equal("bob", lefts[0]["username"])
	req.Equal([]string{"alice"}, reg.Online("math"))

	onlines := alice.framesOfType(t, domain.FrameOnlineUsers)
	req.NotEmpty(onlines)
	req.Equal([]interface{}{"alice"}, onlines[len(onlines)-1]["users"])

	// The read pump's own teardown for the pruned socket must not
	// announce bob a second time.
	svc.HandleDisconnect(ctx, bob, "math", "bob")
	req.Len(alice.framesOfType(t, domain.FrameUserLeft), 1)
}

func TestHandleConnect_HistoryReplayedToNewcomer(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	alice := newTestConn("c-alice")
	svc.HandleConnect(ctx, alice, "math", "alice")
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"first"}`))
	svc.HandleFrame(ctx, alice, "math", "alice", []byte(`{"type":"chat","username":"alice","message":"second"}`))

	bob := newTestConn("c-bob")
	svc.HandleConnect(ctx, bob, "math", "bob")

	histories := bob.framesOfType(t, domain.FrameHistory)
	req.Len(histories, 1)
	messages, ok := histories[0]["messages"].([]interface{})
	req.True(ok)
	req.Len(messages, 2)
	first, ok := messages[0].(map[string]interface{})
	req.True(ok)
	req.Equal("first", first["message"])
}
