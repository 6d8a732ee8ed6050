package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autoparc/internal/client/cache"
	"autoparc/internal/client/model"
	"autoparc/internal/client/persist"
	"autoparc/internal/client/platform"
	"autoparc/internal/realtime"
)

type fakeAPI struct {
	mu          sync.Mutex
	meErrs      []error
	meCalls     int
	markReads   int
	sendErr     error
	signOuts    int
	signOutGate chan struct{}
	token       string
	chatLoads   int
	readGate    chan struct{}
	readEntered chan struct{}
	sendGate    chan struct{}
}

func (f *fakeAPI) SignIn(ctx context.Context, email, password string) (platform.Auth, error) {
	if password != "secret123" {
		return platform.Auth{}, &platform.APIError{Status: 401, Message: "invalid credentials"}
	}
	f.SetToken("tok")
	return platform.Auth{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAPI) SignOut(ctx context.Context) error {
	if f.signOutGate != nil {
		<-f.signOutGate
	}
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeAPI) Me(ctx context.Context) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if len(f.meErrs) > 0 {
		err := f.meErrs[0]
		f.meErrs = f.meErrs[1:]
		if err != nil {
			return model.User{}, err
		}
	}
	return model.User{ID: "u-me", Name: "Moi"}, nil
}

func (f *fakeAPI) Chats(ctx context.Context) ([]model.Chat, int, error) {
	f.mu.Lock()
	f.chatLoads++
	f.mu.Unlock()
	return []model.Chat{
		{ID: "c1", Participants: []string{"u-me", "u-a"}, UnreadCount: 2},
		{ID: "c2", Participants: []string{"u-me", "u-b"}},
	}, 2, nil
}

func (f *fakeAPI) Favorites(ctx context.Context) ([]string, error) { return []string{"l1"}, nil }

func (f *fakeAPI) Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, int, error) {
	return []model.Notification{{ID: "n1"}}, 1, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, chatID string) (int, error) {
	f.mu.Lock()
	f.markReads++
	gate, entered := f.readGate, f.readEntered
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
		return 5, nil
	}
	return 0, nil
}

// holdReads makes later MarkRead calls wait for gate, ignoring cancellation,
// and then report five unread messages.
func (f *fakeAPI) holdReads(gate chan struct{}) <-chan struct{} {
	entered := make(chan struct{}, 1)
	f.mu.Lock()
	f.readGate, f.readEntered = gate, entered
	f.mu.Unlock()
	return entered
}

func (f *fakeAPI) Messages(ctx context.Context, chatID, before string, limit int) ([]model.Message, string, error) {
	if chatID != "c1" {
		return nil, "", nil
	}
	return []model.Message{{ID: "h1", ChatID: "c1", SenderID: "u-a", Text: "Toujours en vente ?", Timestamp: 1}}, "", nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID, text, clientID string) (model.Message, error) {
	if f.sendGate != nil {
		<-f.sendGate
	}
	if f.sendErr != nil {
		return model.Message{}, f.sendErr
	}
	return model.Message{ID: "m-srv", ChatID: chatID, SenderID: "u-me", Text: text, ClientID: clientID, Timestamp: time.Now().UnixMilli()}, nil
}

func (f *fakeAPI) Typing(ctx context.Context, chatID string) error { return nil }

func (f *fakeAPI) AddFavorite(ctx context.Context, listingID string) error { return nil }

func (f *fakeAPI) RemoveFavorite(ctx context.Context, listingID string) error { return nil }

func (f *fakeAPI) loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatLoads
}

func (f *fakeAPI) counts() (me, reads, outs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls, f.markReads, f.signOuts
}

type fakeStream struct {
	events chan model.Change
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Events() <-chan model.Change { return s.events }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type streams struct {
	mu   sync.Mutex
	list []*fakeStream
}

func (s *streams) subscribe(ctx context.Context, filters ...string) (Stream, error) {
	st := &fakeStream{events: make(chan model.Change, 8)}
	s.mu.Lock()
	s.list = append(s.list, st)
	s.mu.Unlock()
	return st, nil
}

func (s *streams) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

func (s *streams) at(i int) *fakeStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list[i]
}

type memStore struct {
	mu      sync.Mutex
	saved   *persist.Saved
	cleared int
}

func (m *memStore) Save(ctx context.Context, s persist.Saved) error {
	m.mu.Lock()
	m.saved = &s
	m.mu.Unlock()
	return nil
}

func (m *memStore) Load(ctx context.Context) (persist.Saved, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return persist.Saved{}, false, nil
	}
	return *m.saved, true, nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.saved = nil
	m.cleared++
	m.mu.Unlock()
	return nil
}

func fastConfig() Config {
	return Config{
		ProfileRetryDelay: 10 * time.Millisecond,
		ReadPollInterval:  5 * time.Millisecond,
		TypingTimeout:     time.Hour,
		TypingThrottle:    time.Hour,
		ReconnectDelay:    5 * time.Millisecond,
	}
}

func newSession(api *fakeAPI) (*Session, *streams, *memStore, *cache.Store) {
	subs := &streams{}
	store := &memStore{}
	c := cache.New()
	return New(api, subs.subscribe, store, c, nil, fastConfig()), subs, store, c
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}

func TestSignInRetriesProfileOnce(t *testing.T) {
	api := &fakeAPI{meErrs: []error{errors.New("profile not ready")}}
	s, subs, store, _ := newSession(api)
	started := time.Now()
	user, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.ID != "u-me" {
		t.Fatalf("expected u-me, got %q", user.ID)
	}
	if me, _, _ := api.counts(); me != 2 {
		t.Fatalf("expected two profile calls, got %d", me)
	}
	if time.Since(started) < 10*time.Millisecond {
		t.Fatalf("expected retry to wait for the delay")
	}
	if saved, ok, _ := store.Load(context.Background()); !ok || saved.Token != "tok" {
		t.Fatalf("expected persisted session, got %+v", saved)
	}
	if len(subs.list) != 2 {
		t.Fatalf("expected two streams, got %d", len(subs.list))
	}
	if snap := s.Inbox(); snap.Total != 2 {
		t.Fatalf("expected unread total 2, got %d", snap.Total)
	}
	_ = s.SignOut(context.Background())
}

func TestSignInFailsAfterSecondProfileError(t *testing.T) {
	api := &fakeAPI{meErrs: []error{errors.New("a"), errors.New("b")}}
	s, subs, store, _ := newSession(api)
	_, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123")
	if !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected profile error, got %v", err)
	}
	if s.SignedIn() || len(subs.list) != 0 {
		t.Fatalf("expected no session to start")
	}
	if _, ok, _ := store.Load(context.Background()); ok {
		t.Fatalf("expected nothing persisted")
	}
}

func TestInvalidCredentialsAreAuthErrors(t *testing.T) {
	s, _, _, _ := newSession(&fakeAPI{})
	_, err := s.SignIn(context.Background(), "me@autoparc.fr", "wrong")
	if platform.KindOf(err) != platform.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestOpenChatPollsMarkRead(t *testing.T) {
	api := &fakeAPI{}
	s, _, _, _ := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	defer s.SignOut(context.Background())
	if err := s.OpenChat(context.Background(), "c1"); err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if got := s.Inbox().Total; got != 0 {
		t.Fatalf("expected server count adopted, got %d", got)
	}
	eventually(t, func() bool { _, reads, _ := api.counts(); return reads >= 3 }, "read polling")
	s.CloseChat()
	_, before, _ := api.counts()
	time.Sleep(20 * time.Millisecond)
	if _, after, _ := api.counts(); after > before+1 {
		t.Fatalf("expected polling to stop, went from %d to %d", before, after)
	}
}

func TestFailedSendRestoresDraft(t *testing.T) {
	api := &fakeAPI{sendErr: &platform.APIError{Status: 502, Message: "bad gateway"}}
	s, _, _, _ := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	defer s.SignOut(context.Background())
	if _, err := s.Send(context.Background(), "c2", "  Toujours dispo ?  "); err == nil {
		t.Fatalf("expected send error")
	}
	if got := s.Draft("c2"); got != "Toujours dispo ?" {
		t.Fatalf("expected restored draft, got %q", got)
	}
	if msgs := s.Messages("c2"); len(msgs) != 0 {
		t.Fatalf("expected no messages, got %+v", msgs)
	}
	if top := s.Inbox().Chats[0].ID; top != "c2" {
		t.Fatalf("expected c2 to stay on top, got %s", top)
	}
	if _, err := s.Send(context.Background(), "c2", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected empty message error, got %v", err)
	}
}

func TestRealtimeEventsReachInboxAndBadge(t *testing.T) {
	api := &fakeAPI{}
	s, subs, _, _ := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	defer s.SignOut(context.Background())
	chat, activity := subs.list[0], subs.list[1]
	msg := model.Change{Table: realtime.TableMessages, Type: string(realtime.Insert), Record: map[string]any{
		"id": "m1", "chat_id": "c2", "sender_id": "u-b", "text": "Salut", "created_at": time.Now(),
	}}
	chat.events <- msg
	chat.events <- msg
	activity.events <- model.Change{Table: realtime.TableNotifications, Type: string(realtime.Insert), Record: map[string]any{"id": "n2"}}
	activity.events <- model.Change{Table: realtime.TableTyping, Type: string(realtime.Broadcast), Record: map[string]any{"chat_id": "c2", "user_id": "u-b"}}

	eventually(t, func() bool { return s.Inbox().Total == 3 }, "message counted once")
	eventually(t, func() bool { return s.UnreadNotifications() == 2 }, "notification counted")
	eventually(t, func() bool { return s.PeerTyping("c2") }, "typing indicator")
}

func TestSignOutTearsEverythingDown(t *testing.T) {
	api := &fakeAPI{}
	s, subs, store, c := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := s.OpenChat(context.Background(), "c1"); err != nil {
		t.Fatalf("open chat: %v", err)
	}
	subs.list[1].events <- model.Change{Table: realtime.TableTyping, Type: string(realtime.Broadcast), Record: map[string]any{"chat_id": "c1", "user_id": "u-a"}}
	eventually(t, func() bool { return s.ActiveTimers() == 2 }, "poll and typing timers running")

	api.signOutGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.SignOut(context.Background()) }()
	eventually(t, func() bool { return s.signOut.Held("sign-out") }, "sign-out started")
	if err := s.SignOut(context.Background()); !errors.Is(err, ErrSignOutInProgress) {
		t.Fatalf("expected in-progress error, got %v", err)
	}
	close(api.signOutGate)
	if err := <-done; err != nil {
		t.Fatalf("sign out: %v", err)
	}

	for i, st := range subs.list {
		if !st.isClosed() {
			t.Fatalf("expected stream %d closed", i)
		}
	}
	if n := s.ActiveTimers(); n != 0 {
		t.Fatalf("expected no timers, got %d", n)
	}
	if _, _, outs := api.counts(); outs != 1 {
		t.Fatalf("expected one server sign-out, got %d", outs)
	}
	if _, ok := c.User("u-me"); ok || len(c.Chats()) != 0 {
		t.Fatalf("expected cache cleared")
	}
	if store.cleared != 1 {
		t.Fatalf("expected persisted state cleared once, got %d", store.cleared)
	}
	if s.SignedIn() {
		t.Fatalf("expected signed out")
	}
	_, reads, _ := api.counts()
	time.Sleep(20 * time.Millisecond)
	if _, after, _ := api.counts(); after != reads {
		t.Fatalf("expected no read polling after sign-out")
	}
}

func TestRestoreResumesPersistedSession(t *testing.T) {
	api := &fakeAPI{}
	s, _, store, _ := newSession(api)
	_ = store.Save(context.Background(), persist.Saved{Token: "tok", UserID: "u-me", ExpiresAt: time.Now().Add(time.Hour)})
	user, ok, err := s.Restore(context.Background())
	if err != nil || !ok || user.ID != "u-me" {
		t.Fatalf("expected restored session, got %+v %v %v", user, ok, err)
	}
	defer s.SignOut(context.Background())

	expired := &memStore{saved: &persist.Saved{Token: "old", ExpiresAt: time.Now().Add(-time.Minute)}}
	s2 := New(&fakeAPI{}, nil, expired, nil, nil, fastConfig())
	if _, ok, err := s2.Restore(context.Background()); ok || err != nil {
		t.Fatalf("expected expired session ignored, got ok=%v err=%v", ok, err)
	}
	if expired.cleared != 1 {
		t.Fatalf("expected expired session cleared")
	}
}

func TestOpenChatLoadsHistory(t *testing.T) {
	api := &fakeAPI{}
	s, subs, _, _ := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	defer s.SignOut(context.Background())
	if err := s.OpenChat(context.Background(), "c1"); err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if msgs := s.Messages("c1"); len(msgs) != 1 || msgs[0].ID != "h1" {
		t.Fatalf("expected loaded history, got %+v", msgs)
	}
	subs.at(0).events <- model.Change{Table: realtime.TableMessages, Type: string(realtime.Insert), Record: map[string]any{
		"id": "h1", "chat_id": "c1", "sender_id": "u-a", "text": "Toujours en vente ?", "created_at": time.UnixMilli(1),
	}}
	subs.at(0).events <- model.Change{Table: realtime.TableMessages, Type: string(realtime.Insert), Record: map[string]any{
		"id": "m2", "chat_id": "c2", "sender_id": "u-b", "text": "Merci", "created_at": time.Now(),
	}}
	eventually(t, func() bool { return s.Inbox().Total == 1 }, "later message counted")
	if msgs := s.Messages("c1"); len(msgs) != 1 {
		t.Fatalf("expected redelivered history ignored, got %+v", msgs)
	}
}

func TestSignOutWaitsForReadPoll(t *testing.T) {
	api := &fakeAPI{}
	s, _, _, c := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := s.OpenChat(context.Background(), "c1"); err != nil {
		t.Fatalf("open chat: %v", err)
	}
	gate := make(chan struct{})
	<-api.holdReads(gate)

	done := make(chan error, 1)
	go func() { done <- s.SignOut(context.Background()) }()
	select {
	case err := <-done:
		t.Fatalf("expected sign-out to wait for the read poll, got %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	if err := s.OpenChat(context.Background(), "c2"); !errors.Is(err, ErrSignOutInProgress) {
		t.Fatalf("expected in-progress error, got %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if chats := c.Chats(); len(chats) != 0 {
		t.Fatalf("expected cache cleared, got %+v", chats)
	}
}

func TestSendFinishingAfterSignOutLeavesCacheEmpty(t *testing.T) {
	api := &fakeAPI{sendGate: make(chan struct{})}
	s, _, _, c := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	sent := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "c2", "Je passe demain")
		sent <- err
	}()
	eventually(t, func() bool { return len(s.Messages("c2")) == 1 }, "pending message shown")
	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	close(api.sendGate)
	if err := <-sent; err != nil {
		t.Fatalf("send: %v", err)
	}
	if chats := c.Chats(); len(chats) != 0 {
		t.Fatalf("expected no chats cached after sign-out, got %+v", chats)
	}
}

func TestEndedStreamIsResubscribedAndReloaded(t *testing.T) {
	api := &fakeAPI{}
	s, subs, _, _ := newSession(api)
	if _, err := s.SignIn(context.Background(), "me@autoparc.fr", "secret123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	first := subs.at(0)
	close(first.events)
	eventually(t, func() bool { return subs.count() == 3 }, "chat stream resubscribed")
	eventually(t, func() bool { return api.loads() == 2 }, "chats reloaded")
	if !first.isClosed() {
		t.Fatalf("expected ended stream closed")
	}

	subs.at(2).events <- model.Change{Table: realtime.TableMessages, Type: string(realtime.Insert), Record: map[string]any{
		"id": "m1", "chat_id": "c2", "sender_id": "u-b", "text": "Encore la ?", "created_at": time.Now(),
	}}
	eventually(t, func() bool { return s.Inbox().Total == 3 }, "event on new stream applied")

	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	for i := 0; i < subs.count(); i++ {
		if !subs.at(i).isClosed() {
			t.Fatalf("expected stream %d closed", i)
		}
	}
}
