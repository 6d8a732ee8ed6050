// Package session owns the signed-in user's client state: the realtime
// subscriptions feeding the inbox, the favorites set, the open-chat read
// polling and the typing indicators. Sign-out tears all of it down.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/client/cache"
	"autoparc/internal/client/favorites"
	"autoparc/internal/client/inbox"
	"autoparc/internal/client/keylock"
	"autoparc/internal/client/model"
	"autoparc/internal/client/persist"
	"autoparc/internal/client/platform"
	"autoparc/internal/realtime"
)

var (
	ErrNotSignedIn        = errors.New("session: not signed in")
	ErrSignOutInProgress  = errors.New("session: sign-out already in progress")
	ErrEmptyMessage       = errors.New("session: message is empty")
	ErrProfileUnavailable = errors.New("session: profile could not be loaded")
	errAlreadySignedIn    = errors.New("session: already signed in")
)

var (
	chatStreamFilters     = []string{realtime.TableMessages, realtime.TableChats, realtime.TableChatReads}
	activityStreamFilters = []string{realtime.TableNotifications, realtime.TableFavorites, realtime.TableTyping}
)

// API is the part of the platform client a session uses.
type API interface {
	SignIn(ctx context.Context, email, password string) (platform.Auth, error)
	SignOut(ctx context.Context) error
	SetToken(token string)
	Me(ctx context.Context) (model.User, error)
	Chats(ctx context.Context) ([]model.Chat, int, error)
	Favorites(ctx context.Context) ([]string, error)
	Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, int, error)
	MarkRead(ctx context.Context, chatID string) (int, error)
	Messages(ctx context.Context, chatID, before string, limit int) ([]model.Message, string, error)
	SendMessage(ctx context.Context, chatID, text, clientID string) (model.Message, error)
	Typing(ctx context.Context, chatID string) error
	favorites.Backend
}

type Stream interface {
	Events() <-chan model.Change
	Close() error
}

// Subscriber opens one realtime stream for filters.
type Subscriber func(ctx context.Context, filters ...string) (Stream, error)

type Persister interface {
	Save(ctx context.Context, saved persist.Saved) error
	Load(ctx context.Context) (persist.Saved, bool, error)
	Clear(ctx context.Context) error
}

const (
	historyPage       = 50
	maxReconnectDelay = 30 * time.Second
)

// Config holds the session timings. ProfileRetryDelay is waited once before
// the profile fetch is retried. ReconnectDelay is the first wait before an
// ended stream is resubscribed; it doubles up to 30s while attempts fail.
type Config struct {
	ProfileRetryDelay time.Duration
	ReadPollInterval  time.Duration
	TypingTimeout     time.Duration
	TypingThrottle    time.Duration
	ReconnectDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProfileRetryDelay <= 0 {
		c.ProfileRetryDelay = time.Second
	}
	if c.ReadPollInterval <= 0 {
		c.ReadPollInterval = 5 * time.Second
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = 3 * time.Second
	}
	if c.TypingThrottle <= 0 {
		c.TypingThrottle = 2 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	return c
}

type Session struct {
	api       API
	subscribe Subscriber
	cache     *cache.Store
	store     Persister
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	signOut keylock.Set

	// cacheMu orders chat snapshots against the sign-out clear. Only the
	// live generation may write chats to the cache.
	cacheMu sync.Mutex
	gens    uint64
	liveGen uint64

	mu         sync.Mutex
	user       *model.User
	inbox      *inbox.Inbox
	badge      *inbox.Badge
	favorites  *favorites.Toggler
	runCtx     context.Context
	cancel     context.CancelFunc
	ending     bool
	loops      sync.WaitGroup
	openChat   string
	stopPoll   chan struct{}
	typing     map[string]*time.Timer
	lastTyping map[string]time.Time
}

// feed is one realtime subscription: how its events are consumed and what
// to refetch after it is resubscribed.
type feed struct {
	filters []string
	consume func(ctx context.Context, events <-chan model.Change)
	reload  func(ctx context.Context)
}

func New(api API, subscribe Subscriber, store Persister, c *cache.Store, logger *slog.Logger, cfg Config) *Session {
	if c == nil {
		c = cache.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:       api,
		subscribe: subscribe,
		cache:     c,
		store:     store,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// SignIn authenticates, loads the profile and starts the session. The
// profile fetch is retried once after ProfileRetryDelay.
func (s *Session) SignIn(ctx context.Context, email, password string) (model.User, error) {
	if s.SignedIn() {
		return model.User{}, errAlreadySignedIn
	}
	auth, err := s.api.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return model.User{}, err
	}
	user, err := s.fetchProfile(ctx)
	if err != nil {
		_ = s.api.SignOut(context.WithoutCancel(ctx))
		return model.User{}, err
	}
	if s.store != nil {
		if err := s.store.Save(ctx, persist.Saved{Token: auth.Token, UserID: user.ID, ExpiresAt: auth.ExpiresAt}); err != nil {
			s.logger.Warn("session not persisted", "error", err)
		}
	}
	if err := s.start(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Restore resumes a persisted session. It reports false when there is
// nothing usable to resume.
func (s *Session) Restore(ctx context.Context) (model.User, bool, error) {
	if s.store == nil {
		return model.User{}, false, nil
	}
	saved, ok, err := s.store.Load(ctx)
	if err != nil || !ok {
		return model.User{}, false, err
	}
	if saved.Expired(s.now()) {
		return model.User{}, false, s.store.Clear(ctx)
	}
	s.api.SetToken(saved.Token)
	user, err := s.fetchProfile(ctx)
	if err != nil {
		s.api.SetToken("")
		if platform.KindOf(err) == platform.KindAuth || errors.Is(err, ErrProfileUnavailable) {
			_ = s.store.Clear(ctx)
		}
		return model.User{}, false, err
	}
	if err := s.start(ctx, user); err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}

func (s *Session) fetchProfile(ctx context.Context) (model.User, error) {
	user, err := s.api.Me(ctx)
	if err == nil {
		return user, nil
	}
	s.logger.Warn("profile fetch failed, retrying", "error", err)
	select {
	case <-time.After(s.cfg.ProfileRetryDelay):
	case <-ctx.Done():
		return model.User{}, ctx.Err()
	}
	user, err = s.api.Me(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	return user, nil
}

func (s *Session) start(ctx context.Context, user model.User) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	gen := s.beginGeneration()
	box := inbox.New(user.ID, s.logger, func(snap inbox.Snapshot) { s.publishChats(gen, snap.Chats) })
	badge := inbox.NewBadge()
	favs := favorites.NewToggler(s.api, s.logger)

	feeds := []feed{
		{
			filters: chatStreamFilters,
			consume: func(ctx context.Context, events <-chan model.Change) { _ = box.Run(ctx, events) },
			reload:  func(ctx context.Context) { s.loadChats(ctx, box) },
		},
		{
			filters: activityStreamFilters,
			consume: s.route,
			reload: func(ctx context.Context) {
				s.loadFavorites(ctx, favs)
				s.loadNotifications(ctx, badge)
			},
		},
	}
	for _, f := range feeds {
		f.reload(ctx)
	}

	var streams []Stream
	if s.subscribe != nil {
		for _, f := range feeds {
			st, err := s.subscribe(runCtx, f.filters...)
			if err != nil {
				for _, open := range streams {
					_ = open.Close()
				}
				cancel()
				s.endGeneration()
				return fmt.Errorf("session: subscribe %v: %w", f.filters, err)
			}
			streams = append(streams, st)
		}
	}

	s.mu.Lock()
	s.user = &user
	s.inbox = box
	s.badge = badge
	s.favorites = favs
	s.runCtx = runCtx
	s.cancel = cancel
	s.typing = make(map[string]*time.Timer)
	s.lastTyping = make(map[string]time.Time)
	s.loops.Add(len(streams))
	s.mu.Unlock()
	s.cache.SetUser(user)

	for i, st := range streams {
		go s.follow(runCtx, feeds[i], st)
	}
	s.logger.Info("session started", "user_id", user.ID)
	return nil
}

func (s *Session) loadChats(ctx context.Context, box *inbox.Inbox) {
	chats, _, err := s.api.Chats(ctx)
	if err != nil {
		s.logger.Warn("chats not loaded", "error", err)
		return
	}
	box.Load(chats)
}

func (s *Session) loadFavorites(ctx context.Context, favs *favorites.Toggler) {
	ids, err := s.api.Favorites(ctx)
	if err != nil {
		s.logger.Warn("favorites not loaded", "error", err)
		return
	}
	favs.Load(ids)
}

func (s *Session) loadNotifications(ctx context.Context, badge *inbox.Badge) {
	items, _, err := s.api.Notifications(ctx, false)
	if err != nil {
		s.logger.Warn("notifications not loaded", "error", err)
		return
	}
	badge.Load(items)
}

// follow consumes one stream until the session stops. A stream that ends
// while the session runs is resubscribed and the feed's state refetched,
// since changes sent while disconnected are never replayed. The current
// stream is closed on return.
func (s *Session) follow(ctx context.Context, f feed, st Stream) {
	defer s.loops.Done()
	for {
		f.consume(ctx, st.Events())
		if err := st.Close(); err != nil {
			s.logger.Debug("stream close failed", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("realtime stream ended, resubscribing", "filters", f.filters)
		next, ok := s.resubscribe(ctx, f.filters)
		if !ok {
			return
		}
		st = next
		f.reload(ctx)
	}
}

func (s *Session) resubscribe(ctx context.Context, filters []string) (Stream, bool) {
	delay := s.cfg.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}
		st, err := s.subscribe(ctx, filters...)
		if err == nil {
			return st, true
		}
		s.logger.Warn("resubscribe failed", "filters", filters, "retry_in", delay, "error", err)
		delay = min(delay*2, maxReconnectDelay)
	}
}

func (s *Session) beginGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gens++
	s.liveGen = s.gens
	return s.liveGen
}

// endGeneration clears cached chats and drops later writes from the
// generation that was live.
func (s *Session) endGeneration() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.liveGen = 0
	s.cache.Clear()
}

func (s *Session) publishChats(gen uint64, chats []model.Chat) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen == s.liveGen {
		s.cache.SetChats(chats)
	}
}

// route handles the activity stream.
func (s *Session) route(ctx context.Context, events <-chan model.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-events:
			if !ok {
				return
			}
			s.apply(ch)
		}
	}
}

func (s *Session) apply(ch model.Change) {
	s.mu.Lock()
	badge, favs := s.badge, s.favorites
	s.mu.Unlock()
	switch ch.Table {
	case realtime.TableNotifications:
		if badge != nil {
			badge.Apply(ch)
		}
	case realtime.TableFavorites:
		f, err := model.FavoriteFromRecord(ch.Record)
		if err != nil || favs == nil {
			return
		}
		favs.Observe(f.ListingID, ch.Type != string(realtime.Delete))
	case realtime.TableTyping:
		chatID, userID, err := model.TypingFromRecord(ch.Record)
		if err == nil {
			s.peerTyping(chatID, userID)
		}
	}
}

func (s *Session) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

func (s *Session) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

func (s *Session) Inbox() inbox.Snapshot {
	s.mu.Lock()
	box := s.inbox
	s.mu.Unlock()
	if box == nil {
		return inbox.Snapshot{}
	}
	return box.Snapshot()
}

func (s *Session) Messages(chatID string) []model.Message {
	s.mu.Lock()
	box := s.inbox
	s.mu.Unlock()
	if box == nil {
		return nil
	}
	return box.Messages(chatID)
}

func (s *Session) Draft(chatID string) string {
	s.mu.Lock()
	box := s.inbox
	s.mu.Unlock()
	if box == nil {
		return ""
	}
	return box.Draft(chatID)
}

func (s *Session) UnreadNotifications() int {
	s.mu.Lock()
	badge := s.badge
	s.mu.Unlock()
	if badge == nil {
		return 0
	}
	return badge.Count()
}

// OpenChat loads the latest history of chatID, marks it read now and keeps
// marking it while it stays open.
func (s *Session) OpenChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	if s.ending {
		s.mu.Unlock()
		return ErrSignOutInProgress
	}
	s.stopPollLocked()
	stop := make(chan struct{})
	s.openChat = chatID
	s.stopPoll = stop
	box, runCtx := s.inbox, s.runCtx
	s.loops.Add(1)
	s.mu.Unlock()

	if msgs, _, err := s.api.Messages(ctx, chatID, "", historyPage); err != nil {
		s.logger.Warn("history not loaded", "chat_id", chatID, "error", err)
	} else {
		box.LoadMessages(chatID, msgs)
	}
	s.markRead(ctx, chatID)
	go func() {
		defer s.loops.Done()
		ticker := time.NewTicker(s.cfg.ReadPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.markRead(runCtx, chatID)
			}
		}
	}()
	return nil
}

func (s *Session) CloseChat() {
	s.mu.Lock()
	s.stopPollLocked()
	s.openChat = ""
	s.mu.Unlock()
}

func (s *Session) stopPollLocked() {
	if s.stopPoll != nil {
		close(s.stopPoll)
		s.stopPoll = nil
	}
}

func (s *Session) markRead(ctx context.Context, chatID string) {
	s.mu.Lock()
	box := s.inbox
	s.mu.Unlock()
	if box == nil {
		return
	}
	n, err := s.api.MarkRead(ctx, chatID)
	if err != nil {
		s.logger.Warn("mark read failed", "chat_id", chatID, "error", err)
		return
	}
	box.MarkRead(chatID, n)
}

// Send shows the message immediately and posts it. On failure the message
// is removed and its text restored as the chat's draft.
func (s *Session) Send(ctx context.Context, chatID, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, ErrEmptyMessage
	}
	s.mu.Lock()
	box := s.inbox
	s.mu.Unlock()
	if box == nil {
		return model.Message{}, ErrNotSignedIn
	}
	clientID := uuid.NewString()
	box.BeginSend(chatID, clientID, text, s.now())
	msg, err := s.api.SendMessage(ctx, chatID, text, clientID)
	if err != nil {
		box.FailSend(chatID, clientID)
		s.logger.Warn("message not sent", "chat_id", chatID, "error", err)
		return model.Message{}, err
	}
	box.ConfirmSend(msg)
	return msg, nil
}

func (s *Session) ToggleFavorite(ctx context.Context, listingID string) (bool, error) {
	s.mu.Lock()
	favs := s.favorites
	s.mu.Unlock()
	if favs == nil {
		return false, ErrNotSignedIn
	}
	return favs.Toggle(ctx, listingID)
}

func (s *Session) IsFavorite(listingID string) bool {
	s.mu.Lock()
	favs := s.favorites
	s.mu.Unlock()
	return favs != nil && favs.IsFavorite(listingID)
}

// NotifyTyping tells the other participant the user is composing, at most
// once per TypingThrottle.
func (s *Session) NotifyTyping(ctx context.Context, chatID string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	now := s.now()
	if last, ok := s.lastTyping[chatID]; ok && now.Sub(last) < s.cfg.TypingThrottle {
		s.mu.Unlock()
		return nil
	}
	s.lastTyping[chatID] = now
	s.mu.Unlock()
	return s.api.Typing(ctx, chatID)
}

// PeerTyping reports whether the other participant of chatID is typing.
func (s *Session) PeerTyping(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.typing[chatID]
	return ok
}

func (s *Session) peerTyping(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || userID == s.user.ID || chatID == "" {
		return
	}
	if t, ok := s.typing[chatID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.TypingTimeout, func() {
		s.mu.Lock()
		if s.typing[chatID] == timer {
			delete(s.typing, chatID)
		}
		s.mu.Unlock()
	})
	s.typing[chatID] = timer
}

// ActiveTimers counts the running read poll and typing timers.
func (s *Session) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.typing)
	if s.stopPoll != nil {
		n++
	}
	return n
}

// SignOut stops every subscription and timer and waits for the loops
// feeding state to exit. It then revokes the server session and clears
// cached and persisted state; requests still in flight no longer reach
// the cache. A second call while one is
// running returns ErrSignOutInProgress.
func (s *Session) SignOut(ctx context.Context) error {
	release, ok := s.signOut.TryAcquire("sign-out")
	if !ok {
		return ErrSignOutInProgress
	}
	defer release()

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	userID := s.user.ID
	cancel := s.cancel
	s.ending = true
	s.stopPollLocked()
	s.openChat = ""
	for id, t := range s.typing {
		t.Stop()
		delete(s.typing, id)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.loops.Wait()

	if err := s.api.SignOut(ctx); err != nil {
		s.logger.Warn("server sign-out failed", "error", err)
	}
	s.endGeneration()
	var errs []error
	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.user = nil
	s.inbox = nil
	s.badge = nil
	s.favorites = nil
	s.runCtx = nil
	s.cancel = nil
	s.ending = false
	s.typing = nil
	s.lastTyping = nil
	s.mu.Unlock()
	s.logger.Info("session ended", "user_id", userID)
	return errors.Join(errs...)
}
