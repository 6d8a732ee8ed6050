package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "autoparc/internal/domain/chat"
)

type readKey struct {
	chat domainchat.ID
	user string
}

// ChatRepository keeps chats, their messages and read markers in memory.
type ChatRepository struct {
	mu       sync.RWMutex
	chats    map[domainchat.ID]*domainchat.Chat
	messages map[domainchat.ID][]*domainchat.Message
	reads    map[readKey]time.Time
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		chats:    make(map[domainchat.ID]*domainchat.Chat),
		messages: make(map[domainchat.ID][]*domainchat.Message),
		reads:    make(map[readKey]time.Time),
	}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	copyChat := *c
	return &copyChat, nil
}

func (r *ChatRepository) FindByListing(ctx context.Context, listingID string, participants [2]string) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.chats {
		if c.ListingID == listingID && c.Participants == participants {
			copyChat := *c
			return &copyChat, nil
		}
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) Create(ctx context.Context, c *domainchat.Chat) error {
	if c == nil || c.ID == "" {
		return domainchat.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyChat := *c
	r.chats[c.ID] = &copyChat
	return nil
}

func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainchat.Chat, 0)
	for _, c := range r.chats {
		if c.HasParticipant(userID) {
			copyChat := *c
			out = append(out, &copyChat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].LastActivity(), out[j].LastActivity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ChatRepository) AddMessage(ctx context.Context, msg *domainchat.Message) error {
	if msg == nil || msg.ID == "" {
		return domainchat.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[msg.ChatID]
	if !ok {
		return domainchat.ErrNotFound
	}
	copyMsg := *msg
	list := r.messages[msg.ChatID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].CreatedAt.After(copyMsg.CreatedAt) })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = &copyMsg
	r.messages[msg.ChatID] = list
	c.RecordMessage(&copyMsg)
	return nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, chatID domainchat.ID, limit int, before time.Time) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.chats[chatID]; !ok {
		return nil, domainchat.ErrNotFound
	}
	list := r.messages[chatID]
	end := len(list)
	if !before.IsZero() {
		end = sort.Search(len(list), func(i int) bool { return !list[i].CreatedAt.Before(before) })
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	out := make([]*domainchat.Message, 0, end-start)
	for _, m := range list[start:end] {
		copyMsg := *m
		out = append(out, &copyMsg)
	}
	return out, nil
}

// MarkRead never moves a marker backwards.
func (r *ChatRepository) MarkRead(ctx context.Context, chatID domainchat.ID, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return domainchat.ErrNotFound
	}
	if !c.HasParticipant(userID) {
		return domainchat.ErrNotParticipant
	}
	key := readKey{chat: chatID, user: userID}
	if prev, ok := r.reads[key]; ok && prev.After(at) {
		return nil
	}
	r.reads[key] = at.UTC()
	return nil
}

func (r *ChatRepository) ReadMarker(ctx context.Context, chatID domainchat.ID, userID string) (domainchat.ReadMarker, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.reads[readKey{chat: chatID, user: userID}]
	if !ok {
		return domainchat.ReadMarker{ChatID: chatID, UserID: userID}, false, nil
	}
	return domainchat.ReadMarker{ChatID: chatID, UserID: userID, LastReadAt: at}, true, nil
}

func (r *ChatRepository) UnreadCount(ctx context.Context, chatID domainchat.ID, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.chats[chatID]; !ok {
		return 0, domainchat.ErrNotFound
	}
	marker := domainchat.ReadMarker{ChatID: chatID, UserID: userID, LastReadAt: r.reads[readKey{chat: chatID, user: userID}]}
	return domainchat.UnreadFor(r.messages[chatID], userID, marker), nil
}

var _ domainchat.Repository = (*ChatRepository)(nil)
