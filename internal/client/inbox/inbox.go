// Package inbox reduces chat events into the signed-in user's chat list and
// unread counts. Every change goes through one mutex, so the total is never
// observed out of step with the per-chat counts.
package inbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"autoparc/internal/client/model"
	"autoparc/internal/realtime"
)

// Snapshot is a consistent copy of the inbox. Chats are most recent first
// and Total is the sum of their unread counts.
type Snapshot struct {
	Chats []model.Chat
	Total int
}

// chatState is one chat. countedThrough is the last message time covered by
// the server's unread count at load; deliveries at or before it are not
// counted again.
type chatState struct {
	chat           model.Chat
	seen           map[string]struct{}
	messages       []model.Message
	draft          string
	countedThrough int64
}

type Inbox struct {
	userID   string
	logger   *slog.Logger
	onChange func(Snapshot)

	mu    sync.Mutex
	order []*chatState
	index map[string]*chatState
	total int
}

// New creates an inbox for userID. onChange, when set, receives a snapshot
// after every change that altered state.
func New(userID string, logger *slog.Logger, onChange func(Snapshot)) *Inbox {
	return &Inbox{
		userID:   userID,
		logger:   logger,
		onChange: onChange,
		index:    make(map[string]*chatState),
	}
}

func (b *Inbox) UserID() string { return b.userID }

// Load replaces the chat list and unread counts with the server's. Known
// chats keep their messages, drafts and delivered ids, so a reload after a
// reconnect does not count a message twice.
func (b *Inbox) Load(chats []model.Chat) {
	b.mu.Lock()
	order := make([]*chatState, 0, len(chats))
	index := make(map[string]*chatState, len(chats))
	for _, c := range chats {
		st, ok := b.index[c.ID]
		if !ok {
			st = &chatState{seen: make(map[string]struct{})}
		}
		st.chat = c
		st.chat.Messages = nil
		st.countedThrough = c.LastMessageAt
		order = append(order, st)
		index[c.ID] = st
	}
	b.order, b.index = order, index
	b.recount()
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
}

// LoadMessages seeds a chat's history, oldest first, so later deliveries of
// the same messages are recognized. Known messages missing from the page,
// such as pending sends, are kept after it.
func (b *Inbox) LoadMessages(chatID string, msgs []model.Message) {
	b.mu.Lock()
	st := b.ensure(chatID)
	merged := make([]model.Message, 0, len(msgs)+len(st.messages))
	loaded := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		loaded[m.ID] = struct{}{}
		st.seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range st.messages {
		if _, ok := loaded[m.ID]; !ok {
			merged = append(merged, m)
		}
	}
	st.messages = merged
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
}

// Messages returns the known messages of a chat, oldest first.
func (b *Inbox) Messages(chatID string) []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.index[chatID]; ok {
		return append([]model.Message(nil), st.messages...)
	}
	return nil
}

// Apply reduces one realtime change. It reports whether state changed.
func (b *Inbox) Apply(ch model.Change) bool {
	switch ch.Table {
	case realtime.TableMessages:
		if ch.Type != string(realtime.Insert) {
			return false
		}
		msg, err := model.MessageFromRecord(ch.Record)
		if err != nil {
			b.warn("message record skipped", err)
			return false
		}
		return b.Receive(msg)
	case realtime.TableChats:
		c, err := model.ChatFromRecord(ch.Record)
		if err != nil {
			b.warn("chat record skipped", err)
			return false
		}
		return b.mergeChat(c)
	case realtime.TableChatReads:
		chatID, userID, unread, err := model.ReadFromRecord(ch.Record)
		if err != nil {
			b.warn("read record skipped", err)
			return false
		}
		if userID != b.userID {
			return false
		}
		return b.MarkRead(chatID, unread)
	}
	return false
}

// Receive records a delivered message. A message id is counted at most
// once, and never when the loaded server count already covers it. The
// user's own messages never count as unread. The chat moves to the top
// when the message becomes its preview.
func (b *Inbox) Receive(msg model.Message) bool {
	if msg.ID == "" || msg.ChatID == "" {
		return false
	}
	b.mu.Lock()
	st := b.ensure(msg.ChatID)
	if _, dup := st.seen[msg.ID]; dup {
		b.mu.Unlock()
		return false
	}
	st.seen[msg.ID] = struct{}{}
	msg.Pending = false
	if i := pendingIndex(st.messages, msg.ClientID); i >= 0 {
		st.messages[i] = msg
	} else {
		st.messages = append(st.messages, msg)
		if msg.SenderID != b.userID && msg.Timestamp > st.countedThrough {
			st.chat.UnreadCount++
		}
	}
	if b.preview(st, msg) {
		b.moveToTop(st)
	}
	b.recount()
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
	return true
}

// MarkRead adopts the server's count for chatID and reports whether it
// differed.
func (b *Inbox) MarkRead(chatID string, serverCount int) bool {
	if serverCount < 0 {
		serverCount = 0
	}
	b.mu.Lock()
	st, ok := b.index[chatID]
	if !ok || st.chat.UnreadCount == serverCount {
		b.mu.Unlock()
		return false
	}
	st.chat.UnreadCount = serverCount
	b.recount()
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
	return true
}

// BeginSend shows an outgoing message before the server confirms it. The
// chat moves to the top and its draft is cleared.
func (b *Inbox) BeginSend(chatID, clientID, text string, now time.Time) model.Message {
	msg := model.Message{
		ID:        clientID,
		ChatID:    chatID,
		SenderID:  b.userID,
		Text:      text,
		ClientID:  clientID,
		Timestamp: model.Millis(now),
		Pending:   true,
	}
	b.mu.Lock()
	st := b.ensure(chatID)
	st.messages = append(st.messages, msg)
	st.draft = ""
	b.preview(st, msg)
	b.moveToTop(st)
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
	return msg
}

// ConfirmSend swaps the pending message for the stored one.
func (b *Inbox) ConfirmSend(msg model.Message) {
	b.Receive(msg)
}

// FailSend drops the pending message and puts its text back in the draft.
// The chat keeps its position. It returns the restored text.
func (b *Inbox) FailSend(chatID, clientID string) string {
	b.mu.Lock()
	st, ok := b.index[chatID]
	if !ok {
		b.mu.Unlock()
		return ""
	}
	i := pendingIndex(st.messages, clientID)
	if i < 0 {
		b.mu.Unlock()
		return ""
	}
	text := st.messages[i].Text
	st.messages = append(st.messages[:i], st.messages[i+1:]...)
	st.draft = text
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
	return text
}

func (b *Inbox) Draft(chatID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.index[chatID]; ok {
		return st.draft
	}
	return ""
}

func (b *Inbox) SetDraft(chatID, text string) {
	b.mu.Lock()
	b.ensure(chatID).draft = text
	b.mu.Unlock()
}

func (b *Inbox) Has(chatID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.index[chatID]
	return ok
}

func (b *Inbox) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Run reduces events from every stream until ctx is done or all streams
// are closed. Order is kept per stream; streams are not ordered against
// each other.
func (b *Inbox) Run(ctx context.Context, streams ...<-chan model.Change) error {
	merged := make(chan model.Change)
	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s <-chan model.Change) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ch, ok := <-s:
					if !ok {
						return
					}
					select {
					case merged <- ch:
					case <-ctx.Done():
						return
					}
				}
			}
		}(s)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch, ok := <-merged:
			if !ok {
				return nil
			}
			b.Apply(ch)
		}
	}
}

// mergeChat takes chat metadata from the server. Unread counts are owned by
// message delivery and mark-read, so they are left alone.
func (b *Inbox) mergeChat(c model.Chat) bool {
	if c.ID == "" {
		return false
	}
	b.mu.Lock()
	st, known := b.index[c.ID]
	if !known {
		st = b.ensure(c.ID)
	}
	unread := st.chat.UnreadCount
	newer := c.LastMessageAt > st.chat.LastMessageAt
	if !newer && known {
		c.LastMessage = st.chat.LastMessage
		c.LastMessageAt = st.chat.LastMessageAt
		c.LastSenderID = st.chat.LastSenderID
	}
	c.UnreadCount = unread
	c.Messages = nil
	st.chat = c
	if newer {
		b.moveToTop(st)
	}
	snap := b.snapshot()
	b.mu.Unlock()
	b.notify(snap)
	return true
}

// ensure returns the state of chatID, creating a placeholder for chats
// first seen through a message.
func (b *Inbox) ensure(chatID string) *chatState {
	if st, ok := b.index[chatID]; ok {
		return st
	}
	st := &chatState{chat: model.Chat{ID: chatID}, seen: make(map[string]struct{})}
	b.index[chatID] = st
	b.order = append([]*chatState{st}, b.order...)
	return st
}

// preview makes msg the chat's last message unless a newer one is shown.
func (b *Inbox) preview(st *chatState, msg model.Message) bool {
	if msg.Timestamp < st.chat.LastMessageAt {
		return false
	}
	st.chat.LastMessage = msg.Text
	st.chat.LastMessageAt = msg.Timestamp
	st.chat.LastSenderID = msg.SenderID
	return true
}

func (b *Inbox) moveToTop(st *chatState) {
	for i, x := range b.order {
		if x == st {
			copy(b.order[1:i+1], b.order[:i])
			b.order[0] = st
			return
		}
	}
}

func (b *Inbox) recount() {
	total := 0
	for _, st := range b.order {
		total += st.chat.UnreadCount
	}
	b.total = total
}

func (b *Inbox) snapshot() Snapshot {
	out := Snapshot{Chats: make([]model.Chat, 0, len(b.order)), Total: b.total}
	for _, st := range b.order {
		out.Chats = append(out.Chats, st.chat)
	}
	return out
}

func (b *Inbox) notify(s Snapshot) {
	if b.onChange != nil {
		b.onChange(s)
	}
}

func (b *Inbox) warn(msg string, err error) {
	if b.logger != nil {
		b.logger.Warn(msg, "error", err)
	}
}

func pendingIndex(msgs []model.Message, clientID string) int {
	if clientID == "" {
		return -1
	}
	for i, m := range msgs {
		if m.Pending && m.ClientID == clientID {
			return i
		}
	}
	return -1
}
