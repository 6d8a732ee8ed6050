package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainchat "autoparc/internal/domain/chat"
	domainlistings "autoparc/internal/domain/listings"
	"autoparc/internal/realtime"
)

const (
	startConversationKey = "chat.conversations.start"
	listChatsKey         = "chat.conversations.list"
	unreadSummaryKey     = "chat.unread.summary"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrChatRequired    = errors.New("chat id is required")
	ErrListingRequired = errors.New("listing id is required")
)

// StartConversationCommand returns the chat between the buyer and the
// listing's seller, creating it on first contact.
type StartConversationCommand struct {
	ListingID string
	BuyerID   string
}

func (c StartConversationCommand) Key() string { return startConversationKey }

func (c StartConversationCommand) Validate() error {
	if strings.TrimSpace(c.BuyerID) == "" {
		return ErrUserRequired
	}
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingRequired
	}
	return nil
}

type StartConversationHandler struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *StartConversationHandler) Handle(ctx context.Context, cmd StartConversationCommand) (*dto.Chat, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	sellerID := string(listing.SellerID)
	if sellerID == cmd.BuyerID {
		return nil, domainchat.ErrSelfConversation
	}
	participants, err := domainchat.NormalizeParticipants([]string{cmd.BuyerID, sellerID})
	if err != nil {
		return nil, err
	}

	existing, err := unit.Chats().FindByListing(ctx, cmd.ListingID, participants)
	switch {
	case err == nil:
		unread, err := unit.Chats().UnreadCount(ctx, existing.ID, cmd.BuyerID)
		if err != nil {
			return nil, err
		}
		result := dto.MapChat(existing, unread)
		return &result, nil
	case !errors.Is(err, domainchat.ErrNotFound):
		return nil, err
	}

	conversation, err := domainchat.NewChat(domainchat.CreateParams{
		ID:           domainchat.ID(uuid.NewString()),
		ListingID:    cmd.ListingID,
		Participants: participants[:],
		Now:          handlersupport.Now(h.Now),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Chats().Create(ctx, conversation); err != nil {
		return nil, err
	}
	realtime.Enqueue(ctx, realtime.Event{
		Table:  realtime.TableChats,
		Type:   realtime.Insert,
		Record: dto.ChatRecord(conversation),
		At:     conversation.CreatedAt,
	})
	if h.Logger != nil {
		h.Logger.Info("conversation started", "chat_id", conversation.ID, "listing_id", cmd.ListingID, "buyer_id", cmd.BuyerID)
	}
	result := dto.MapChat(conversation, 0)
	return &result, nil
}

type ListChatsQuery struct {
	UserID string
}

func (q ListChatsQuery) Key() string { return listChatsKey }

type ListChatsHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle returns the user's chats, most recent first, with unread counts.
func (h *ListChatsHandler) Handle(ctx context.Context, q ListChatsQuery) (dto.ChatList, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return dto.ChatList{}, ErrUserRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ChatList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	chats, err := unit.Chats().ListForUser(execCtx, q.UserID)
	if err != nil {
		return dto.ChatList{}, err
	}
	out := dto.ChatList{Items: make([]dto.Chat, 0, len(chats))}
	for _, c := range chats {
		unread, err := unit.Chats().UnreadCount(execCtx, c.ID, q.UserID)
		if err != nil {
			return dto.ChatList{}, err
		}
		out.Items = append(out.Items, dto.MapChat(c, unread))
		out.UnreadTotal += unread
	}
	return out, nil
}

type UnreadSummaryQuery struct {
	UserID string
}

func (q UnreadSummaryQuery) Key() string { return unreadSummaryKey }

type UnreadSummaryHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *UnreadSummaryHandler) Handle(ctx context.Context, q UnreadSummaryQuery) (dto.UnreadSummary, error) {
	list, err := (&ListChatsHandler{UoWFactory: h.UoWFactory}).Handle(ctx, ListChatsQuery{UserID: q.UserID})
	if err != nil {
		return dto.UnreadSummary{}, err
	}
	summary := dto.UnreadSummary{Chats: make(map[string]int, len(list.Items))}
	for _, c := range list.Items {
		summary.Chats[c.ID] = c.UnreadCount
		summary.Total += c.UnreadCount
	}
	return summary, nil
}

// loadParticipantChat returns ErrNotParticipant for users outside the chat.
func loadParticipantChat(ctx context.Context, repo domainchat.Repository, chatID, userID string) (*domainchat.Chat, error) {
	c, err := repo.ByID(ctx, domainchat.ID(chatID))
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, domainchat.ErrNotParticipant
	}
	return c, nil
}

func requireChatUser(chatID, userID string) error {
	if strings.TrimSpace(chatID) == "" {
		return ErrChatRequired
	}
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	return nil
}

var (
	_ commands.Handler[StartConversationCommand, *dto.Chat]  = (*StartConversationHandler)(nil)
	_ queries.Handler[ListChatsQuery, dto.ChatList]          = (*ListChatsHandler)(nil)
	_ queries.Handler[UnreadSummaryQuery, dto.UnreadSummary] = (*UnreadSummaryHandler)(nil)
)
