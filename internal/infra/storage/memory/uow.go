package memory

import (
	"context"
	"errors"

	"autoparc/internal/app/uow"
	domainchat "autoparc/internal/domain/chat"
	domainexpertise "autoparc/internal/domain/expertise"
	domainfavorites "autoparc/internal/domain/favorites"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
	domainuser "autoparc/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ListingsRepo      domainlistings.Repository
	UsersRepo         domainuser.Repository
	ChatsRepo         domainchat.Repository
	FavoritesRepo     domainfavorites.Repository
	NotificationsRepo domainnotification.Repository
	ReportsRepo       domainexpertise.Repository
}

// NewFactory builds a factory over fresh repositories.
func NewFactory() Factory {
	return Factory{
		ListingsRepo:      NewListingRepository(),
		UsersRepo:         NewUserRepository(),
		ChatsRepo:         NewChatRepository(),
		FavoritesRepo:     NewFavoriteRepository(),
		NotificationsRepo: NewNotificationRepository(),
		ReportsRepo:       NewReportRepository(),
	}
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. No isolation is provided
// but the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.UsersRepo == nil || f.ChatsRepo == nil ||
		f.FavoritesRepo == nil || f.NotificationsRepo == nil || f.ReportsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{factory: f}, nil
}

// Unit is a uow.UnitOfWork backed by the factory's stores.
type Unit struct {
	factory Factory
}

func (u *Unit) Listings() domainlistings.Repository          { return u.factory.ListingsRepo }
func (u *Unit) Users() domainuser.Repository                 { return u.factory.UsersRepo }
func (u *Unit) Chats() domainchat.Repository                 { return u.factory.ChatsRepo }
func (u *Unit) Favorites() domainfavorites.Repository        { return u.factory.FavoritesRepo }
func (u *Unit) Notifications() domainnotification.Repository { return u.factory.NotificationsRepo }
func (u *Unit) Reports() domainexpertise.Repository          { return u.factory.ReportsRepo }

func (u *Unit) Commit(ctx context.Context) error   { return nil }
func (u *Unit) Rollback(ctx context.Context) error { return nil }

var _ uow.UoWFactory = Factory{}
