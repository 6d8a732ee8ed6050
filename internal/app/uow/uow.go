package uow

import (
	"context"

	domainchat "autoparc/internal/domain/chat"
	domainexpertise "autoparc/internal/domain/expertise"
	domainfavorites "autoparc/internal/domain/favorites"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
	domainuser "autoparc/internal/domain/user"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Users() domainuser.Repository
	Chats() domainchat.Repository
	Favorites() domainfavorites.Repository
	Notifications() domainnotification.Repository
	Reports() domainexpertise.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
