package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"autoparc/internal/app/uow"
	domainchat "autoparc/internal/domain/chat"
	domainexpertise "autoparc/internal/domain/expertise"
	domainfavorites "autoparc/internal/domain/favorites"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
	domainuser "autoparc/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Chats, favorites and notifications live in other stores and are handed in
// as is; the session only covers the Mongo collections.
type Factory struct {
	DB *mongo.Database

	ListingsRepo      domainlistings.Repository
	UsersRepo         domainuser.Repository
	ReportsRepo       domainexpertise.Repository
	ChatsRepo         domainchat.Repository
	FavoritesRepo     domainfavorites.Repository
	NotificationsRepo domainnotification.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction. Read-only units skip the
// transaction and only pin the session.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	unit := &Unit{
		session:       session,
		listings:      f.ListingsRepo,
		users:         f.UsersRepo,
		reports:       f.ReportsRepo,
		chats:         f.ChatsRepo,
		favorites:     f.FavoritesRepo,
		notifications: f.NotificationsRepo,
	}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.inTxn = true
	return unit, nil
}

type Unit struct {
	session mongo.Session
	inTxn   bool

	listings      domainlistings.Repository
	users         domainuser.Repository
	reports       domainexpertise.Repository
	chats         domainchat.Repository
	favorites     domainfavorites.Repository
	notifications domainnotification.Repository
}

func (u *Unit) Listings() domainlistings.Repository          { return u.listings }
func (u *Unit) Users() domainuser.Repository                 { return u.users }
func (u *Unit) Reports() domainexpertise.Repository          { return u.reports }
func (u *Unit) Chats() domainchat.Repository                 { return u.chats }
func (u *Unit) Favorites() domainfavorites.Repository        { return u.favorites }
func (u *Unit) Notifications() domainnotification.Repository { return u.notifications }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.ContextInjector = (*Unit)(nil)
)
