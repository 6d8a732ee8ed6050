// Package registry registers every command and query handler on the buses
// and wraps them with the middleware chain.
package registry

import (
	"log/slog"
	"time"

	"autoparc/internal/app/commands"
	chatapp "autoparc/internal/app/handlers/chat"
	expertiseapp "autoparc/internal/app/handlers/expertise"
	favoritesapp "autoparc/internal/app/handlers/favorites"
	listingapp "autoparc/internal/app/handlers/listings"
	notificationapp "autoparc/internal/app/handlers/notifications"
	handlersupport "autoparc/internal/app/handlers/support"
	userapp "autoparc/internal/app/handlers/users"
	"autoparc/internal/app/middleware"
	"autoparc/internal/app/outbox"
	"autoparc/internal/app/policies"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	"autoparc/internal/realtime"
)

type Deps struct {
	Logger      *slog.Logger
	UoW         uow.UoWFactory
	Idempotency middleware.IdempotencyStore
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Publisher   realtime.Publisher
	Images      policies.ObjectStore
	Reports     policies.ObjectStore
	Renderer    policies.ReportRenderer
	Now         func() time.Time
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Build returns the decorated buses. Middlewares run outermost first:
// logging, validation, authorization, idempotency, realtime publishing,
// transaction, outbox flush.
func Build(deps Deps) Buses {
	logger := deps.Logger
	now := deps.Now
	events := listingapp.Events{Outbox: deps.Outbox, Encoder: deps.Encoder}
	notifier := handlersupport.Notifier{Logger: logger, Now: now}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, listingapp.CreateListingCommand{}.Key(),
		&listingapp.CreateListingHandler{Logger: logger, Events: events, Now: now})
	commands.RegisterHandler(commandBus, listingapp.UpdateListingCommand{}.Key(),
		&listingapp.UpdateListingHandler{Logger: logger, Events: events, Now: now})
	boost := &listingapp.BoostListingHandler{Logger: logger, Events: events, Now: now}
	commands.RegisterHandler(commandBus, listingapp.BoostListingCommand{Boost: true}.Key(), boost)
	commands.RegisterHandler(commandBus, listingapp.BoostListingCommand{Boost: false}.Key(), boost)
	commands.RegisterHandler(commandBus, listingapp.DeleteListingCommand{}.Key(),
		&listingapp.DeleteListingHandler{Logger: logger, Events: events, Now: now})
	if deps.Images != nil {
		commands.RegisterHandler(commandBus, listingapp.UploadListingImageCommand{}.Key(),
			&listingapp.UploadListingImageHandler{Logger: logger, Store: deps.Images, Events: events, Now: now})
	}
	commands.RegisterHandler(commandBus, listingapp.RemoveListingImageCommand{}.Key(),
		&listingapp.RemoveListingImageHandler{Logger: logger, Store: deps.Images, Events: events, Now: now})

	commands.RegisterHandler(commandBus, chatapp.StartConversationCommand{}.Key(),
		&chatapp.StartConversationHandler{Logger: logger, Now: now})
	commands.RegisterHandler(commandBus, chatapp.SendMessageCommand{}.Key(),
		&chatapp.SendMessageHandler{Logger: logger, Notifier: notifier, Now: now})
	commands.RegisterHandler(commandBus, chatapp.MarkReadCommand{}.Key(),
		&chatapp.MarkReadHandler{Logger: logger, Now: now})
	commands.RegisterHandler(commandBus, chatapp.TypingCommand{}.Key(),
		&chatapp.TypingHandler{Now: now})

	commands.RegisterHandler(commandBus, favoritesapp.AddFavoriteCommand{}.Key(),
		&favoritesapp.AddFavoriteHandler{Logger: logger, Notifier: notifier, Now: now})
	commands.RegisterHandler(commandBus, favoritesapp.RemoveFavoriteCommand{}.Key(),
		&favoritesapp.RemoveFavoriteHandler{Logger: logger, Now: now})

	commands.RegisterHandler(commandBus, notificationapp.MarkReadCommand{}.Key(),
		&notificationapp.MarkReadHandler{Logger: logger, Now: now})
	commands.RegisterHandler(commandBus, notificationapp.MarkAllReadCommand{}.Key(),
		&notificationapp.MarkAllReadHandler{Logger: logger, Now: now})

	commands.RegisterHandler(commandBus, expertiseapp.SubmitReportCommand{}.Key(),
		&expertiseapp.SubmitReportHandler{
			Logger:   logger,
			Renderer: deps.Renderer,
			Store:    deps.Reports,
			Notifier: notifier,
			Now:      now,
		})

	commands.RegisterHandler(commandBus, userapp.UpdateProfileCommand{}.Key(),
		&userapp.UpdateProfileHandler{Logger: logger, Now: now})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, listingapp.SearchCatalogQuery{}.Key(), &listingapp.SearchCatalogHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, listingapp.GetListingQuery{}.Key(), &listingapp.GetListingHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, listingapp.SellerListingsQuery{}.Key(), &listingapp.SellerListingsHandler{UoWFactory: deps.UoW, Logger: logger})
	queries.RegisterHandler(queryBus, chatapp.ListChatsQuery{}.Key(), &chatapp.ListChatsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, chatapp.ListMessagesQuery{}.Key(), &chatapp.ListMessagesHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, chatapp.UnreadSummaryQuery{}.Key(), &chatapp.UnreadSummaryHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, favoritesapp.ListFavoritesQuery{}.Key(), &favoritesapp.ListFavoritesHandler{UoWFactory: deps.UoW, Logger: logger})
	queries.RegisterHandler(queryBus, favoritesapp.FavoriteStatusQuery{}.Key(), &favoritesapp.FavoriteStatusHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, notificationapp.ListNotificationsQuery{}.Key(), &notificationapp.ListNotificationsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, notificationapp.UnreadCountQuery{}.Key(), &notificationapp.UnreadCountHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, expertiseapp.GetReportQuery{}.Key(), &expertiseapp.GetReportHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, expertiseapp.ListingReportsQuery{}.Key(), &expertiseapp.ListingReportsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, expertiseapp.MechanicDashboardQuery{}.Key(), &expertiseapp.MechanicDashboardHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, userapp.GetProfileQuery{}.Key(), &userapp.GetProfileHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, userapp.ListMechanicsQuery{}.Key(), &userapp.ListMechanicsHandler{UoWFactory: deps.UoW})

	var idempotency middleware.CommandMiddleware
	if deps.Idempotency != nil {
		idempotency = middleware.Idempotency(deps.Idempotency, now)
	}
	var publish middleware.CommandMiddleware
	if deps.Publisher != nil {
		publish = middleware.PublishChanges(deps.Publisher, func(err error) {
			if logger != nil {
				logger.Warn("realtime publish failed", "error", err)
			}
		})
	}
	var flush middleware.CommandMiddleware
	if deps.Outbox != nil {
		flush = middleware.OutboxFlush(deps.Outbox)
	}

	return Buses{
		Commands: middleware.ChainCommands(
			commandBus,
			middleware.Logging(logger),
			middleware.Validation(middleware.SelfValidator{}),
			middleware.Authorization(middleware.RoleAuthorizer{}),
			idempotency,
			publish,
			middleware.Transaction(deps.UoW, nil),
			flush,
		),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryLogging(logger),
		),
	}
}
