package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainuser "autoparc/internal/domain/user"
)

const (
	getProfileKey    = "users.profile.get"
	updateProfileKey = "users.profile.update"
	listMechanicsKey = "users.mechanics"

	defaultMechanicsLimit = 50
)

var ErrUserRequired = errors.New("user id is required")

// GetProfileQuery returns the full profile to its owner and the public one
// to anybody else.
type GetProfileQuery struct {
	UserID   string
	ViewerID string
}

func (q GetProfileQuery) Key() string { return getProfileKey }

type GetProfileHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*dto.UserProfile, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, ErrUserRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	user, err := unit.Users().ByID(execCtx, domainuser.ID(q.UserID))
	if err != nil {
		return nil, err
	}
	var profile dto.UserProfile
	if q.ViewerID == q.UserID {
		profile = dto.MapUserProfile(user)
	} else {
		profile = dto.MapPublicProfile(user)
	}
	return &profile, nil
}

type UpdateProfileCommand struct {
	UserID  string
	Profile domainuser.Profile
}

func (c UpdateProfileCommand) Key() string { return updateProfileKey }

func (c UpdateProfileCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserRequired
	}
	return nil
}

type UpdateProfileHandler struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*dto.UserProfile, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	user, err := unit.Users().ByID(ctx, domainuser.ID(cmd.UserID))
	if err != nil {
		return nil, err
	}
	if err := user.UpdateProfile(cmd.Profile, handlersupport.Now(h.Now)); err != nil {
		return nil, err
	}
	if err := unit.Users().Save(ctx, user); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("profile updated", "user_id", user.ID)
	}
	profile := dto.MapUserProfile(user)
	return &profile, nil
}

type ListMechanicsQuery struct {
	Limit int
}

func (q ListMechanicsQuery) Key() string { return listMechanicsKey }

type ListMechanicsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListMechanicsHandler) Handle(ctx context.Context, q ListMechanicsQuery) ([]dto.UserProfile, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultMechanicsLimit
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	mechanics, err := unit.Users().ListByRole(execCtx, domainuser.RoleMechanic, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserProfile, 0, len(mechanics))
	for _, m := range mechanics {
		out = append(out, dto.MapPublicProfile(m))
	}
	return out, nil
}

var (
	_ queries.Handler[GetProfileQuery, *dto.UserProfile]       = (*GetProfileHandler)(nil)
	_ commands.Handler[UpdateProfileCommand, *dto.UserProfile] = (*UpdateProfileHandler)(nil)
	_ queries.Handler[ListMechanicsQuery, []dto.UserProfile]   = (*ListMechanicsHandler)(nil)
)
