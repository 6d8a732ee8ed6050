package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	chatapp "autoparc/internal/app/handlers/chat"
	expertiseapp "autoparc/internal/app/handlers/expertise"
	favoritesapp "autoparc/internal/app/handlers/favorites"
	listingapp "autoparc/internal/app/handlers/listings"
	notificationapp "autoparc/internal/app/handlers/notifications"
	userapp "autoparc/internal/app/handlers/users"
	"autoparc/internal/app/middleware"
	"autoparc/internal/app/policies"
	authsvc "autoparc/internal/app/services/auth"
	domainchat "autoparc/internal/domain/chat"
	domainexpertise "autoparc/internal/domain/expertise"
	domainfavorites "autoparc/internal/domain/favorites"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
	domainuser "autoparc/internal/domain/user"
)

const storageRejectedMessage = "upload refused by storage: check the bucket policy allows writes for this service"

var badRequestErrors = []error{
	chatapp.ErrUserRequired,
	chatapp.ErrChatRequired,
	chatapp.ErrListingRequired,
	expertiseapp.ErrMechanicRequired,
	expertiseapp.ErrListingRequired,
	expertiseapp.ErrReportRequired,
	favoritesapp.ErrUserRequired,
	favoritesapp.ErrListingRequired,
	listingapp.ErrSellerRequired,
	listingapp.ErrListingRequired,
	listingapp.ErrImageRequired,
	listingapp.ErrImageType,
	notificationapp.ErrUserRequired,
	notificationapp.ErrNotificationRequired,
	userapp.ErrUserRequired,
	authsvc.ErrPasswordTooShort,
	domainchat.ErrParticipants,
	domainchat.ErrTextRequired,
	domainchat.ErrTextTooLong,
	domainchat.ErrSelfConversation,
	domainexpertise.ErrNoCategories,
	domainexpertise.ErrUnknownCategory,
	domainexpertise.ErrDuplicateCategory,
	domainexpertise.ErrScoreRange,
	domainexpertise.ErrSignatory,
	domainfavorites.ErrUserRequired,
	domainfavorites.ErrListingRequired,
	domainlistings.ErrTitleRequired,
	domainlistings.ErrPrice,
	domainlistings.ErrCategory,
	domainlistings.ErrSellerType,
	domainlistings.ErrStatus,
	domainlistings.ErrCondition,
	domainlistings.ErrYear,
	domainlistings.ErrMileage,
	domainlistings.ErrImageURL,
	domainlistings.ErrTooManyImages,
	domainlistings.ErrLocationRequired,
	domainnotification.ErrKind,
	domainuser.ErrEmailRequired,
	domainuser.ErrEmailInvalid,
	domainuser.ErrNameRequired,
	domainuser.ErrInvalidRole,
	domainuser.ErrHourlyRate,
	domainuser.ErrRating,
}

var notFoundErrors = []error{
	domainchat.ErrNotFound,
	domainchat.ErrMessageNotFound,
	domainexpertise.ErrNotFound,
	domainlistings.ErrNotFound,
	domainnotification.ErrNotFound,
	domainuser.ErrNotFound,
}

// statusFor maps application errors to an HTTP status and a client-facing
// message. Unknown errors are internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, policies.ErrStorageRejected):
		return http.StatusForbidden, storageRejectedMessage
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, authsvc.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, domainchat.ErrNotParticipant),
		errors.Is(err, listingapp.ErrListingNotOwned),
		errors.Is(err, middleware.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domainuser.ErrEmailAlreadyUsed):
		return http.StatusConflict, err.Error()
	case errors.Is(err, listingapp.ErrImageStoreUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, err.Error()
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}

func respondUnavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " unavailable"})
}

func parseIntWithDefault(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func parseInt64(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
