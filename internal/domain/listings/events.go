package listings

const (
	EventCreated = "listing.created"
	EventUpdated = "listing.updated"
	EventBoosted = "listing.boosted"
	EventDeleted = "listing.deleted"
)
