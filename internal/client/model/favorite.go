package model

import "autoparc/internal/app/dto"

type Favorite struct {
	ListingID string `json:"listingId"`
	CreatedAt int64  `json:"createdAt"`
}

// FavoriteIDs returns the listing ids of a favorites page in order.
func FavoriteIDs(list dto.FavoriteList) []string {
	out := make([]string, 0, len(list.Items))
	for _, f := range list.Items {
		out = append(out, f.ListingID)
	}
	return out
}

func FavoriteFromRecord(record map[string]any) (Favorite, error) {
	var row dto.Favorite
	if err := decodeRecord(record, &row); err != nil {
		return Favorite{}, err
	}
	return Favorite{ListingID: row.ListingID, CreatedAt: Millis(row.CreatedAt)}, nil
}
