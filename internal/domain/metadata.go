package domain

import (
	"strings"
	"time"
)

// MarketTag is the category assigned to a market at proposal time.
type MarketTag string

const (
	TagCrypto      MarketTag = "Crypto"
	TagSports      MarketTag = "Sports"
	TagPolitics    MarketTag = "Politics"
	TagEnvironment MarketTag = "Environment"
	TagMisc        MarketTag = "Misc"
	TagGaming      MarketTag = "Gaming"
)

// ValidTags lists every accepted market tag.
var ValidTags = []MarketTag{
	TagCrypto, TagSports, TagPolitics, TagEnvironment, TagMisc, TagGaming,
}

// IsValidTag reports whether s matches an accepted tag (case-insensitive).
func IsValidTag(s string) bool {
	for _, t := range ValidTags {
		if strings.EqualFold(string(t), s) {
			return true
		}
	}
	return false
}

// MarketMetadata is the off-chain descriptive record for a market. It is
// written once when the market is proposed and never updated afterwards. A
// market with no metadata row is a valid state: the on-chain transaction and
// the metadata save are separate, non-atomic steps, and the second may fail.
type MarketMetadata struct {
	MarketID        uint64    `json:"market_id"`
	Description     string    `json:"description"`
	ImageURL        string    `json:"image_url"`
	ProposerAddress string    `json:"proposer_address"`
	Tag             MarketTag `json:"tag"`
	CreatedAt       time.Time `json:"created_at"`
}

// DefaultImageURL is the placeholder shown when a market has no metadata or
// the stored image cannot be loaded.
const DefaultImageURL = "/defaultimg.jpg"
