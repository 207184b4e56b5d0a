package cachefacade

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// KeyBuilder is the sole authority for cache key shapes. Domain code never
// assembles a raw key string itself — it calls one of these builders so the
// naming scheme stays in one place.
type KeyBuilder struct{}

func (KeyBuilder) Daily(date string) string {
	return "daily:" + date
}

func (KeyBuilder) Rank(date string, topN int) string {
	return "rank:" + date + ":" + strconv.Itoa(topN)
}

func (KeyBuilder) Sector(date string) string {
	return "sector:" + date
}

func (KeyBuilder) Hotspot(date string) string {
	return "hotspot:" + date
}

func (KeyBuilder) Signal(kind, date string) string {
	return "signal:" + kind + ":" + date
}

func (KeyBuilder) IndustryJump(date string, days int) string {
	return "industry_jump:" + date + ":" + strconv.Itoa(days)
}

// APICache hashes the endpoint's parameter string with xxh3 rather than a
// cryptographic hash — this key is never security-sensitive, only a
// collision-resistant-enough cache discriminator under high request rates.
func (KeyBuilder) APICache(endpoint, params string) string {
	return "api:" + endpoint + ":" + hashHex(params)
}

func (KeyBuilder) Report(reportType, params string) string {
	return "report:" + reportType + ":" + hashHex(params)
}

// Entity returns the canonical key for a per-entity region (users, sessions):
// the decimal id, unmodified.
func (KeyBuilder) Entity(id string) string {
	return id
}

func hashHex(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}
