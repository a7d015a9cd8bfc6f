package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "Coachline"
	// FriendDiscountPercentKey is the percent of the current price granted for a valid referral code.
	FriendDiscountPercentKey = "FRIEND_DISCOUNT_PERCENT"
	// DefaultFriendDiscountPercent disables friend discounts until configured.
	DefaultFriendDiscountPercent = 0.0
	// DefaultFreeAttemptsKey is the free attempt limit for mock tests without their own.
	DefaultFreeAttemptsKey = "DEFAULT_FREE_ATTEMPTS"
	// DefaultFreeAttempts is the fallback free attempt limit.
	DefaultFreeAttempts = 1
	// BuyNowURLKey is the redirect target once free attempts are exhausted.
	// A "{product_id}" placeholder is replaced with the mock test's product.
	BuyNowURLKey = "BUY_NOW_URL"
	// OrderTTLMinutesKey is how long a CREATED payment order stays open.
	OrderTTLMinutesKey = "ORDER_TTL_MINUTES"
	// DefaultOrderTTLMinutes is the fallback order lifetime; zero disables the sweep.
	DefaultOrderTTLMinutes = 60
)

// Keys lists every runtime setting the admin API may write.
var Keys = []string{
	SiteNameKey,
	FriendDiscountPercentKey,
	DefaultFreeAttemptsKey,
	BuyNowURLKey,
	OrderTTLMinutesKey,
}

// IsKnownKey reports whether key is a recognised runtime setting.
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
