// Package billing computes prices, discounts, and payable amounts for products.
package billing

import (
	"math"

	"github.com/coachline/coachline/internal/models"
	"github.com/shopspring/decimal"
)

// hundred is the percent denominator.
var hundred = decimal.NewFromInt(100)

// DiscountPercent returns the default-offer percent for a product.
//
// A configured percent wins when positive. Otherwise the percent is derived
// from list and sale price when the sale price is a real markdown. The
// result is rounded half away from zero and never negative.
func DiscountPercent(configured float64, list, sale decimal.Decimal) int {
	if configured > 0 {
		return int(math.Round(configured))
	}
	if !list.IsPositive() || !sale.IsPositive() || !sale.LessThan(list) {
		return 0
	}
	pct := list.Sub(sale).Div(list).Mul(hundred).Round(0).IntPart()
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// ProductDiscountPercent is DiscountPercent applied to a product row.
func ProductDiscountPercent(p *models.Product) int {
	if p == nil {
		return 0
	}
	return DiscountPercent(p.DiscountPercent, p.ListPrice, p.SalePrice)
}

// CurrentPrice returns the sale price when set, else the list price.
func CurrentPrice(list, sale decimal.Decimal) decimal.Decimal {
	if sale.IsPositive() {
		return sale
	}
	return list
}

// ReferralPolicy computes the friend discount for a resolved referrer.
type ReferralPolicy func(current decimal.Decimal, referrer *models.User) decimal.Decimal

// NoFriendDiscount grants nothing for referrals.
func NoFriendDiscount(decimal.Decimal, *models.User) decimal.Decimal {
	return decimal.Zero
}

// PercentFriendDiscount grants percent of the current price, rounded to cents.
func PercentFriendDiscount(percent float64) ReferralPolicy {
	if percent <= 0 {
		return NoFriendDiscount
	}
	pct := decimal.NewFromFloat(percent)
	return func(current decimal.Decimal, referrer *models.User) decimal.Decimal {
		if referrer == nil || !current.IsPositive() {
			return decimal.Zero
		}
		return current.Mul(pct).Div(hundred).Round(2)
	}
}

// QuoteOptions are the caller choices that affect a quote.
type QuoteOptions struct {
	IncludeOffer bool           // Apply the product's default offer.
	Referrer     *models.User   // Resolved referring user; nil when no code applies.
	ReferralCode string         // Code echoed back when Referrer is set.
	Policy       ReferralPolicy // Friend discount policy; nil means NoFriendDiscount.
	Currency     string         // ISO currency code.
}

// Quote is the request-scoped price breakdown for one product.
type Quote struct {
	ProductID       uint64          `json:"product_id"`
	ListPrice       decimal.Decimal `json:"list_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	DiscountPercent int             `json:"discount_percent"`
	OfferApplied    bool            `json:"offer_applied"`
	OfferDiscount   decimal.Decimal `json:"offer_discount"`
	FriendDiscount  decimal.Decimal `json:"friend_discount"`
	ReferralCode    string          `json:"referral_code,omitempty"`
	Payable         decimal.Decimal `json:"payable"`
	Currency        string          `json:"currency"`
}

// IsFree reports whether nothing is due.
func (q *Quote) IsFree() bool {
	return q != nil && !q.Payable.IsPositive()
}

// BuildQuote prices a product for the given options.
func BuildQuote(p *models.Product, opts QuoteOptions) Quote {
	current := CurrentPrice(p.ListPrice, p.SalePrice)
	pct := ProductDiscountPercent(p)

	q := Quote{
		ProductID:       p.ID,
		ListPrice:       p.ListPrice,
		CurrentPrice:    current,
		DiscountPercent: pct,
		OfferDiscount:   decimal.Zero,
		FriendDiscount:  decimal.Zero,
		Currency:        opts.Currency,
	}
	if opts.IncludeOffer && pct > 0 {
		q.OfferApplied = true
		q.OfferDiscount = current.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(2)
	}
	if opts.Referrer != nil {
		policy := opts.Policy
		if policy == nil {
			policy = NoFriendDiscount
		}
		q.FriendDiscount = policy(current, opts.Referrer)
		if q.FriendDiscount.IsNegative() {
			q.FriendDiscount = decimal.Zero
		}
		q.ReferralCode = opts.ReferralCode
	}

	payable := current.Sub(q.OfferDiscount).Sub(q.FriendDiscount)
	if payable.IsNegative() {
		payable = decimal.Zero
	}
	q.Payable = payable
	return q
}

// ToMinorUnits converts a currency amount to integer minor units (paise, cents).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a currency amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
