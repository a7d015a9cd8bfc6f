package billing

import (
	"testing"

	"github.com/coachline/coachline/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestDiscountPercent(t *testing.T) {
	cases := []struct {
		name       string
		configured float64
		list, sale string
		want       int
	}{
		{"derived", 0, "1000", "800", 20},
		{"derived rounds half up", 0, "200", "199", 1},
		{"derived rounds down", 0, "300", "299", 0},
		{"configured wins", 15.4, "1000", "800", 15},
		{"configured rounds", 12.5, "1000", "1000", 13},
		{"no sale price", 0, "1000", "0", 0},
		{"sale above list", 0, "1000", "1200", 0},
		{"zero list", 0, "0", "10", 0},
		{"negative configured falls through", -5, "100", "50", 50},
		{"over a hundred is not clamped", 150, "100", "50", 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DiscountPercent(tc.configured, d(tc.list), d(tc.sale)))
		})
	}
}

func TestDerivedPercentMatchesFormula(t *testing.T) {
	for list := int64(1); list <= 300; list += 7 {
		for sale := int64(1); sale < list; sale += 3 {
			want := decimal.NewFromInt(list - sale).Div(decimal.NewFromInt(list)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
			got := DiscountPercent(0, decimal.NewFromInt(list), decimal.NewFromInt(sale))
			assert.Equal(t, int(want), got, "list=%d sale=%d", list, sale)
			assert.GreaterOrEqual(t, got, 0)
		}
	}
}

func TestBuildQuoteWithOffer(t *testing.T) {
	p := &models.Product{ID: 7, ListPrice: d("1000"), SalePrice: d("800")}

	q := BuildQuote(p, QuoteOptions{IncludeOffer: true, Currency: "INR"})
	assert.Equal(t, 20, q.DiscountPercent)
	assert.True(t, q.OfferApplied)
	assert.True(t, q.CurrentPrice.Equal(d("800")))
	assert.True(t, q.OfferDiscount.Equal(d("160")), q.OfferDiscount.String())
	assert.True(t, q.Payable.Equal(d("640")), q.Payable.String())
	assert.Equal(t, "INR", q.Currency)
}

func TestBuildQuoteOfferToggleOff(t *testing.T) {
	p := &models.Product{ListPrice: d("1000"), SalePrice: d("800"), DiscountPercent: 30}

	q := BuildQuote(p, QuoteOptions{IncludeOffer: false})
	assert.False(t, q.OfferApplied)
	assert.True(t, q.OfferDiscount.IsZero())
	assert.True(t, q.Payable.Equal(d("800")))
}

func TestBuildQuoteFriendDiscount(t *testing.T) {
	p := &models.Product{ListPrice: d("500")}
	referrer := &models.User{ID: 2, ReferralCode: "FRIEND"}

	q := BuildQuote(p, QuoteOptions{Referrer: referrer, ReferralCode: "FRIEND", Policy: PercentFriendDiscount(10)})
	assert.True(t, q.FriendDiscount.Equal(d("50")))
	assert.Equal(t, "FRIEND", q.ReferralCode)
	assert.True(t, q.Payable.Equal(d("450")))

	q = BuildQuote(p, QuoteOptions{ReferralCode: "FRIEND", Policy: PercentFriendDiscount(10)})
	assert.True(t, q.FriendDiscount.IsZero())
	assert.Empty(t, q.ReferralCode)

	q = BuildQuote(p, QuoteOptions{Referrer: referrer, ReferralCode: "FRIEND"})
	assert.True(t, q.FriendDiscount.IsZero())
	assert.Equal(t, "FRIEND", q.ReferralCode)
}

func TestBuildQuotePayableNeverNegative(t *testing.T) {
	p := &models.Product{ListPrice: d("100"), DiscountPercent: 90}
	greedy := func(current decimal.Decimal, _ *models.User) decimal.Decimal { return current }

	q := BuildQuote(p, QuoteOptions{IncludeOffer: true, Referrer: &models.User{ID: 3}, Policy: greedy})
	assert.True(t, q.Payable.IsZero())
	assert.True(t, q.IsFree())

	expected := q.CurrentPrice.Sub(q.OfferDiscount).Sub(q.FriendDiscount)
	if expected.IsNegative() {
		expected = decimal.Zero
	}
	assert.True(t, q.Payable.Equal(expected))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(64000), ToMinorUnits(d("640")))
	assert.Equal(t, int64(1999), ToMinorUnits(d("19.99")))
	assert.True(t, FromMinorUnits(1999).Equal(d("19.99")))
}
