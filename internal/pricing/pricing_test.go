package pricing

import (
	"testing"

	"github.com/alovak/checkout-playground/checkout/models"
)

func TestDiscountAmount(t *testing.T) {
	cases := []struct {
		name     string
		original int64
		offer    *models.DiscountOffer
		want     int64
	}{
		{"no offer", 50000, nil, 0},
		{"rate 10 percent", 50000, &models.DiscountOffer{DiscountRate: 10}, 5000},
		{"rate rounds down", 9999, &models.DiscountOffer{DiscountRate: 10}, 999},
		{"flat amount", 50000, &models.DiscountOffer{DiscountAmount: 3000}, 3000},
		{"flat wins over rate", 50000, &models.DiscountOffer{DiscountRate: 10, DiscountAmount: 3000}, 3000},
		{"empty offer", 50000, &models.DiscountOffer{}, 0},
	}
	for _, c := range cases {
		if got := DiscountAmount(c.original, c.offer); got != c.want {
			t.Fatalf("%s: DiscountAmount got %d want %d", c.name, got, c.want)
		}
	}
}

func TestComputeFinal(t *testing.T) {
	cases := []struct {
		name     string
		original int64
		offer    *models.DiscountOffer
		points   int64
		want     int64
	}{
		// original=50000, rate 10% -> discount 5000, final 45000
		{"rate discount no points", 50000, &models.DiscountOffer{DiscountRate: 10}, 0, 45000},
		// original=30000, no discount, 5000 points -> 25000
		{"points only", 30000, nil, 5000, 25000},
		{"discount and points", 50000, &models.DiscountOffer{DiscountRate: 10}, 45000, 0},
		{"never negative", 1000, &models.DiscountOffer{DiscountAmount: 900}, 200, 0},
		{"zero original", 0, nil, 0, 0},
	}
	for _, c := range cases {
		got := ComputeFinal(c.original, c.offer, c.points)
		if got != c.want {
			t.Fatalf("%s: ComputeFinal got %d want %d", c.name, got, c.want)
		}
		// pure function: same inputs, same output
		if again := ComputeFinal(c.original, c.offer, c.points); again != got {
			t.Fatalf("%s: ComputeFinal not deterministic: %d then %d", c.name, got, again)
		}
	}
}

func TestClampPoints(t *testing.T) {
	cases := []struct {
		name          string
		requested     int64
		balance       int64
		afterDiscount int64
		want          int64
	}{
		{"within both caps", 5000, 10000, 30000, 5000},
		{"capped by balance", 15000, 10000, 30000, 10000},
		{"capped by after-discount", 15000, 20000, 12000, 12000},
		{"negative request", -1, 10000, 30000, 0},
		{"zero balance", 5000, 0, 30000, 0},
		{"negative after-discount treated as zero", 5000, 10000, -1, 0},
	}
	for _, c := range cases {
		if got := ClampPoints(c.requested, c.balance, c.afterDiscount); got != c.want {
			t.Fatalf("%s: ClampPoints got %d want %d", c.name, got, c.want)
		}
	}
}

func TestFinalAmountNeverNegative(t *testing.T) {
	offers := []*models.DiscountOffer{
		nil,
		{DiscountRate: 100},
		{DiscountRate: 33},
		{DiscountAmount: 7777},
	}
	for _, original := range []int64{0, 1, 999, 30000, 50000} {
		for _, offer := range offers {
			afterDiscount := original - DiscountAmount(original, offer)
			for _, requested := range []int64{0, 100, 50000} {
				points := ClampPoints(requested, 10000, afterDiscount)
				if got := ComputeFinal(original, offer, points); got < 0 {
					t.Fatalf("ComputeFinal(%d, %+v, %d) = %d, want >= 0", original, offer, points, got)
				}
			}
		}
	}
}
