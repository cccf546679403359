package domain

const DefaultCurrency = "eur"

// Discount is a resolved promotion applied to a quote.
type Discount struct {
	PromotionCodeID string
	CouponRef       string
	Code            string
}

type Coupon struct {
	ID         string   `json:"id"`
	PercentOff *float64 `json:"percent_off"`
	AmountOff  *int64   `json:"amount_off"`
	Currency   string   `json:"currency"`
	Duration   string   `json:"duration"`
}

type LookupResult struct {
	Found  bool
	Coupon *Coupon
}
