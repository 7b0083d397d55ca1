// AngelaMos | 2026
// entity.go

package ledger

import (
	"fmt"
	"time"
)

// Purchase and BundlePurchase rows are written by the payment webhook and are
// never mutated here.
type Purchase struct {
	ID                    string    `db:"id"                       json:"id"`
	UserID                string    `db:"user_id"                  json:"user_id"`
	FileProductID         string    `db:"file_product_id"          json:"file_product_id"`
	AttachmentID          string    `db:"attachment_id"            json:"attachment_id"`
	StripePaymentIntentID string    `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	AmountPaidCents       int       `db:"amount_paid_cents"        json:"amount_paid_cents"`
	PurchasedAt           time.Time `db:"purchased_at"             json:"purchased_at"`
}

type BundlePurchase struct {
	ID                    string    `db:"id"                       json:"id"`
	UserID                string    `db:"user_id"                  json:"user_id"`
	ProductID             string    `db:"product_id"               json:"product_id"`
	StripePaymentIntentID string    `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	AmountPaidCents       int       `db:"amount_paid_cents"        json:"amount_paid_cents"`
	PurchasedAt           time.Time `db:"purchased_at"             json:"purchased_at"`
}

type DownloadEvent struct {
	ID           string    `db:"id"            json:"id"`
	UserID       string    `db:"user_id"       json:"user_id"`
	AttachmentID string    `db:"attachment_id" json:"attachment_id"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
}

// YearMonth is a calendar month in UTC, the unit download quotas reset on.
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(t time.Time) YearMonth {
	u := t.UTC()
	return YearMonth{Year: u.Year(), Month: u.Month()}
}

// Bounds returns the half-open interval [start, end) covering the month.
func (ym YearMonth) Bounds() (start, end time.Time) {
	start = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
