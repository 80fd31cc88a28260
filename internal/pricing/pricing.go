// Package pricing computes quotes for a booking form.  The booking and
// wizard packages only see the Calculator interface; Table is the default
// implementation driven by static price lists.
package pricing

import (
	"strings"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
)

// Calculator turns a form for an event into a price breakdown.  It must be
// a pure function of its inputs.
type Calculator interface {
	Calculate(ev model.Event, form model.FormData, promoCode, voucherCode string) Breakdown
}

// Line is a single priced row of a quote.
type Line struct {
	Label      string `json:"label"`
	UnitCents  int64  `json:"unit_cents"`
	Quantity   int    `json:"quantity"`
	TotalCents int64  `json:"total_cents"`
}

// Breakdown is the result of a price calculation.  Amounts are in cents.
type Breakdown struct {
	Arrangement   Line   `json:"arrangement"`
	PreDrink      *Line  `json:"pre_drink,omitempty"`
	AfterParty    *Line  `json:"after_party,omitempty"`
	Merchandise   []Line `json:"merchandise,omitempty"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	DiscountLabel string `json:"discount_label,omitempty"`
	TotalCents    int64  `json:"total_cents"`
}

// ArrangementPrices holds per-person prices for both arrangements.
type ArrangementPrices struct {
	Standard int64
	Premium  int64
}

func (p ArrangementPrices) For(a model.Arrangement) int64 {
	if a == model.ArrangementPremium {
		return p.Premium
	}
	return p.Standard
}

// MerchItem is a catalogue entry.
type MerchItem struct {
	Name  string
	Cents int64
}

// Discount is either a percentage or a fixed amount off the subtotal.
type Discount struct {
	Percent int
	Cents   int64
}

func (d Discount) amount(base int64) int64 {
	if d.Percent > 0 {
		return base * int64(d.Percent) / 100
	}
	return d.Cents
}

// Table prices forms from static lists.
type Table struct {
	Weekday     ArrangementPrices
	Weekend     ArrangementPrices
	ByType      map[model.EventType]ArrangementPrices
	PreDrink    int64
	AfterParty  int64
	Merchandise map[string]MerchItem
	Promotions  map[string]Discount
	Vouchers    map[string]Discount
}

// DefaultTable returns the house price list.
func DefaultTable() *Table {
	return &Table{
		Weekday: ArrangementPrices{Standard: 7000, Premium: 8500},
		Weekend: ArrangementPrices{Standard: 8000, Premium: 9500},
		ByType: map[model.EventType]ArrangementPrices{
			model.EventTypeMatinee:     {Standard: 7000, Premium: 8500},
			model.EventTypeCareProgram: {Standard: 6500, Premium: 8000},
		},
		PreDrink:   1500,
		AfterParty: 1500,
		Merchandise: map[string]MerchItem{
			"merch-shirt-1":   {Name: "T-shirt", Cents: 2500},
			"merch-hoodie-1":  {Name: "Hoodie", Cents: 4500},
			"merch-cap-1":     {Name: "Cap", Cents: 2000},
			"merch-mug-1":     {Name: "Mug", Cents: 1200},
			"merch-poster-1":  {Name: "Poster", Cents: 1500},
			"merch-bouquet-1": {Name: "Bouquet", Cents: 3500},
		},
		Promotions: map[string]Discount{},
		Vouchers:   map[string]Discount{},
	}
}

// PerPerson returns the arrangement price for an event.  REGULAR events use
// the weekend list on Friday and Saturday.
func (t *Table) PerPerson(ev model.Event, a model.Arrangement) int64 {
	if p, ok := t.ByType[ev.Type]; ok {
		return p.For(a)
	}
	switch ev.Date.Weekday() {
	case time.Friday, time.Saturday:
		return t.Weekend.For(a)
	}
	return t.Weekday.For(a)
}

// Calculate implements Calculator.  A promotion is applied to the subtotal
// first, a voucher to what remains; the total never drops below zero.
// Unknown codes and unknown merchandise are ignored.
func (t *Table) Calculate(ev model.Event, form model.FormData, promoCode, voucherCode string) Breakdown {
	arr := form.Arrangement
	if arr == "" {
		arr = model.ArrangementStandard
	}
	unit := t.PerPerson(ev, arr)
	b := Breakdown{
		Arrangement: Line{Label: string(arr), UnitCents: unit, Quantity: form.NumberOfPersons, TotalCents: unit * int64(form.NumberOfPersons)},
	}
	b.SubtotalCents = b.Arrangement.TotalCents

	if form.PreDrink.Enabled && form.PreDrink.Quantity > 0 {
		l := Line{Label: "pre-drink", UnitCents: t.PreDrink, Quantity: form.PreDrink.Quantity, TotalCents: t.PreDrink * int64(form.PreDrink.Quantity)}
		b.PreDrink = &l
		b.SubtotalCents += l.TotalCents
	}
	if form.AfterParty.Enabled && form.AfterParty.Quantity > 0 {
		l := Line{Label: "after-party", UnitCents: t.AfterParty, Quantity: form.AfterParty.Quantity, TotalCents: t.AfterParty * int64(form.AfterParty.Quantity)}
		b.AfterParty = &l
		b.SubtotalCents += l.TotalCents
	}
	for _, m := range form.Merchandise {
		item, ok := t.Merchandise[m.ItemID]
		if !ok || m.Quantity <= 0 {
			continue
		}
		l := Line{Label: item.Name, UnitCents: item.Cents, Quantity: m.Quantity, TotalCents: item.Cents * int64(m.Quantity)}
		b.Merchandise = append(b.Merchandise, l)
		b.SubtotalCents += l.TotalCents
	}

	var labels []string
	if d, ok := t.Promotions[normalize(promoCode)]; ok {
		b.DiscountCents += d.amount(b.SubtotalCents)
		labels = append(labels, "promo "+normalize(promoCode))
	}
	if d, ok := t.Vouchers[normalize(voucherCode)]; ok {
		left := b.SubtotalCents - b.DiscountCents
		if left < 0 {
			left = 0
		}
		b.DiscountCents += min(d.amount(left), left)
		labels = append(labels, "voucher "+normalize(voucherCode))
	}
	b.DiscountLabel = strings.Join(labels, ", ")
	b.TotalCents = max(0, b.SubtotalCents-b.DiscountCents)
	return b
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
