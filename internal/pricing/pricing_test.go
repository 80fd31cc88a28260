package pricing

import (
	"testing"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
)

func TestTable_Calculate(t *testing.T) {
	t.Parallel()

	saturday := model.Event{ID: "e1", Type: model.EventTypeRegular, Date: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)}
	tuesday := model.Event{ID: "e2", Type: model.EventTypeRegular, Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}
	matinee := model.Event{ID: "e3", Type: model.EventTypeMatinee, Date: saturday.Date}

	table := DefaultTable()
	table.Promotions["SPRING10"] = Discount{Percent: 10}
	table.Vouchers["GIFT50"] = Discount{Cents: 5000}
	table.Vouchers["BIG"] = Discount{Cents: 1_000_000}

	cases := []struct {
		name    string
		ev      model.Event
		form    model.FormData
		promo   string
		voucher string
		want    int64
	}{
		{
			name: "weekend standard",
			ev:   saturday,
			form: model.FormData{NumberOfPersons: 4, Arrangement: model.ArrangementStandard},
			want: 4 * 8000,
		},
		{
			name: "weekday premium",
			ev:   tuesday,
			form: model.FormData{NumberOfPersons: 2, Arrangement: model.ArrangementPremium},
			want: 2 * 8500,
		},
		{
			name: "event type overrides the day list",
			ev:   matinee,
			form: model.FormData{NumberOfPersons: 1, Arrangement: model.ArrangementStandard},
			want: 7000,
		},
		{
			name: "add-ons and merchandise",
			ev:   tuesday,
			form: model.FormData{
				NumberOfPersons: 2,
				Arrangement:     model.ArrangementStandard,
				PreDrink:        model.AddOn{Enabled: true, Quantity: 2},
				AfterParty:      model.AddOn{Enabled: false, Quantity: 2},
				Merchandise:     []model.MerchandiseItem{{ItemID: "merch-mug-1", Quantity: 3}, {ItemID: "unknown", Quantity: 1}},
			},
			want: 2*7000 + 2*1500 + 3*1200,
		},
		{
			name:    "promo then voucher",
			ev:      tuesday,
			form:    model.FormData{NumberOfPersons: 10, Arrangement: model.ArrangementStandard},
			promo:   " spring10 ",
			voucher: "GIFT50",
			want:    70000 - 7000 - 5000,
		},
		{
			name:    "total never negative",
			ev:      tuesday,
			form:    model.FormData{NumberOfPersons: 1, Arrangement: model.ArrangementStandard},
			voucher: "BIG",
			want:    0,
		},
		{
			name:  "unknown code ignored",
			ev:    tuesday,
			form:  model.FormData{NumberOfPersons: 1},
			promo: "NOPE",
			want:  7000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Calculate(tc.ev, tc.form, tc.promo, tc.voucher)
			if got.TotalCents != tc.want {
				t.Fatalf("expected total %d, got %d (%+v)", tc.want, got.TotalCents, got)
			}
		})
	}
}

func TestTable_CalculateIsPure(t *testing.T) {
	t.Parallel()

	ev := model.Event{ID: "e1", Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}
	form := model.FormData{NumberOfPersons: 3, Merchandise: []model.MerchandiseItem{{ItemID: "merch-cap-1", Quantity: 1}}}
	table := DefaultTable()

	a := table.Calculate(ev, form, "", "")
	b := table.Calculate(ev, form, "", "")
	if a.TotalCents != b.TotalCents || len(a.Merchandise) != len(b.Merchandise) {
		t.Fatalf("expected identical breakdowns, got %+v and %+v", a, b)
	}
}
