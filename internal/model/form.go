package model

// Arrangement is the package a party books.
type Arrangement string

const (
	ArrangementStandard Arrangement = "BWF"
	ArrangementPremium  Arrangement = "BWFM"
)

// AddOn is an optional per-person extra such as a pre-drink.
type AddOn struct {
	Enabled  bool `json:"enabled"`
	Quantity int  `json:"quantity"`
}

// MerchandiseItem is a merchandise line on a booking.
type MerchandiseItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// FormData is the customer-entered content of the booking wizard.  It is
// serialized into drafts, so every field carries a json tag and partial
// JSON documents can be decoded onto an existing value.
type FormData struct {
	NumberOfPersons  int               `json:"number_of_persons"`
	Arrangement      Arrangement       `json:"arrangement,omitempty"`
	PreDrink         AddOn             `json:"pre_drink"`
	AfterParty       AddOn             `json:"after_party"`
	Merchandise      []MerchandiseItem `json:"merchandise,omitempty"`
	Salutation       string            `json:"salutation,omitempty"`
	FirstName        string            `json:"first_name,omitempty"`
	LastName         string            `json:"last_name,omitempty"`
	ContactPerson    string            `json:"contact_person,omitempty"`
	CompanyName      string            `json:"company_name,omitempty"`
	Email            string            `json:"email,omitempty"`
	PhoneCountryCode string            `json:"phone_country_code,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Address          string            `json:"address,omitempty"`
	HouseNumber      string            `json:"house_number,omitempty"`
	PostalCode       string            `json:"postal_code,omitempty"`
	City             string            `json:"city,omitempty"`
	Country          string            `json:"country,omitempty"`
	InvoiceNeeded    bool              `json:"invoice_needed"`
	Comments         string            `json:"comments,omitempty"`
	NewsletterOptIn  bool              `json:"newsletter_opt_in"`
	AcceptTerms      bool              `json:"accept_terms"`
	PromoCode        string            `json:"promo_code,omitempty"`
	VoucherCode      string            `json:"voucher_code,omitempty"`
}

// DisplayName returns the best available contact name.
func (f FormData) DisplayName() string {
	if f.ContactPerson != "" {
		return f.ContactPerson
	}
	switch {
	case f.FirstName != "" && f.LastName != "":
		return f.FirstName + " " + f.LastName
	case f.FirstName != "":
		return f.FirstName
	}
	return f.LastName
}
