package dto

// InquiryRequest is the raw inquiry form payload. Contact fields are
// free text; the lead pipeline normalizes them and drops what it cannot use.
type InquiryRequest struct {
	Name      string `json:"name" validate:"max=200"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"max=320"`
	Phone     string `json:"phone" validate:"max=64"`

	PropertyID string `json:"property_id" validate:"required,max=200"`
	Category   string `json:"category" validate:"max=40"`
	CheckIn    string `json:"check_in" validate:"max=40"`
	CheckOut   string `json:"check_out" validate:"max=40"`
	Guests     int    `json:"guests" validate:"gte=0,lte=500"`
	Budget     string `json:"budget" validate:"max=200"`
	Message    string `json:"message" validate:"max=5000"`

	// Charter categories (yachts, cars, jets).
	Duration      string `json:"duration" validate:"max=100"`
	DepartureTime string `json:"departure_time" validate:"max=100"`
	Pickup        string `json:"pickup" validate:"max=300"`
	Dropoff       string `json:"dropoff" validate:"max=300"`

	UTMSource   string `json:"utm_source" validate:"max=200"`
	UTMMedium   string `json:"utm_medium" validate:"max=200"`
	UTMCampaign string `json:"utm_campaign" validate:"max=200"`
	Referrer    string `json:"referrer" validate:"max=2000"`
	LandingPage string `json:"landing_page" validate:"max=2000"`
}
