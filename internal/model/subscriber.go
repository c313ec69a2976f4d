package model

import "time"

// Unknown is stored for metadata the subscription producer did not supply.
const Unknown = "Unknown"

// Subscriber is one push-capable browser registered against a website.
type Subscriber struct {
	ID        string    `json:"id"`
	WebsiteID string    `json:"websiteId"`
	Handle    string    `json:"handle"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

// Metadata is the client-supplied description of a subscriber.
type Metadata struct {
	Platform     string            `json:"platform"`
	Browser      string            `json:"browser"`
	Country      string            `json:"country"`
	City         string            `json:"city"`
	Language     string            `json:"language"`
	Timezone     string            `json:"timezone"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	SubscribedAt time.Time         `json:"subscribedAt"`
}

// Field returns the value stored under a metadata field name. Unknown names
// fall back to Attributes and then to the empty string.
func (m Metadata) Field(name string) string {
	switch name {
	case "platform":
		return m.Platform
	case "browser":
		return m.Browser
	case "country":
		return m.Country
	case "city":
		return m.City
	case "language":
		return m.Language
	case "timezone":
		return m.Timezone
	}
	return m.Attributes[name]
}

// SubscriberView hides the push handle when listing subscribers.
type SubscriberView struct {
	ID        string    `json:"id"`
	WebsiteID string    `json:"websiteId"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}
