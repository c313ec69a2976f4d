package model

import "time"

// UnknownSubscriber marks clicks that cannot be traced to a subscriber.
const UnknownSubscriber = "unknown"

// DeliveryRecord is evidence one subscriber received one campaign.
type DeliveryRecord struct {
	CampaignID   string    `json:"campaignId"`
	SubscriberID string    `json:"subscriberId"`
	DeliveredAt  time.Time `json:"deliveredAt"`
}

// ClickRecord is evidence one subscriber clicked one campaign notification.
type ClickRecord struct {
	CampaignID   string    `json:"campaignId"`
	SubscriberID string    `json:"subscriberId"`
	ClickedAt    time.Time `json:"clickedAt"`
}

// Snapshot is a full copy of store contents.
type Snapshot struct {
	Accounts    []*Account        `json:"accounts"`
	Websites    []*Website        `json:"websites"`
	Subscribers []*Subscriber     `json:"subscribers"`
	Segments    []*Segment        `json:"segments"`
	Campaigns   []*Campaign       `json:"campaigns"`
	Deliveries  []*DeliveryRecord `json:"deliveries"`
	Clicks      []*ClickRecord    `json:"clicks"`
}

// PlatformStats counts every stored entity.
type PlatformStats struct {
	Accounts    int `json:"accounts"`
	Websites    int `json:"websites"`
	Subscribers int `json:"subscribers"`
	Segments    int `json:"segments"`
	Campaigns   int `json:"campaigns"`
	Deliveries  int `json:"deliveries"`
	Clicks      int `json:"clicks"`
}
