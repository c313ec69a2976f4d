package model

import "time"

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSent      = "sent"
)

// Campaign is one notification broadcast.
type Campaign struct {
	ID          string     `json:"campaignId"`
	WebsiteID   string     `json:"websiteId"`
	Content     Content    `json:"content"`
	SegmentID   string     `json:"segmentId,omitempty"`
	Status      string     `json:"status"`
	Stats       Stats      `json:"stats"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
}

// Content is what the browser renders.
type Content struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Icon     string   `json:"icon,omitempty"`
	Image    string   `json:"image,omitempty"`
	ClickURL string   `json:"url,omitempty"`
	Actions  []Action `json:"actions,omitempty"`
}

// Action is a notification button.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

// Stats are the delivery counters of a campaign.
type Stats struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Clicked   int `json:"clicked"`
	Failed    int `json:"failed"`
}

// Add accumulates another send's counters. Clicked is left alone.
func (s *Stats) Add(o Stats) {
	s.Sent += o.Sent
	s.Delivered += o.Delivered
	s.Failed += o.Failed
}

// CampaignRow is a campaign decorated with its click-through rate.
type CampaignRow struct {
	*Campaign
	CTR float64 `json:"ctr"`
}

// SendResult is returned by a campaign send. Errors lists failed recipients,
// capped at MaxSendErrors entries.
type SendResult struct {
	CampaignID string      `json:"campaignId"`
	Sent       int         `json:"sent"`
	Delivered  int         `json:"delivered"`
	Failed     int         `json:"failed"`
	Pruned     int         `json:"pruned"`
	Errors     []SendError `json:"errors,omitempty"`
}

// MaxSendErrors bounds SendResult.Errors.
const MaxSendErrors = 100

// SendError is one recipient's delivery failure.
type SendError struct {
	SubscriberID string `json:"subscriberId"`
	Error        string `json:"error"`
}

// PushPayload is the JSON body handed to the push transport.
type PushPayload struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Icon         string   `json:"icon"`
	Image        string   `json:"image,omitempty"`
	URL          string   `json:"url"`
	Actions      []Action `json:"actions,omitempty"`
	CampaignID   string   `json:"campaignId"`
	SubscriberID string   `json:"subscriberId"`
}
