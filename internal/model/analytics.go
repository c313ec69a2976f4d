package model

// Overview sums campaign stats across an account.
type Overview struct {
	TotalCampaigns   int     `json:"totalCampaigns"`
	TotalWebsites    int     `json:"totalWebsites"`
	TotalSubscribers int     `json:"totalSubscribers"`
	TotalSent        int     `json:"totalSent"`
	TotalDelivered   int     `json:"totalDelivered"`
	TotalClicked     int     `json:"totalClicked"`
	TotalFailed      int     `json:"totalFailed"`
	AvgCTR           float64 `json:"avgCTR"`
	DeliveryRate     float64 `json:"deliveryRate"`
}

// DayCount is one calendar-day bucket.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// GroupCount is one group of a demographic breakdown.
type GroupCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// WebsiteGrowth reports a website's subscriber total and recent growth.
type WebsiteGrowth struct {
	WebsiteID string `json:"websiteId"`
	Domain    string `json:"domain"`
	Total     int    `json:"total"`
	Last7Days int    `json:"last7Days"`
}

// Breakdown groups owned subscribers by demographic fields.
type Breakdown struct {
	Total     int             `json:"total"`
	Platforms []GroupCount    `json:"platforms"`
	Browsers  []GroupCount    `json:"browsers"`
	Countries []GroupCount    `json:"countries"`
	Cities    []GroupCount    `json:"cities"`
	Websites  []WebsiteGrowth `json:"websites"`
}

// CampaignReport is the analytics view of a single campaign.
type CampaignReport struct {
	CampaignID   string     `json:"campaignId"`
	Status       string     `json:"status"`
	Stats        Stats      `json:"stats"`
	CTR          float64    `json:"ctr"`
	DeliveryRate float64    `json:"deliveryRate"`
	Deliveries   int        `json:"deliveries"`
	Clicks       int        `json:"clicks"`
	ClicksByDay  []DayCount `json:"clicksByDay"`
}
