package storage

import (
	"context"
	"time"

	"github.com/chirpy-labs/chirpy-push/internal/model"
)

// Store abstracts entity persistence. Implementations must apply every
// mutation that touches both a parent's child set and a child record as one
// step visible to readers.
type Store interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	AccountByEmail(ctx context.Context, email string) (*model.Account, error)
	AccountByKey(ctx context.Context, apiKey string) (*model.Account, error)

	CreateWebsite(ctx context.Context, website *model.Website) error
	GetWebsite(ctx context.Context, id string) (*model.Website, error)
	WebsiteByKey(ctx context.Context, siteKey string) (*model.Website, error)
	ListWebsites(ctx context.Context, accountID string) ([]*model.Website, error)
	DeleteWebsite(ctx context.Context, id string) error

	CreateSubscriber(ctx context.Context, sub *model.Subscriber) error
	GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context, websiteID string) ([]*model.Subscriber, error)
	RemoveSubscriber(ctx context.Context, id string) error

	CreateSegment(ctx context.Context, segment *model.Segment) error
	GetSegment(ctx context.Context, id string) (*model.Segment, error)
	ListSegments(ctx context.Context, websiteID string) ([]*model.Segment, error)
	DeleteSegment(ctx context.Context, id string) error

	CreateCampaign(ctx context.Context, campaign *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, websiteID string) ([]*model.Campaign, error)
	DeleteCampaign(ctx context.Context, id string) error
	CompleteCampaign(ctx context.Context, id string, stats model.Stats, sentAt time.Time) (*model.Campaign, error)

	AppendDelivery(ctx context.Context, record *model.DeliveryRecord) error
	ListDeliveries(ctx context.Context, campaignID string) ([]*model.DeliveryRecord, error)
	RecordClick(ctx context.Context, record *model.ClickRecord) error
	ListClicks(ctx context.Context, campaignID string) ([]*model.ClickRecord, error)

	Snapshot(ctx context.Context) (*model.Snapshot, error)
	Restore(ctx context.Context, snap *model.Snapshot) error
	Stats(ctx context.Context) (model.PlatformStats, error)
}

// Snapshotter persists store snapshots between process runs.
type Snapshotter interface {
	Save(ctx context.Context, snap *model.Snapshot) error
	Load(ctx context.Context) (*model.Snapshot, error)
	Close() error
}
