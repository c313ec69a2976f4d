package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

var _ storage.Snapshotter = (*Store)(nil)

var (
	bucketAccounts    = []byte("accounts")
	bucketWebsites    = []byte("websites")
	bucketSubscribers = []byte("subscribers")
	bucketSegments    = []byte("segments")
	bucketCampaigns   = []byte("campaigns")
	bucketDeliveries  = []byte("deliveries")
	bucketClicks      = []byte("clicks")

	allBuckets = [][]byte{
		bucketAccounts, bucketWebsites, bucketSubscribers, bucketSegments,
		bucketCampaigns, bucketDeliveries, bucketClicks,
	}
)

// Store writes snapshots of the in-memory store to a BoltDB file.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the snapshot file.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap *model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		for _, a := range snap.Accounts {
			if err := putJSON(tx.Bucket(bucketAccounts), []byte(a.ID), a); err != nil {
				return err
			}
		}
		for _, w := range snap.Websites {
			if err := putJSON(tx.Bucket(bucketWebsites), []byte(w.ID), w); err != nil {
				return err
			}
		}
		for _, sub := range snap.Subscribers {
			if err := putJSON(tx.Bucket(bucketSubscribers), []byte(sub.ID), sub); err != nil {
				return err
			}
		}
		for _, seg := range snap.Segments {
			if err := putJSON(tx.Bucket(bucketSegments), []byte(seg.ID), seg); err != nil {
				return err
			}
		}
		for _, c := range snap.Campaigns {
			if err := putJSON(tx.Bucket(bucketCampaigns), []byte(c.ID), c); err != nil {
				return err
			}
		}
		for _, d := range snap.Deliveries {
			if err := putSequenced(tx.Bucket(bucketDeliveries), d); err != nil {
				return err
			}
		}
		for _, c := range snap.Clicks {
			if err := putSequenced(tx.Bucket(bucketClicks), c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads the stored snapshot; a fresh file yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &model.Snapshot{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := forEach(tx.Bucket(bucketAccounts), func(a *model.Account) { snap.Accounts = append(snap.Accounts, a) }); err != nil {
			return err
		}
		if err := forEach(tx.Bucket(bucketWebsites), func(w *model.Website) { snap.Websites = append(snap.Websites, w) }); err != nil {
			return err
		}
		if err := forEach(tx.Bucket(bucketSubscribers), func(sub *model.Subscriber) { snap.Subscribers = append(snap.Subscribers, sub) }); err != nil {
			return err
		}
		if err := forEach(tx.Bucket(bucketSegments), func(seg *model.Segment) { snap.Segments = append(snap.Segments, seg) }); err != nil {
			return err
		}
		if err := forEach(tx.Bucket(bucketCampaigns), func(c *model.Campaign) { snap.Campaigns = append(snap.Campaigns, c) }); err != nil {
			return err
		}
		if err := forEach(tx.Bucket(bucketDeliveries), func(d *model.DeliveryRecord) { snap.Deliveries = append(snap.Deliveries, d) }); err != nil {
			return err
		}
		return forEach(tx.Bucket(bucketClicks), func(c *model.ClickRecord) { snap.Clicks = append(snap.Clicks, c) })
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func putJSON(bkt *bolt.Bucket, key []byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bkt.Put(key, payload)
}

func putSequenced(bkt *bolt.Bucket, v any) error {
	id, err := bkt.NextSequence()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return putJSON(bkt, key, v)
}

func forEach[T any](bkt *bolt.Bucket, fn func(*T)) error {
	if bkt == nil {
		return nil
	}
	return bkt.ForEach(func(_, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		fn(&item)
		return nil
	})
}
