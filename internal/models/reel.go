package models

import "time"

// Reel is a single discovered content item. Created by the extraction engine
// when a newly-seen, qualifying reel is found; immutable afterwards.
type Reel struct {
	ID           string    `json:"id" badgerhold:"key"`
	AccountID    int       `json:"account_id" badgerhold:"index"` // account that discovered it
	URL          string    `json:"url" badgerhold:"index"`        // canonical source URL, unique per account
	Author       string    `json:"author"`                        // extracted author handle
	MediaID      string    `json:"media_id"`                      // platform item id when resolvable
	LikeCount    int       `json:"like_count"`
	IsAd         bool      `json:"is_ad"`
	IsLive       bool      `json:"is_live"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// DirectMessage is one outreach attempt against a reel's author.
// At most one row exists per (reel, target user) pair - that uniqueness is
// the guard against messaging the same person twice for the same reel.
type DirectMessage struct {
	ID         string     `json:"id" badgerhold:"key"`
	ReelID     string     `json:"reel_id" badgerhold:"index"`
	TargetUser string     `json:"target_user" badgerhold:"index"`
	Message    string     `json:"message"`
	Sent       bool       `json:"sent"`
	SentAt     *time.Time `json:"sent_at,omitempty"` // nil until delivery succeeded
	CreatedAt  time.Time  `json:"created_at"`
}
