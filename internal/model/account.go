package model

import "time"

// Account is a platform tenant. APIKey is its master credential.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// Website is a site registered under an account. SiteKey is the credential
// the embeddable client uses to register subscribers.
type Website struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Domain    string    `json:"domain"`
	SiteKey   string    `json:"siteKey"`
	CreatedAt time.Time `json:"createdAt"`
}
