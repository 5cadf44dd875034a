package models

import "time"

// Cookie is the subset of browser cookie state persisted between runs
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
}

// SessionBlob is the serialized cookie set for one account. Overwritten after
// every successful login and again at the end of every run; read once at run
// start.
type SessionBlob struct {
	AccountID int       `json:"account_id"`
	Cookies   []Cookie  `json:"cookies"`
	SavedAt   time.Time `json:"saved_at"`
}
