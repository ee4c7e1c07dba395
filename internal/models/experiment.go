package models

import "time"

type Experiment struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Active         bool      `json:"active"`
	GUIURL         *string   `json:"gui_url,omitempty"`
	NotifyEmail    *string   `json:"notify_email,omitempty"`
	InitialProject []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
