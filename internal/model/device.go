package model

import "time"

// Device is the identity anchor for a telemetry stream. The id is assigned
// externally (it ships with the device firmware) and never changes; all the
// other fields are display metadata an operator may fill in later.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Species   string    `json:"species,omitempty"`
	Location  string    `json:"location,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
