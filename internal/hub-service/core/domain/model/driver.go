package model

import "time"

type Driver struct {
	ID           string
	DriverName   string
	MobileNumber string
	PasswordHash []byte
	RcBookNumber string
	CarModel     string
	IsActive     bool
	Latitude     *float64
	Longitude    *float64
	// LocationSeq grows by one with every stored position.
	LocationSeq uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LocationUpdate is a position reported over the realtime channel.
type LocationUpdate struct {
	DriverID  string
	Latitude  float64
	Longitude float64
	// Captain marks the announcement sent right after registration.
	Captain bool
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject string
	Role    string
}
