package contracts

// Driver is the registry's JSON shape for a driver.
type Driver struct {
	ID           string    `json:"_id"`
	DriverName   string    `json:"driverName"`
	MobileNumber string    `json:"mobileNumber"`
	RcBookNumber string    `json:"rcBookNumber"`
	CarModel     string    `json:"carModel"`
	IsActive     bool      `json:"isActive"`
	Location     *GeoPoint `json:"location,omitempty"`
}

// RegisterDriverRequest is the body of POST /drivers/register/driver.
type RegisterDriverRequest struct {
	DriverName   string   `json:"driverName"`
	MobileNumber string   `json:"mobileNumber"`
	Password     string   `json:"password"`
	RcBookNumber string   `json:"rcBookNumber"`
	CarModel     string   `json:"carModel"`
	IsActive     string   `json:"isActive"`
	Location     GeoPoint `json:"location"`
}

// MessageResponse is used for acknowledgements and error bodies.
type MessageResponse struct {
	Message string `json:"message"`
}
