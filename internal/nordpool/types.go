package nordpool

// Status reflects the auction state Nord Pool reports per delivery area.
type Status string

const (
	StatusMissing     Status = "Missing"
	StatusPreliminary Status = "Preliminary"
	StatusFinal       Status = "Final"
	StatusCancelled   Status = "Cancelled"
)

// PricePeriod is one day-ahead auction interval for an area. Price is nil
// when Nord Pool has no value for the interval; prices may be negative.
type PricePeriod struct {
	DeliveryStart string   `json:"deliveryStart"`
	DeliveryEnd   string   `json:"deliveryEnd"`
	Price         *float64 `json:"price"`
}

// VolumePeriod is one aggregated buy-volume interval for an area (MW).
type VolumePeriod struct {
	DeliveryStart string   `json:"deliveryStart"`
	DeliveryEnd   string   `json:"deliveryEnd"`
	Buy           *float64 `json:"buy"`
}

// AreaPrices is the per-area slice of a batched day-ahead price response.
type AreaPrices struct {
	Market       string        `json:"market"`
	DeliveryArea string        `json:"deliveryArea"`
	Status       Status        `json:"status"`
	AveragePrice float64       `json:"averagePrice"`
	Prices       []PricePeriod `json:"prices"`
}

// AreaVolumes is the per-area slice of a batched buy-volume response.
type AreaVolumes struct {
	Market       string         `json:"market"`
	DeliveryArea string         `json:"deliveryArea"`
	Status       Status         `json:"status"`
	Volumes      []VolumePeriod `json:"volumes"`
}
