package model

import "time"

// ChannelStats holds avg/min/max for one channel over a window. All three are
// nil when the window contained no samples for that channel (not zero, which
// would be a legitimate measurement).
type ChannelStats struct {
	Avg *float64 `json:"avg"`
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// StatsSummary is the statistical summary of a trailing window of readings.
type StatsSummary struct {
	Count        int64        `json:"count"`
	Temperature  ChannelStats `json:"temperature"`
	AirHumidity  ChannelStats `json:"air_humidity"`
	SoilMoisture ChannelStats `json:"soil_moisture"`
	Light        ChannelStats `json:"light"`
}

// ChartBucket is one fixed-width averaging bucket for chart rendering.
// BucketStart is aligned to absolute epoch time, not calendar boundaries.
type ChartBucket struct {
	BucketStart  time.Time `json:"time_bucket"`
	Temperature  *float64  `json:"temperature"`
	AirHumidity  *float64  `json:"air_humidity"`
	SoilMoisture *float64  `json:"soil_moisture"`
	Light        *float64  `json:"light"`
	ReadingCount int       `json:"reading_count"`
}
