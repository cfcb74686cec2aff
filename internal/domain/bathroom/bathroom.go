package bathroom

import "github.com/goccy/go-json"

// Bathroom is one restroom row exactly as the Refuge Restrooms API
// returned it. Rows are passed through untouched.
type Bathroom = json.RawMessage

// Query selects bathrooms near a point.
type Query struct {
	Latitude   float64
	Longitude  float64
	Accessible bool
}
