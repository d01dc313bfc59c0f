package domain

// Location is one row of the address table. Index 0 is the hub.
type Location struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Street string `json:"street"`
}

// Dataset is everything a run is optimized against.
type Dataset struct {
	Locations []Location  `json:"locations"`
	Distances [][]float64 `json:"distances"`
	Packages  []*Package  `json:"packages"`
}
