package apimodel

// StationStatus is the api view of one station slot.
type StationStatus struct {
	Band         string  `json:"band"`
	Index        int     `json:"index"`
	PlayType     string  `json:"play_type"`
	OnAir        bool    `json:"on_air"`
	Active       bool    `json:"active"`
	CurrentTitle string  `json:"current_title,omitempty"`
	QueueLen     int     `json:"queue_len"`
	Volume       float64 `json:"volume"`
}

// TunerStatus is the api view of the dial.
type TunerStatus struct {
	DialValue int    `json:"dial_value"`
	Band      string `json:"band"`
}
