package config

// Stream defaults, matching the service recommendations.
const (
	DefaultFrameRate   = 10
	DefaultQuality     = 70
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
)

// DefaultStore returns a config store with all defaults filled in,
// ready to be written as a starting point.
func DefaultStore() Store {
	return Store{
		Service: Service{
			Endpoint: "wss://example.com/ws/live/v1/",
		},
		Stream: Stream{
			FrameRate: DefaultFrameRate,
			Quality:   DefaultQuality,
			Width:     DefaultFrameWidth,
			Height:    DefaultFrameHeight,
		},
	}
}
