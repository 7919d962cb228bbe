package featureflag

type Flag string

const (
	// Runs every culling pass on the frame loop goroutine.
	FlagDisableAsyncCulling Flag = "DISABLE_ASYNC_CULLING"

	// Freezes entities at their current position.
	FlagDisableEntityMotion Flag = "DISABLE_ENTITY_MOTION"

	// Stops serving the websocket visibility feed.
	FlagDisableVisibilityFeed Flag = "DISABLE_VISIBILITY_FEED"
)
