package scheduler

// State enumerates the phases of the display loop.
type State int

const (
	// Idle means nothing is playable; the screen is clear and the loop waits
	// for a refresh that finds entries.
	Idle State = iota
	// Loading means a load was issued and its completion is awaited.
	Loading
	// PlayingImage means an image is on screen with a countdown running.
	PlayingImage
	// PlayingVideo means a video is on screen awaiting its natural end.
	PlayingVideo
	// Paused means playback is frozen. Images keep their remaining display
	// time; a video's end-of-file wait lies dormant.
	Paused
	// Recovering means the player connection is gone and the loop waits for
	// a fresh one. The cursor carries the resume intent.
	Recovering
	// Halted is terminal: the supervisor gave up on the player process and
	// only an external restart brings the loop back.
	Halted
)

// String returns the identifier the status surface reports.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case PlayingImage:
		return "playing_image"
	case PlayingVideo:
		return "playing_video"
	case Paused:
		return "paused"
	case Recovering:
		return "recovering"
	case Halted:
		return "error"
	default:
		return "unknown"
	}
}
