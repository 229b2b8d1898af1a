package avespeed

// Video playback state can be [Stopped], [Playing] or [Paused].
type PlaybackState uint8

// Returns a string representation of the playback state
// ("Stopped", "Playing", "Paused", "Unknown").
func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

// Speed limits accepted by [Player.ChangeSpeed](). Any value in between is
// valid, [Speeds] lists the presets a typical UI exposes.
const (
	MinSpeed = 0.25
	MaxSpeed = 2.0
)

// Speeds lists the preset playback speed multipliers.
var Speeds = []float64{0.25, 0.5, 0.75, 1.0, 1.25, 1.5, 2.0}

// AudioStatus describes what happened to the audio track of the
// currently opened media.
type AudioStatus uint8

const (
	AudioNone        AudioStatus = iota // no media opened
	AudioLoaded                         // audio buffer ready
	AudioMissing                        // media has no audio track
	AudioFailed                         // extraction failed, video only
	AudioUnavailable                    // output device refused playback, video only
)

// Returns a user facing description of the audio status.
func (s AudioStatus) String() string {
	switch s {
	case AudioLoaded:
		return "Audio loaded (supports all speeds)"
	case AudioMissing:
		return "No audio track in video"
	case AudioFailed:
		return "Audio extraction failed"
	case AudioUnavailable:
		return "Audio output unavailable"
	default:
		return ""
	}
}
