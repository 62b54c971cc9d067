// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// DefinedFieldsCount represents the total cardinality of the application configuration schema.
const DefinedFieldsCount = 17

// Playback Loop - these keys govern the media rotation itself.
const (
	PlaybackMediaDirectory = "playback.media_directory"
	PlaybackImageDuration  = "playback.image_duration"
	PlaybackResume         = "playback.resume"
)

// Player Process - these keys configure the external mpv rendering engine.
const (
	PlayerPath           = "player.path"
	PlayerVideoOutput    = "player.video_output"
	PlayerHardwareDecode = "player.hardware_decode"
	PlayerFullscreen     = "player.fullscreen"
	PlayerExtraArgs      = "player.extra_args"
	PlayerRestartMax     = "player.restart_max"
)

// Directory Watching - these keys control the filesystem change pipeline feeding playlist refreshes.
const (
	WatchEnabled  = "watch.enabled"
	WatchDebounce = "watch.debounce_ms"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics and auditing system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern control-command behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)
