// Package icon provides a flexible multi-variant rendering engine for UI symbols and feedback indicators.
package icon

// Icon identifies a symbol in the global registry.
type Icon int

const (
	Success Icon = iota
	Fail
	Progress
	Play
	Pause
	Stop
	Image
	Video
	Watch
)

// icons is the global registry mapping each Icon to its per-variant renderings.
var icons = map[Icon]*iconDef{
	Success: {
		emoji:   "✅",
		nerd:    "",
		plain:   "+",
		kaomoji: "(• ω •)",
		squares: "🟩",
	},
	Fail: {
		emoji:   "❌",
		nerd:    "",
		plain:   "x",
		kaomoji: "(╯°□°）╯",
		squares: "🟥",
	},
	Progress: {
		emoji:   "⏳",
		nerd:    "",
		plain:   "...",
		kaomoji: "(−_−;)",
		squares: "🟨",
	},
	Play: {
		emoji:   "▶️",
		nerd:    "",
		plain:   ">",
		kaomoji: "( ﾉ^ω^)ﾉ",
		squares: "🟢",
	},
	Pause: {
		emoji:   "⏸️",
		nerd:    "",
		plain:   "||",
		kaomoji: "(￣o￣)zzz",
		squares: "🟡",
	},
	Stop: {
		emoji:   "⏹️",
		nerd:    "",
		plain:   "#",
		kaomoji: "(-_-)",
		squares: "⬛",
	},
	Image: {
		emoji:   "🖼️",
		nerd:    "",
		plain:   "[img]",
		kaomoji: "(o^▽^o)",
		squares: "🟦",
	},
	Video: {
		emoji:   "🎬",
		nerd:    "",
		plain:   "[vid]",
		kaomoji: "(☆▽☆)",
		squares: "🟪",
	},
	Watch: {
		emoji:   "👀",
		nerd:    "",
		plain:   "~",
		kaomoji: "(¬‿¬)",
		squares: "⬜",
	},
}
