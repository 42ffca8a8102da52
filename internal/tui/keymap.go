package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyEnter     = "enter"
	KeyNew       = "n"
	KeyDelete    = "d"
	KeyReload    = "r"
	KeyToggleAll = "a"

	KeyRecord    = "ctrl+r"
	KeySave      = "ctrl+s"
	KeyCancel    = "esc"
	KeyBackspace = "backspace"
)
