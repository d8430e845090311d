package ui

import (
	"os"

	"github.com/fatih/color"
)

// ColorMode selects whether output is colored, stripped of color, or
// forced to color regardless of TTY detection.
type ColorMode int

const (
	ColorModeUndefined ColorMode = iota + 1
	ColorModeSuppressed
	ColorModeForced
)

// GetColorModeFromEnv mirrors the supports-color NodeJS package's FORCE_COLOR
// convention: "0"/"false" disables, "1"/"2"/"3"/"true" forces on.
func GetColorModeFromEnv() ColorMode {
	switch forceColor := os.Getenv("FORCE_COLOR"); {
	case forceColor == "false" || forceColor == "0":
		return ColorModeSuppressed
	case forceColor == "true" || forceColor == "1" || forceColor == "2" || forceColor == "3":
		return ColorModeForced
	default:
		return ColorModeUndefined
	}
}

func applyColorMode(colorMode ColorMode) ColorMode {
	switch colorMode {
	case ColorModeForced:
		color.NoColor = false
	case ColorModeSuppressed:
		color.NoColor = true
	case ColorModeUndefined:
	default:
		// color.NoColor already carries its default from isTTY / NO_COLOR.
	}

	if color.NoColor {
		return ColorModeSuppressed
	}
	return ColorModeForced
}
