package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/fsutil"
)

const themeFilename = "theme.json"

var royalBlue = color.NRGBA{R: 18, G: 57, B: 166, A: 255}        // #1239A6
var royalBlueLight = color.NRGBA{R: 224, G: 233, B: 255, A: 255} // zebra rows, light
var royalBlueDark = color.NRGBA{R: 28, G: 36, B: 64, A: 255}     // zebra rows, dark

// themePrefs is the persisted GUI appearance.
type themePrefs struct {
	Variant string `json:"variant"` // "light" or "dark"
}

func (p themePrefs) dark() bool { return p.Variant != "light" }

// loadThemePrefs reads theme.json from dir, falling back to def when the
// file is missing or unreadable.
func loadThemePrefs(dir, def string) themePrefs {
	fallback := themePrefs{Variant: def}
	if fallback.Variant == "" {
		fallback.Variant = "dark"
	}
	data, err := os.ReadFile(filepath.Join(dir, themeFilename))
	if err != nil {
		return fallback
	}
	var p themePrefs
	if err := json.Unmarshal(data, &p); err != nil {
		return fallback
	}
	switch p.Variant {
	case "light", "dark":
		return p
	default:
		return fallback
	}
}

func saveThemePrefs(dir string, p themePrefs) error {
	if p.Variant != "light" && p.Variant != "dark" {
		return errors.New("theme variant must be light or dark")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode theme: %w", err)
	}
	return fsutil.WriteFileAtomic(filepath.Join(dir, themeFilename), data, 0o600)
}

// accentTheme forces the chosen variant and applies the royal blue accent.
type accentTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func newAccentTheme(p themePrefs) accentTheme {
	v := theme.VariantLight
	if p.dark() {
		v = theme.VariantDark
	}
	return accentTheme{Theme: theme.DefaultTheme(), variant: v}
}

func (a accentTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch n {
	case theme.ColorNamePrimary:
		return royalBlue
	case theme.ColorNameFocus:
		return color.NRGBA{R: royalBlue.R, G: royalBlue.G, B: royalBlue.B, A: 200}
	case theme.ColorNameHover:
		return color.NRGBA{R: royalBlue.R, G: royalBlue.G, B: royalBlue.B, A: 30}
	}
	return a.Theme.Color(n, a.variant)
}

func (a accentTheme) zebra() color.Color {
	if a.variant == theme.VariantDark {
		return royalBlueDark
	}
	return royalBlueLight
}
