package assets

import (
	_ "embed"

	"fyne.io/fyne/v2"
)

//go:embed icon.svg
var iconSVG []byte

// Icon returns the ScoutMe application icon.
func Icon() fyne.Resource {
	return fyne.NewStaticResource("scoutme.svg", iconSVG)
}
