// Embedded static assets: collectible reward images for unlocked
// achievements, served under /assets/rewards/.
package assets

import "embed"

//go:embed rewards/*.png
var FS embed.FS
