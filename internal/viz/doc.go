// Package viz renders simulation output in the terminal.
//
//   - [PlotSeries]: asciigraph charts of stored diagnostics
//   - [Heatmap]: colour-shaded view of a 2D field
//   - [Profile]: Braille line plot of a cross-section
//   - [LiveModel]: Bubble Tea program that steps an experiment and redraws
//
// # Key Bindings (live)
//
//	Space - Pause/Resume
//	V     - Cycle displayed field (elevation, speed, depth)
//	+/-   - Output interval up/down
//	T     - Cycle colour themes
//	Q     - Quit
package viz
