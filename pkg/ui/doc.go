// Package ui holds the plain terminal output of the spacetrack command:
// colors, desktop notifications and a one-line batch progress meter. The
// full-screen dashboard lives in ui/tui.
package ui
