// Package ui holds the terminal presentation of a run: colored message
// helpers, a console progress observer, the per-source summary table and
// optional desktop notifications.
package ui
