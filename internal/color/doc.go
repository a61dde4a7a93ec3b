// Package color holds stackctl's terminal palette and the lipgloss styles
// used for stage status lines and the run summary.
//
// Colors are semantic: Success for completed stages, Warning for stages that
// finished with a non-fatal problem, Error for fatal stages, Muted for
// skipped stages and secondary text.
//
// Setup disables color when NO_COLOR is set or the output is not a terminal,
// and honours STACKCTL_THEME=dark|light to force the background mode.
package color
