package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"reviewscraper/pkg/models"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender shells out to a desktop notification tool
type commandSender struct {
	name string
	args func(title, message string) []string
	run  func(name string, args ...string) error
}

func (s commandSender) Send(title, message string) error {
	return s.run(s.name, s.args(title, message)...)
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// desktopSender returns the sender for goos, or nil where only console
// output is supported.
func desktopSender(goos string) NotificationSender {
	switch goos {
	case "linux":
		return commandSender{
			name: "notify-send",
			args: func(title, message string) []string {
				return []string{"--app-name=reviewscraper", title, message}
			},
			run: runCommand,
		}
	case "darwin":
		return commandSender{
			name: "osascript",
			args: func(title, message string) []string {
				script := fmt.Sprintf("display notification %s with title %s", appleScriptString(message), appleScriptString(title))
				return []string{"-e", script}
			},
			run: runCommand,
		}
	default:
		return nil
	}
}

// appleScriptString quotes s as an AppleScript string literal. Company
// names and error text can carry quotes.
func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// Notifier prints run notifications and mirrors them to the desktop
// when the platform supports it.
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier() *Notifier {
	return &Notifier{sender: desktopSender(runtime.GOOS)}
}

// NewNotifierWithSender creates a Notifier using sender, which may be nil
// for console-only output.
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyRun announces the end of a scrape. Interrupted runs and runs where
// every source failed are reported as errors.
func (n *Notifier) NotifyRun(meta models.RunMetadata) {
	title := "Reviews ready: " + meta.Company
	msg := runNotice(meta)

	failed := meta.Failed()
	switch {
	case meta.Cancelled:
		n.SendError("Scrape interrupted: "+meta.Company, msg)
	case len(meta.Sources) > 0 && len(failed) == len(meta.Sources):
		n.SendError("Scrape failed: "+meta.Company, msg)
	case len(failed) > 0:
		n.SendNotification(title, msg)
	default:
		n.SendSuccess(title, msg)
	}
}

// runNotice summarises kept reviews per source, e.g.
// "42 reviews (G2 30, Capterra 12); TrustRadius failed".
func runNotice(meta models.RunMetadata) string {
	var kept, failed []string
	for _, r := range meta.Sources {
		if r.Status == models.StatusFailed {
			failed = append(failed, r.Source.DisplayName())
			continue
		}
		kept = append(kept, fmt.Sprintf("%s %d", r.Source.DisplayName(), r.ReviewsKept))
	}

	msg := fmt.Sprintf("%d reviews", meta.TotalReviews)
	if len(kept) > 0 {
		msg += " (" + strings.Join(kept, ", ") + ")"
	}
	if len(failed) > 0 {
		msg += "; " + strings.Join(failed, ", ") + " failed"
	}
	return msg
}

// SendNotification prints an informational notification
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(Output, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendError prints an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(Output, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess prints a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(Output, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// send ignores delivery errors; the console copy is authoritative
func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}
