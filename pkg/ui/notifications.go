package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("Space-Track").Show($toast)
	`, title, message)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// Notifier handles cross-platform notifications
type Notifier struct {
	sender NotificationSender
	out    io.Writer
}

// NewNotifier creates a new Notifier based on the current platform
func NewNotifier() *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWithSender(sender, os.Stderr)
}

// NewNotifierWithSender builds a Notifier around sender, echoing every
// notification to out. A nil sender only echoes.
func NewNotifierWithSender(sender NotificationSender, out io.Writer) *Notifier {
	if out == nil {
		out = io.Discard
	}
	return &Notifier{sender: sender, out: out}
}

// SendNotification sends a desktop notification and prints to console
func (n *Notifier) SendNotification(title, message string) error {
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	return n.send(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) error {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	return n.send(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) error {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	return n.send(title, message)
}

func (n *Notifier) send(title, message string) error {
	if n.sender == nil {
		return nil
	}
	return n.sender.Send(title, message)
}

// ThrottleNotifier announces rate limit waits. It has the shape of
// ratelimit.ThrottleFunc.
func (n *Notifier) ThrottleNotifier(ctx context.Context, until time.Time) error {
	wait := time.Until(until).Round(time.Second)
	return n.SendNotification("Rate limit reached",
		fmt.Sprintf("Holding queries for %s, until %s", wait, until.Format("15:04:05")))
}
