package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/tmdash/internal/eventbus"
)

// Dispatcher turns bus events into push notifications: finished CLI
// commands and changes of a project's reconciled status.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.InfoContext(ctx, "push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "push notification dispatcher stopped")
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if payload := notificationFor(event); payload != nil {
				d.sender.SendToAll(ctx, event.ProjectName, payload)
			}
		}
	}
}

// notifiedCommands are the long-running CLI commands worth a push.
var notifiedCommands = map[string]bool{
	"init":      true,
	"add-task":  true,
	"parse-prd": true,
}

// notificationFor returns nil for events that do not warrant a push.
func notificationFor(event *eventbus.Event) *NotificationPayload {
	url := "/"
	if event.ProjectName != "" {
		url = "/projects/" + event.ProjectName
	}
	switch event.Type {
	case eventbus.TypeCommandCompleted:
		command := event.Metadata["command"]
		if !notifiedCommands[command] {
			return nil
		}
		title := "TaskMaster: " + command + " finished"
		body := fmt.Sprintf("%s completed for %s", command, event.ProjectName)
		if event.Metadata["success"] != "true" {
			title = "TaskMaster: " + command + " failed"
			body = fmt.Sprintf("%s failed for %s (exit code %s)", command, event.ProjectName, event.Metadata["exit_code"])
		}
		return &NotificationPayload{Title: title, Body: body, URL: url, Tag: event.ID}
	case eventbus.TypeProjectUpdated:
		prev, status := event.Metadata["previous_status"], event.Metadata["status"]
		if prev == "" || status == "" || prev == status {
			return nil
		}
		return &NotificationPayload{
			Title: "TaskMaster status changed",
			Body:  fmt.Sprintf("%s: %s → %s", event.ProjectName, prev, status),
			URL:   url,
			Tag:   "status-" + event.ProjectName,
		}
	}
	return nil
}
