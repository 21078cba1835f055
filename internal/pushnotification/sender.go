package pushnotification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/tmdash/internal/config"
	"github.com/kazz187/tmdash/internal/pushsubscription"
)

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type sendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

type Sender struct {
	pushEnv     *config.PushEnv
	repo        pushsubscription.Repository
	send        sendFunc
	concurrency int
}

func NewSender(pushEnv *config.PushEnv, repo pushsubscription.Repository) *Sender {
	return &Sender{
		pushEnv:     pushEnv,
		repo:        repo,
		send:        webpush.SendNotification,
		concurrency: 4,
	}
}

// SendToAll pushes payload to every subscription interested in projectName.
// It returns the number of deliveries the push services accepted.
func (s *Sender) SendToAll(ctx context.Context, projectName string, payload *NotificationPayload) int {
	if !s.pushEnv.PushEnabled() {
		slog.WarnContext(ctx, "push notification: VAPID keys not configured, skipping")
		return 0
	}

	subs, err := s.repo.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to list subscriptions", "error", err)
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to marshal payload", "error", err)
		return 0
	}

	p := pool.NewWithResults[bool]().WithMaxGoroutines(s.concurrency)
	for _, sub := range subs {
		if !sub.Wants(projectName) {
			continue
		}
		p.Go(func() bool {
			return s.sendToSubscription(ctx, sub, data)
		})
	}
	delivered := 0
	for _, ok := range p.Wait() {
		if ok {
			delivered++
		}
	}
	return delivered
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := s.send(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.pushEnv.VAPIDPublicKey,
		VAPIDPrivateKey: s.pushEnv.VAPIDPrivateKey,
		Subscriber:      s.pushEnv.VAPIDContact,
		TTL:             86400,
	})
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push notification: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return false
	case resp.StatusCode >= 400:
		slog.WarnContext(ctx, "push notification: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
		return false
	}
	return true
}
