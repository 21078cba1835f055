package pushnotification

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/tmdash/internal/config"
	"github.com/kazz187/tmdash/internal/pushsubscription"
	"github.com/kazz187/tmdash/pkg/cerr"
)

type Server struct {
	pushEnv *config.PushEnv
	repo    pushsubscription.Repository
	sender  *Sender
}

func NewServer(pushEnv *config.PushEnv, repo pushsubscription.Repository, sender *Sender) *Server {
	return &Server{
		pushEnv: pushEnv,
		repo:    repo,
		sender:  sender,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/vapid-public-key", s.GetVapidPublicKey)
	r.Post("/subscriptions", s.RegisterPushSubscription)
	r.Delete("/subscriptions", s.UnregisterPushSubscription)
	r.Post("/test", s.SendTestNotification)
}

type RegisterPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	Projects []string `json:"projects,omitempty"`
}

type UnregisterPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) GetVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.pushEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"publicKey": s.pushEnv.VAPIDPublicKey})
}

// RegisterPushSubscription is idempotent per endpoint: registering a known
// endpoint again refreshes its keys and project filter.
func (s *Server) RegisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterPushSubscriptionRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	e := cerr.NewError(cerr.InvalidArgument, "invalid push subscription", nil)
	if req.Endpoint == "" {
		_ = e.AddDetailMessageWithCode("endpoint is required", "endpoint.required")
	}
	if req.Keys.P256dh == "" {
		_ = e.AddDetailMessageWithCode("keys.p256dh is required", "keys.p256dh.required")
	}
	if req.Keys.Auth == "" {
		_ = e.AddDetailMessageWithCode("keys.auth is required", "keys.auth.required")
	}
	if len(e.Details) > 0 {
		cerr.SetJSONError(ctx, e)
		return
	}

	sub, err := s.repo.FindByEndpoint(ctx, req.Endpoint)
	switch {
	case err == nil:
	case cerr.IsCode(err, cerr.NotFound):
		sub = &pushsubscription.Subscription{
			ID:        ulid.Make().String(),
			Endpoint:  req.Endpoint,
			CreatedAt: time.Now(),
		}
	default:
		cerr.SetJSONError(ctx, err)
		return
	}
	sub.P256dhKey = req.Keys.P256dh
	sub.AuthKey = req.Keys.Auth
	sub.Projects = req.Projects
	if err := s.repo.Save(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"subscription": sub})
}

func (s *Server) UnregisterPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UnregisterPushSubscriptionRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if err := s.repo.DeleteByEndpoint(ctx, req.Endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, struct{}{})
}

func (s *Server) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	delivered := s.sender.SendToAll(ctx, "", &NotificationPayload{
		Title: "tmdash test",
		Body:  "Push notifications are working!",
	})
	cerr.SetJSONResponse(ctx, map[string]int{"delivered": delivered})
}
