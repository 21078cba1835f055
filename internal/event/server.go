package event

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"connectrpc.com/connect"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/pkg/cerr"
	"github.com/kazz187/tmdash/pkg/clog"
)

const (
	ServiceName              = "tmdash.v1.EventService"
	SubscribeEventsProcedure = "/" + ServiceName + "/SubscribeEvents"
)

var knownTypes = []eventbus.Type{
	eventbus.TypeTasksUpdated,
	eventbus.TypeProjectUpdated,
	eventbus.TypeMCPStatusChanged,
	eventbus.TypePRDUpdated,
	eventbus.TypeProjectsUpdated,
	eventbus.TypeCommandCompleted,
}

type SubscribeEventsRequest struct {
	EventTypes  []eventbus.Type `json:"eventTypes,omitempty"`
	ProjectName string          `json:"projectName,omitempty"`
}

type Server struct {
	eventBus *eventbus.Bus
	bufSize  int
}

func NewServer(eventBus *eventbus.Bus) *Server {
	return &Server{eventBus: eventBus, bufSize: 64}
}

// NewHandler mounts the event service. It returns the path prefix to
// register on the router, like a generated Connect handler constructor.
func NewHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	subscribe := connect.NewServerStreamHandler(SubscribeEventsProcedure, s.SubscribeEvents, opts...)
	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SubscribeEventsProcedure:
			subscribe.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *Server) SubscribeEvents(ctx context.Context, req *connect.Request[SubscribeEventsRequest], stream *connect.ServerStream[eventbus.Event]) error {
	for _, et := range req.Msg.EventTypes {
		if !slices.Contains(knownTypes, et) {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown event type %q", et), nil)
		}
	}
	if req.Msg.ProjectName != "" {
		clog.AddProject(ctx, req.Msg.ProjectName)
	}

	subID, ch := s.eventBus.Subscribe(s.bufSize)
	defer s.eventBus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if !matches(req.Msg, event) {
				continue
			}
			if err := stream.Send(event); err != nil {
				return err
			}
		}
	}
}

// matches applies the subscription filters. Events without a project, such
// as projects-updated, pass the project filter.
func matches(req *SubscribeEventsRequest, event *eventbus.Event) bool {
	if len(req.EventTypes) > 0 && !slices.Contains(req.EventTypes, event.Type) {
		return false
	}
	if req.ProjectName != "" && event.ProjectName != "" && event.ProjectName != req.ProjectName {
		return false
	}
	return true
}
