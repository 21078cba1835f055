package event

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/pkg/cerr"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		req   SubscribeEventsRequest
		event eventbus.Event
		want  bool
	}{
		{
			name:  "no filter",
			event: eventbus.Event{Type: eventbus.TypeTasksUpdated, ProjectName: "a"},
			want:  true,
		},
		{
			name:  "type filter excludes",
			req:   SubscribeEventsRequest{EventTypes: []eventbus.Type{eventbus.TypePRDUpdated}},
			event: eventbus.Event{Type: eventbus.TypeTasksUpdated},
			want:  false,
		},
		{
			name:  "project filter excludes other project",
			req:   SubscribeEventsRequest{ProjectName: "a"},
			event: eventbus.Event{Type: eventbus.TypeTasksUpdated, ProjectName: "b"},
			want:  false,
		},
		{
			name:  "project filter keeps global events",
			req:   SubscribeEventsRequest{ProjectName: "a"},
			event: eventbus.Event{Type: eventbus.TypeProjectsUpdated},
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(&tt.req, &tt.event))
		})
	}
}

func TestSubscribeEvents_Stream(t *testing.T) {
	bus := eventbus.New()
	path, handler := NewHandler(NewServer(bus))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewUnstartedServer(mux)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	client := connect.NewClient[SubscribeEventsRequest, eventbus.Event](
		srv.Client(), srv.URL+SubscribeEventsProcedure, connect.WithCodec(JSONCodec{}),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.CallServerStream(ctx, connect.NewRequest(&SubscribeEventsRequest{
		EventTypes:  []eventbus.Type{eventbus.TypeTasksUpdated},
		ProjectName: "demo",
	}))
	require.NoError(t, err)
	defer stream.Close()

	// The subscription is registered asynchronously, so keep publishing
	// until the first event arrives.
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bus.PublishNew(eventbus.TypePRDUpdated, "demo", nil, nil)
				bus.PublishNew(eventbus.TypeTasksUpdated, "other", nil, nil)
				bus.PublishNew(eventbus.TypeTasksUpdated, "demo", nil, map[string]string{"tag": "master"})
			}
		}
	}()

	require.True(t, stream.Receive(), "stream ended: %v", stream.Err())
	got := stream.Msg()
	assert.Equal(t, eventbus.TypeTasksUpdated, got.Type)
	assert.Equal(t, "demo", got.ProjectName)
	assert.Equal(t, "master", got.Metadata["tag"])
}

func TestSubscribeEvents_UnknownType(t *testing.T) {
	bus := eventbus.New()
	path, handler := NewHandler(NewServer(bus), connect.WithInterceptors(cerr.NewConvertConnectErrorInterceptor()))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := connect.NewClient[SubscribeEventsRequest, eventbus.Event](
		srv.Client(), srv.URL+SubscribeEventsProcedure, connect.WithCodec(JSONCodec{}),
	)
	stream, err := client.CallServerStream(context.Background(), connect.NewRequest(&SubscribeEventsRequest{
		EventTypes: []eventbus.Type{"nope"},
	}))
	require.NoError(t, err)
	defer stream.Close()

	assert.False(t, stream.Receive())
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(stream.Err()))
}
