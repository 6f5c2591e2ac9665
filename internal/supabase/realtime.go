package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// RealtimeClient pushes job lifecycle events to the client channels watched
// by the frontend.
type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Go client has no direct Realtime publish. Status updates written
	// through the database trigger Realtime row events on the jobs table,
	// which is what the frontend subscribes to.
	return nil
}

func (r *RealtimeClient) PublishJobEvent(jobID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("job:%s", jobID.String())
	return r.PublishEvent(channel, event, payload)
}

func (r *RealtimeClient) PublishUserEvent(userID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("user:%s", userID.String())
	return r.PublishEvent(channel, event, payload)
}
