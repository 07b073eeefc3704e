package gateway

import (
	"context"
	"encoding/json"
	"log"

	"jam-session-service/internal/jam"
)

// RunSubscriber consumes room-addressed envelopes from the broadcast
// channel and forwards them to the hub. It returns when the subscription
// closes (redis gone or ctx canceled).
func (s *Server) RunSubscriber(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, jam.BroadcastChannel)
	defer sub.Close()

	for msg := range sub.Channel() {
		var env jam.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("jam-service: decode envelope: %v", err)
			continue
		}
		data, err := json.Marshal(Frame{Type: env.Type, Payload: env.Payload})
		if err != nil {
			log.Printf("jam-service: encode frame: %v", err)
			continue
		}
		s.hub.Broadcast(env.Room, data)
	}
}
