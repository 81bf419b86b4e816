package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/events"
)

func TestBridgeFansOutToTenantGroup(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	dispatcher := events.NewInMemoryDispatcher()
	bridge := NewBridge(hub, nil, "", zap.NewNop())
	bridge.RegisterHandlers(dispatcher)

	clientA := newJoinedClient(t, hub, "tenant-a")
	clientB := newJoinedClient(t, hub, "tenant-b")

	err := dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TenantID: "tenant-a",
		TicketID: "ticket-1",
		Payload:  events.TicketDeletedPayload{ID: "ticket-1"},
	})
	require.NoError(t, err)

	frame := receive(t, clientA)
	requireSilent(t, clientB)

	var msg struct {
		Event string                      `json:"event"`
		Data  events.TicketDeletedPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &msg))
	require.Equal(t, "ticket-deleted", msg.Event)
	require.Equal(t, "ticket-1", msg.Data.ID)
}

func TestBridgeDropsEventsWithoutTenant(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	dispatcher := events.NewInMemoryDispatcher()
	bridge := NewBridge(hub, nil, "", zap.NewNop())
	bridge.RegisterHandlers(dispatcher)

	client := newJoinedClient(t, hub, "")

	err := dispatcher.Publish(ctx, events.Event{
		Type:    events.EventTicketCreated,
		Payload: map[string]string{"oops": "no tenant"},
	})
	require.NoError(t, err)

	requireSilent(t, client)
}
