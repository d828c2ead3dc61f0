package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/identity-service/internal/core/events"
	"github.com/frahmantamala/identity-service/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the identity event bus: list event types and publish sample events through the audit log`,
}

var listEventsCmd = &cobra.Command{
	Use:   "list",
	Short: "List identity event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, eventType := range events.IdentityEventTypes {
			fmt.Println(eventType)
		}
	},
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a sample identity event",
	Long:  `Publish a sample identity event to the audit log for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var eventUserID string

func publishTestEvent(eventType string) error {
	if !slices.Contains(events.IdentityEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	log := logger.LoggerWrapper()
	eventBus := events.NewEventBus(log)
	events.RegisterAuditLog(eventBus, log.With("component", "audit"))

	event := sampleEvent(eventType, eventUserID)
	log.Info("publishing sample event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.PublishSync(context.Background(), event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	log.Info("sample event published successfully")
	return nil
}

func sampleEvent(eventType, userID string) events.Event {
	switch eventType {
	case events.EventTypeUserRegistered:
		return events.NewUserRegisteredEvent(userID, "cli-company")
	case events.EventTypeEmailVerified:
		return events.NewEmailVerifiedEvent(userID)
	case events.EventTypeSessionCreated:
		return events.NewSessionCreatedEvent(userID, "cli-session", "cli")
	case events.EventTypePasswordReset:
		return events.NewPasswordResetEvent(userID, 0)
	default:
		return events.NewSessionsRevokedEvent(userID, 0, "cli")
	}
}

func init() {
	publishEventCmd.Flags().StringVar(&eventUserID, "user-id", "cli-user", "User id carried by the event")

	eventCmd.AddCommand(listEventsCmd)
	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
