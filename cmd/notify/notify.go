// Package notify implements the notification test command.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/notification"
)

// Command creates the notify command, which sends a test message through
// the configured notification services.
func Command(settings *conf.Settings) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification to the configured services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(settings, message)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "Test notification from pitwall", "Message to send")

	return cmd
}

func runTest(settings *conf.Settings, message string) error {
	if !settings.Notification.Enabled {
		return fmt.Errorf("notifications are not enabled in the configuration")
	}

	service, err := notification.NewService(settings)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n := notification.NewNotification(notification.TypeTest, "Pitwall test", message)
	if err := service.Notify(ctx, n); err != nil {
		return fmt.Errorf("test notification failed: %w", err)
	}

	fmt.Println("test notification sent")
	return nil
}
