package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "View and manage your notifications",
}

var listNotificationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List your most recent notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listNotifications()
	},
}

var readAllNotificationsCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every unread notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		return readAllNotifications()
	},
}

func init() {
	notificationsCmd.AddCommand(listNotificationsCmd)
	notificationsCmd.AddCommand(readAllNotificationsCmd)
}

func listNotifications() error {
	body, err := apiRequest("GET", "/api/v1/notifications", nil)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	var resp struct {
		Notifications []struct {
			Type string `json:"type"`
			Read bool   `json:"read"`
			Actor struct {
				Username string `json:"username"`
			} `json:"actor"`
			CreatedAt string `json:"created_at"`
		} `json:"notifications"`
		Meta struct {
			Unread int64 `json:"unread"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Notifications) == 0 {
		fmt.Println("No notifications")
		return nil
	}

	fmt.Printf("\n🔔 Notifications (%d unread)\n", resp.Meta.Unread)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	for _, n := range resp.Notifications {
		marker := " "
		if !n.Read {
			marker = "●"
		}
		fmt.Printf("%s @%s %s  (%s)\n", marker, n.Actor.Username, describeNotification(n.Type), n.CreatedAt)
	}
	fmt.Printf("\n")

	return nil
}

func readAllNotifications() error {
	body, err := apiRequest("PUT", "/api/v1/notifications/read-all", nil)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	var resp struct {
		Updated int64 `json:"updated"`
	}
	json.Unmarshal(body, &resp)
	fmt.Printf("✓ Marked %d notifications as read\n", resp.Updated)

	return nil
}

func describeNotification(notificationType string) string {
	switch notificationType {
	case "like":
		return "liked your post"
	case "like_comment":
		return "liked your comment"
	case "comment":
		return "commented on your post"
	case "reply":
		return "replied to your comment"
	case "follow":
		return "started following you"
	default:
		return notificationType
	}
}
