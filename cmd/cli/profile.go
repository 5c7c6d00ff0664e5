package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	updateName string
	updateBio  string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
	Long:  "Commands for viewing and updating your profile",
}

var getProfileCmd = &cobra.Command{
	Use:   "get",
	Short: "Get your current profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getProfile()
	},
}

var updateProfileCmd = &cobra.Command{
	Use:   "update",
	Short: "Update your display name or bio",
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateName == "" && !cmd.Flags().Changed("bio") {
			return fmt.Errorf("nothing to update: pass --name and/or --bio")
		}
		return updateProfile(cmd)
	},
}

func init() {
	updateProfileCmd.Flags().StringVar(&updateName, "name", "", "New display name")
	updateProfileCmd.Flags().StringVar(&updateBio, "bio", "", "New bio (200 characters max)")

	profileCmd.AddCommand(getProfileCmd)
	profileCmd.AddCommand(updateProfileCmd)
}

func apiRequest(method, path string, payload interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, apiURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+authToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.Unmarshal(body, &errResp)
		if msg, ok := errResp["message"].(string); ok {
			return nil, fmt.Errorf("API error: %s", msg)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	return body, nil
}

func getProfile() error {
	body, err := apiRequest("GET", "/api/v1/auth/me", nil)
	if err != nil {
		return err
	}

	var resp struct {
		User map[string]interface{} `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	fmt.Printf("\n📋 Profile\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	printField(resp.User, "username", "Username")
	printField(resp.User, "name", "Name")
	printField(resp.User, "bio", "Bio")
	if n, ok := resp.User["follower_count"].(float64); ok {
		fmt.Printf("Followers: %d\n", int(n))
	}
	if n, ok := resp.User["following_count"].(float64); ok {
		fmt.Printf("Following: %d\n", int(n))
	}
	if n, ok := resp.User["post_count"].(float64); ok {
		fmt.Printf("Posts: %d\n", int(n))
	}
	fmt.Printf("\n")

	return nil
}

func updateProfile(cmd *cobra.Command) error {
	payload := map[string]interface{}{}
	if updateName != "" {
		payload["name"] = updateName
	}
	if cmd.Flags().Changed("bio") {
		payload["bio"] = updateBio
	}

	body, err := apiRequest("PUT", "/api/v1/users/me", payload)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
	} else {
		fmt.Println("✓ Profile updated")
	}

	return nil
}

func printField(m map[string]interface{}, key, label string) {
	if v, ok := m[key].(string); ok && v != "" {
		fmt.Printf("%s: %s\n", label, v)
	}
}
