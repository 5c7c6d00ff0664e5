// Package search wraps Elasticsearch for user discovery. Callers should
// treat it as an accelerator: when the cluster is down, handlers fall back
// to a database ILIKE query.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/elastic/go-elasticsearch/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Index names
const (
	IndexUsers = "users"
)

// Client wraps the Elasticsearch client with feed-specific functionality
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates a new Elasticsearch client
func NewClient() (*Client, error) {
	// Get Elasticsearch URL from environment, default to localhost
	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		esURL = "http://localhost:9200"
	}

	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &Client{es: es}

	// Verify connection
	_, err = es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	return client, nil
}

// InitializeIndices creates the search indices with proper mappings
func (c *Client) InitializeIndices(ctx context.Context) error {
	if err := c.createUsersIndex(ctx); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	return nil
}

// createUsersIndex creates the users search index with mapping
func (c *Client) createUsersIndex(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type": "keyword",
				},
				"username": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{
							"type": "keyword",
						},
						"suggest": map[string]interface{}{
							"type":     "completion",
							"analyzer": "simple",
						},
					},
				},
				"name": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"bio": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"follower_count": map[string]interface{}{
					"type": "integer",
				},
				"created_at": map[string]interface{}{
					"type": "date",
				},
			},
		},
	}

	return c.createIndex(ctx, IndexUsers, mapping)
}

// createIndex creates an Elasticsearch index with the given mapping
func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	// Check if index exists
	res, err := c.es.Indices.Exists([]string{indexName})
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()

	// If index exists (status 200), skip creation
	if res.StatusCode == 200 {
		return nil
	}

	// Create index with mapping
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(mappingJSON)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("error response [%s]", res.Status())
		}
		return fmt.Errorf("error creating index: [%s] %v", res.Status(), errResp["error"])
	}

	return nil
}

// IndexUser indexes a user document for search
func (c *Client) IndexUser(ctx context.Context, userID string, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal user document: %w", err)
	}

	res, err := c.es.Index(IndexUsers, bytes.NewReader(body),
		c.es.Index.WithDocumentID(userID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index user: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("error response [%s]", res.Status())
		}
		return fmt.Errorf("error indexing user: [%s] %v", res.Status(), errResp["error"])
	}

	return nil
}

// DeleteUser deletes a user document from the search index
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	res, err := c.es.Delete(IndexUsers, userID,
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	defer res.Body.Close()

	// 404 is OK - document doesn't exist
	if res.IsError() && res.StatusCode != 404 {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("error response [%s]", res.Status())
		}
		return fmt.Errorf("error deleting user: [%s] %v", res.Status(), errResp["error"])
	}

	return nil
}

// SearchUsersResult represents a user search result
type SearchUsersResult struct {
	Users []UserSearchHit `json:"users"`
	Total int             `json:"total"`
}

// UserSearchHit represents a single user search hit
type UserSearchHit struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Name          string  `json:"name"`
	Bio           string  `json:"bio"`
	FollowerCount int     `json:"follower_count"`
	Score         float64 `json:"score"`
}

// SearchUsers searches for users by query across username, name and bio
func (c *Client) SearchUsers(ctx context.Context, query string, limit, offset int) (*SearchUsersResult, error) {
	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{
						"match": map[string]interface{}{
							"username": map[string]interface{}{
								"query":         query,
								"boost":         2.0,
								"fuzziness":     "AUTO",
								"prefix_length": 1,
							},
						},
					},
					{
						"match": map[string]interface{}{
							"name": map[string]interface{}{
								"query":     query,
								"boost":     1.5,
								"fuzziness": "AUTO",
							},
						},
					},
					{
						"match": map[string]interface{}{
							"bio": map[string]interface{}{
								"query":     query,
								"boost":     0.5,
								"fuzziness": "AUTO",
							},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"follower_count": map[string]interface{}{"order": "desc"}},
		},
		"from": offset,
		"size": limit,
	}

	return c.executeUserSearch(ctx, searchQuery)
}

// executeUserSearch executes a user search query
func (c *Client) executeUserSearch(ctx context.Context, query map[string]interface{}) (*SearchUsersResult, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(IndexUsers),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return nil, fmt.Errorf("error response [%s]", res.Status())
		}
		return nil, fmt.Errorf("error searching users: [%s] %v", res.Status(), errResp["error"])
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	users := make([]UserSearchHit, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		user := UserSearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if username, ok := hit.Source["username"].(string); ok {
			user.Username = username
		}
		if name, ok := hit.Source["name"].(string); ok {
			user.Name = name
		}
		if bio, ok := hit.Source["bio"].(string); ok {
			user.Bio = bio
		}
		if followerCount, ok := hit.Source["follower_count"].(float64); ok {
			user.FollowerCount = int(followerCount)
		}

		users = append(users, user)
	}

	return &SearchUsersResult{
		Users: users,
		Total: searchResp.Hits.Total.Value,
	}, nil
}
