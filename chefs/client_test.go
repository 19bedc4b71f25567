package chefs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("form-1:key-1"))

	mux := http.NewServeMux()
	mux.HandleFunc("/forms/form-1/submissions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, wantAuth, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"submissionId": "s1", "confirmationId": "ABC123", "createdAt": "2025-03-01T18:30:00Z"},
			{"submissionId": "s2", "confirmationId": "DEF456", "createdAt": "2025-03-02T09:00:00Z"},
			{"submissionId": "s3", "confirmationId": "GHI789", "createdAt": "2025-03-03T12:00:00Z", "deleted": true},
		})
	})
	mux.HandleFunc("/forms/form-1/versions/v12/submissions/discover", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, wantAuth, r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("fields"), "unique_id")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "s1", "unique_id": "u-1", "sighting_type": "badger", "latitude": 51.2, "longitude": -120.5},
		})
	})
	mux.HandleFunc("/forms/form-1/versions/v13/submissions/discover", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "s2", "unique_id": "u-2", "sighting_type": "badger_family", "latitude": "50.9", "longitude": "-119.1"},
			{"id": "s3", "unique_id": "u-3", "sighting_type": "other"},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    server.URL + "/forms",
		FormID:     "form-1",
		APIKey:     "key-1",
		VersionIDs: []string{"v12", "v13"},
		Fields:     []string{"unique_id", "sighting_type", "latitude", "longitude"},
	})
	require.NoError(t, err)
	return client
}

func TestSubmissions(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	submissions, err := client.Submissions(context.Background())
	require.NoError(t, err)

	// s3 is deleted and must be dropped; s1 and s2 survive across versions
	require.Len(t, submissions, 2)

	byID := map[string]Submission{}
	for _, s := range submissions {
		byID[s.ID] = s
	}

	s1 := byID["s1"]
	assert.Equal(t, "ABC123", s1.ConfirmationID)
	assert.Equal(t, "u-1", s1.String("unique_id"))
	assert.Equal(t, 2025, s1.CreatedAt.Year())

	lat, ok := s1.Float("latitude")
	require.True(t, ok)
	assert.InDelta(t, 51.2, lat, 0.001)

	// string-typed coordinates still parse
	s2 := byID["s2"]
	lon, ok := s2.Float("longitude")
	require.True(t, ok)
	assert.InDelta(t, -119.1, lon, 0.001)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{FormID: "f", APIKey: "k", VersionIDs: []string{"v"}})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://example.test", APIKey: "k", VersionIDs: []string{"v"}})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://example.test", FormID: "f", APIKey: "k"})
	require.Error(t, err)
}
