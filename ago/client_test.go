package ago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePortal is a minimal AGO portal: token generation, one item backed by a
// feature service with one layer and one table.
type fakePortal struct {
	t *testing.T

	tokenCalls atomic.Int64
	queryCalls atomic.Int64

	// rejectFirstQuery makes the first layer query fail with an
	// invalid-token error to exercise the refresh path.
	rejectFirstQuery bool
}

func (p *fakePortal) handler(serviceURL func() string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/sharing/rest/generateToken", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		require.NoError(p.t, r.ParseForm())
		if r.PostFormValue("username") != "svc" || r.PostFormValue("password") != "secret" {
			writeJSON(w, map[string]any{"error": map[string]any{"code": 400, "message": "Invalid credentials"}})
			return
		}
		writeJSON(w, map[string]any{
			"token":   fmt.Sprintf("tok-%d", p.tokenCalls.Load()),
			"expires": time.Now().Add(time.Hour).UnixMilli(),
		})
	})

	mux.HandleFunc("/sharing/rest/content/items/item1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "item1", "title": "Badger Sightings", "url": serviceURL() + "/rest/services/badgers/FeatureServer"})
	})

	mux.HandleFunc("/rest/services/badgers/FeatureServer", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"layers": []map[string]any{{"id": 0}},
			"tables": []map[string]any{{"id": 1}},
		})
	})

	mux.HandleFunc("/rest/services/badgers/FeatureServer/0/query", func(w http.ResponseWriter, r *http.Request) {
		call := p.queryCalls.Add(1)
		if p.rejectFirstQuery && call == 1 {
			writeJSON(w, map[string]any{"error": map[string]any{"code": 498, "message": "Invalid token"}})
			return
		}
		assert.Equal(p.t, "unique_id IS NOT NULL", r.URL.Query().Get("where"))
		writeJSON(w, map[string]any{
			"features": []map[string]any{
				{
					"attributes": map[string]any{"objectid": 1, "unique_id": "u-1", "photo_name": "a.jpg"},
					"geometry":   map[string]any{"x": -120.5, "y": 51.2},
				},
				{
					"attributes": map[string]any{"objectid": 2, "unique_id": "u-2"},
					"geometry":   map[string]any{"x": -119.1, "y": 50.9},
				},
			},
		})
	})

	mux.HandleFunc("/rest/services/badgers/FeatureServer/0/applyEdits", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(p.t, r.ParseForm())
		var updates []Feature
		require.NoError(p.t, json.Unmarshal([]byte(r.PostFormValue("updates")), &updates))
		results := make([]map[string]any, len(updates))
		for i := range updates {
			results[i] = map[string]any{"objectId": i + 1, "success": true}
		}
		writeJSON(w, map[string]any{"updateResults": results})
	})

	mux.HandleFunc("/rest/services/badgers/FeatureServer/0/queryRelatedRecords", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(p.t, "0", r.URL.Query().Get("relationshipId"))
		writeJSON(w, map[string]any{
			"relatedRecordGroups": []map[string]any{
				{
					"objectId": 1,
					"relatedRecords": []map[string]any{
						{"attributes": map[string]any{"OBJECTID": 11, "SITE_STATUS": "Active"}},
					},
				},
			},
		})
	})

	mux.HandleFunc("/rest/admin/services/badgers/FeatureServer/0/truncate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": true})
	})

	mux.HandleFunc("/rest/services/badgers/FeatureServer/0/1/attachments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"attachmentInfos": []map[string]any{
				{"id": 7, "name": "photo.jpg", "contentType": "image/jpeg", "size": 3},
			},
		})
	})

	mux.HandleFunc("/rest/services/badgers/FeatureServer/0/1/attachments/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpg"))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, portal *fakePortal) (*Client, *httptest.Server) {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(portal.handler(func() string { return server.URL }))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		PortalURL: server.URL,
		Username:  "svc",
		Password:  "secret",
	})
	require.NoError(t, err)
	return client, server
}

func TestClientQuery(t *testing.T) {
	portal := &fakePortal{t: t}
	client, _ := newTestClient(t, portal)
	ctx := context.Background()

	item, err := client.Item(ctx, "item1")
	require.NoError(t, err)
	assert.Equal(t, "Badger Sightings", item.Title)

	layer, err := item.Layer(ctx, 0)
	require.NoError(t, err)

	fs, err := layer.Query(ctx, QueryOptions{Where: "unique_id IS NOT NULL"})
	require.NoError(t, err)
	require.Len(t, fs.Features, 2)

	first := fs.Features[0]
	oid, ok := first.ObjectID()
	require.True(t, ok)
	assert.Equal(t, int64(1), oid)
	assert.Equal(t, "u-1", first.String("unique_id"))
	require.NotNil(t, first.Geometry)
	assert.InDelta(t, -120.5, first.Geometry.X, 0.001)

	assert.Equal(t, []int64{1, 2}, fs.ObjectIDs())
	assert.EqualValues(t, 1, portal.tokenCalls.Load(), "token should be cached across requests")
}

func TestClientTokenRefreshOn498(t *testing.T) {
	portal := &fakePortal{t: t, rejectFirstQuery: true}
	client, _ := newTestClient(t, portal)
	ctx := context.Background()

	item, err := client.Item(ctx, "item1")
	require.NoError(t, err)
	layer, err := item.Layer(ctx, 0)
	require.NoError(t, err)

	fs, err := layer.Query(ctx, QueryOptions{Where: "unique_id IS NOT NULL"})
	require.NoError(t, err)
	assert.Len(t, fs.Features, 2)
	assert.GreaterOrEqual(t, portal.tokenCalls.Load(), int64(2), "expected a token regeneration")
}

func TestApplyEdits(t *testing.T) {
	portal := &fakePortal{t: t}
	client, _ := newTestClient(t, portal)
	ctx := context.Background()

	item, err := client.Item(ctx, "item1")
	require.NoError(t, err)
	layer, err := item.Layer(ctx, 0)
	require.NoError(t, err)

	results, err := layer.ApplyEdits(ctx, Edits{
		Updates: []Feature{
			{Attributes: map[string]any{"objectid": 1, "SITE_STATUS": "Inactive"}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, results.Err())
	require.Len(t, results.UpdateResults, 1)
}

func TestApplyEditsEmpty(t *testing.T) {
	portal := &fakePortal{t: t}
	client, _ := newTestClient(t, portal)

	item, err := client.Item(context.Background(), "item1")
	require.NoError(t, err)
	layer, err := item.Layer(context.Background(), 0)
	require.NoError(t, err)

	// no edits means no request and no error
	results, err := layer.ApplyEdits(context.Background(), Edits{})
	require.NoError(t, err)
	require.NoError(t, results.Err())
}

func TestQueryRelatedRecords(t *testing.T) {
	portal := &fakePortal{t: t}
	client, _ := newTestClient(t, portal)
	ctx := context.Background()

	item, err := client.Item(ctx, "item1")
	require.NoError(t, err)
	layer, err := item.Layer(ctx, 0)
	require.NoError(t, err)

	groups, err := layer.QueryRelatedRecords(ctx, []int64{1}, 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(1), groups[0].ObjectID)
	require.Len(t, groups[0].RelatedRecords, 1)
	assert.Equal(t, "Active", groups[0].RelatedRecords[0].String("SITE_STATUS"))
}

func TestTruncate(t *testing.T) {
	portal := &fakePortal{t: t}
	client, _ := newTestClient(t, portal)
	ctx := context.Background()

	item, err := client.Item(ctx, "item1")
	require.NoError(t, err)
	layer, err := item.Layer(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, layer.Truncate(ctx))
}

func TestAttachments(t *testing.T) {
	portal := &fakePortal{t: t}
	client, _ := newTestClient(t, portal)
	ctx := context.Background()

	item, err := client.Item(ctx, "item1")
	require.NoError(t, err)
	layer, err := item.Layer(ctx, 0)
	require.NoError(t, err)

	attachments, err := layer.Attachments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "photo.jpg", attachments[0].Name)

	dir := t.TempDir()
	path, err := layer.DownloadAttachment(ctx, 1, attachments[0], dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpg", string(data))
}

func TestEditResultsErr(t *testing.T) {
	ok := EditResults{AddResults: []EditResult{{ObjectID: 1, Success: true}}}
	require.NoError(t, ok.Err())

	failed := EditResults{
		AddResults:    []EditResult{{ObjectID: 1, Success: true}},
		UpdateResults: []EditResult{{ObjectID: 2, Success: false, Error: &apiError{Message: "geometry invalid"}}},
	}
	err := failed.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry invalid")
}

func TestFeatureHelpers(t *testing.T) {
	f := Feature{Attributes: map[string]any{
		"objectid":     float64(42),
		"unique_id":    "u-42",
		"empty":        "",
		"CreationDate": float64(1700000000000),
	}}

	oid, ok := f.ObjectID()
	require.True(t, ok)
	assert.Equal(t, int64(42), oid)

	assert.True(t, f.IsNull("empty"))
	assert.True(t, f.IsNull("missing"))
	assert.False(t, f.IsNull("unique_id"))

	ts, ok := f.Time("CreationDate")
	require.True(t, ok)
	assert.Equal(t, 2023, ts.Year())

	clone := f.Clone()
	clone.Attributes["unique_id"] = "changed"
	assert.Equal(t, "u-42", f.String("unique_id"))
}
