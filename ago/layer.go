package ago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Item is an AGO content item, typically a hosted feature service.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`

	client *Client
}

// Item fetches a content item by id.
func (c *Client) Item(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if err := c.get(ctx, c.portalURL+contentPath+itemID, nil, &item); err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	if item.URL == "" {
		return nil, fmt.Errorf("item %s has no service URL", itemID)
	}
	item.client = c
	return &item, nil
}

// serviceInfo is the subset of feature service metadata needed to locate
// layers and tables.
type serviceInfo struct {
	Layers []struct {
		ID int `json:"id"`
	} `json:"layers"`
	Tables []struct {
		ID int `json:"id"`
	} `json:"tables"`
}

// Layer returns the item's point feature layer at the given position,
// mirroring item.layers[index].
func (i *Item) Layer(ctx context.Context, index int) (*FeatureLayer, error) {
	info, err := i.service(ctx)
	if err != nil {
		return nil, err
	}
	if index >= len(info.Layers) {
		return nil, fmt.Errorf("item %s has %d layers, wanted index %d", i.ID, len(info.Layers), index)
	}
	return i.layerAt(info.Layers[index].ID), nil
}

// Table returns the item's related table at the given position, mirroring
// item.tables[index].
func (i *Item) Table(ctx context.Context, index int) (*FeatureLayer, error) {
	info, err := i.service(ctx)
	if err != nil {
		return nil, err
	}
	if index >= len(info.Tables) {
		return nil, fmt.Errorf("item %s has %d tables, wanted index %d", i.ID, len(info.Tables), index)
	}
	return i.layerAt(info.Tables[index].ID), nil
}

func (i *Item) service(ctx context.Context) (*serviceInfo, error) {
	var info serviceInfo
	if err := i.client.get(ctx, i.URL, nil, &info); err != nil {
		return nil, fmt.Errorf("get service metadata for item %s: %w", i.ID, err)
	}
	return &info, nil
}

func (i *Item) layerAt(layerID int) *FeatureLayer {
	return &FeatureLayer{
		client: i.client,
		url:    fmt.Sprintf("%s/%d", strings.TrimSuffix(i.URL, "/"), layerID),
	}
}

// FeatureLayer is a single layer or table of a hosted feature service. The
// same type serves both since AGO exposes identical sub-resources for each.
type FeatureLayer struct {
	client *Client
	url    string
}

// URL returns the layer's REST endpoint.
func (l *FeatureLayer) URL() string { return l.url }

// QueryOptions control a layer query.
type QueryOptions struct {
	// Where is the SQL-ish filter; defaults to "1=1".
	Where string
	// OutFields defaults to "*".
	OutFields string
	// ReturnGeometry defaults to true for layers.
	OmitGeometry bool
}

// Query runs a query against the layer and returns all matching features.
func (l *FeatureLayer) Query(ctx context.Context, opts QueryOptions) (*FeatureSet, error) {
	where := opts.Where
	if where == "" {
		where = "1=1"
	}
	outFields := opts.OutFields
	if outFields == "" {
		outFields = "*"
	}

	params := url.Values{
		"where":          {where},
		"outFields":      {outFields},
		"returnGeometry": {strconv.FormatBool(!opts.OmitGeometry)},
	}

	var fs FeatureSet
	if err := l.client.get(ctx, l.url+"/query", params, &fs); err != nil {
		return nil, fmt.Errorf("query layer: %w", err)
	}
	return &fs, nil
}

// Edits is the payload for ApplyEdits. Any of the three slices may be empty.
type Edits struct {
	Adds    []Feature
	Updates []Feature
	Deletes []int64
}

// ApplyEdits adds, updates, and deletes features in one call.
func (l *FeatureLayer) ApplyEdits(ctx context.Context, edits Edits) (*EditResults, error) {
	params := url.Values{}
	if len(edits.Adds) > 0 {
		data, err := json.Marshal(edits.Adds)
		if err != nil {
			return nil, fmt.Errorf("marshal adds: %w", err)
		}
		params.Set("adds", string(data))
	}
	if len(edits.Updates) > 0 {
		data, err := json.Marshal(edits.Updates)
		if err != nil {
			return nil, fmt.Errorf("marshal updates: %w", err)
		}
		params.Set("updates", string(data))
	}
	if len(edits.Deletes) > 0 {
		ids := make([]string, len(edits.Deletes))
		for i, id := range edits.Deletes {
			ids[i] = strconv.FormatInt(id, 10)
		}
		params.Set("deletes", strings.Join(ids, ","))
	}
	if len(params) == 0 {
		return &EditResults{}, nil
	}

	var results EditResults
	if err := l.client.post(ctx, l.url+"/applyEdits", params, &results); err != nil {
		return nil, fmt.Errorf("apply edits: %w", err)
	}
	return &results, nil
}

// QueryRelatedRecords returns the records related to the given object ids
// through the numbered relationship.
func (l *FeatureLayer) QueryRelatedRecords(ctx context.Context, objectIDs []int64, relationshipID int) ([]RelatedRecordGroup, error) {
	ids := make([]string, len(objectIDs))
	for i, id := range objectIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{
		"objectIds":      {strings.Join(ids, ",")},
		"relationshipId": {strconv.Itoa(relationshipID)},
		"outFields":      {"*"},
		"returnGeometry": {"true"},
	}

	var result struct {
		RelatedRecordGroups []RelatedRecordGroup `json:"relatedRecordGroups"`
	}
	if err := l.client.get(ctx, l.url+"/queryRelatedRecords", params, &result); err != nil {
		return nil, fmt.Errorf("query related records: %w", err)
	}
	return result.RelatedRecordGroups, nil
}

// Truncate deletes every feature in the layer via the admin endpoint. This
// is the restore pipeline's "delete before reload" step and cannot be
// undone.
func (l *FeatureLayer) Truncate(ctx context.Context) error {
	adminURL := strings.Replace(l.url, "/rest/services/", "/rest/admin/services/", 1)
	var result struct {
		Success bool `json:"success"`
	}
	if err := l.client.post(ctx, adminURL+"/truncate", nil, &result); err != nil {
		return fmt.Errorf("truncate layer: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("truncate layer: service reported failure")
	}
	return nil
}
