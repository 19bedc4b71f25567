package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/metric"
)

type fakePipeline struct {
	name string
	err  error
	runs int
}

func (p *fakePipeline) Name() string        { return p.name }
func (p *fakePipeline) Description() string { return "fake" }
func (p *fakePipeline) Run(ctx context.Context) error {
	p.runs++
	return p.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&fakePipeline{name: "badger-backup"}))
	require.NoError(t, r.Register(&fakePipeline{name: "badger-sightings"}))

	err := r.Register(&fakePipeline{name: "badger-backup"})
	assert.Error(t, err)

	err = r.Register(&fakePipeline{name: ""})
	assert.Error(t, err)

	assert.Equal(t, []string{"badger-backup", "badger-sightings"}, r.Names())

	p, err := r.Get("badger-sightings")
	require.NoError(t, err)
	assert.Equal(t, "badger-sightings", p.Name())

	_, err = r.Get("nope")
	assert.Error(t, err)

	assert.Len(t, r.All(), 2)
}

func TestRunner(t *testing.T) {
	r := NewRegistry()
	ok := &fakePipeline{name: "ok"}
	failing := &fakePipeline{name: "failing", err: errors.New("boom")}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(failing))

	runner := NewRunner(r, metric.NewRecorder(), nil, nil)

	require.NoError(t, runner.Run(context.Background(), "ok"))
	assert.Equal(t, 1, ok.runs)

	err := runner.Run(context.Background(), "failing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")

	err = runner.Run(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "2024-06-01 10-30-00", SafeName("2024-06-01 10:30:00"))
	assert.Equal(t, "a-b-c", SafeName(`a/b\c`))
	assert.Equal(t, "plain", SafeName("plain"))
}

func TestRenameSpecSkipPrefix(t *testing.T) {
	f := ago.Feature{Attributes: map[string]any{"SITE_ID": "C001"}}

	spec := RenameSpec{
		Prefix: func(f ago.Feature) string { return f.String("SITE_ID") + "_photo" },
	}
	assert.Equal(t, "C001_photo", spec.skipPrefix(f, "C001_photo"))

	spec.SkipPrefix = func(f ago.Feature) string { return f.String("SITE_ID") }
	assert.Equal(t, "C001", spec.skipPrefix(f, "C001_photo"))

	// an empty skip prefix falls back to the rename prefix
	spec.SkipPrefix = func(f ago.Feature) string { return "" }
	assert.Equal(t, "C001_photo", spec.skipPrefix(f, "C001_photo"))
}

func TestFileExt(t *testing.T) {
	assert.Equal(t, "jpeg", fileExt("photo.jpeg"))
	assert.Equal(t, "PNG", fileExt("IMG.PNG"))
	assert.Equal(t, "jpg", fileExt("no_extension"))
}
