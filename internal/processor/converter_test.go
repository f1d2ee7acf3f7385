package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZacxDev/video-compressor/internal/config"
	"github.com/ZacxDev/video-compressor/internal/events"
	"github.com/ZacxDev/video-compressor/internal/ffmpeg"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hd = types.MediaInfo{Width: 1920, Height: 1080, DurationSeconds: 60, SizeBytes: 40 << 20}

func newTestConverter(prober Prober, encoder Encoder, sink events.Sink) *Converter {
	return NewConverter(config.Default(), prober, encoder, sink, hclog.NewNullLogger())
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	out := t.TempDir()
	prober := &fakeProber{
		infos: map[string]types.MediaInfo{"/videos/one.mp4": hd, "/videos/three.mkv": hd},
		errs: map[string]error{
			"/videos/two.mp4": &ffmpeg.ProbeError{Path: "/videos/two.mp4", Err: ffmpeg.ErrNoVideoStream},
		},
	}
	encoder := &fakeEncoder{}
	conv := newTestConverter(prober, encoder, nil)

	results := conv.RunBatch(context.Background(), []Input{
		{InputPath: "/videos/one.mp4", OutputDir: out},
		{InputPath: "/videos/two.mp4", OutputDir: out},
		{InputPath: "/videos/three.mkv", OutputDir: out},
	})

	require.Len(t, results, 3)
	assert.Equal(t, types.Succeeded("/videos/one.mp4", filepath.Join(out, "one_whatsapp.mp4")), results[0])
	assert.False(t, results[1].Success)
	assert.Equal(t, "/videos/two.mp4", results[1].InputPath)
	assert.Equal(t, "Probe failed for /videos/two.mp4: no video stream found", results[1].Error)
	assert.Equal(t, types.Succeeded("/videos/three.mkv", filepath.Join(out, "three_whatsapp.mp4")), results[2])

	assert.Equal(t, []string{"/videos/one.mp4", "/videos/three.mkv"}, encoder.inputs())
}

func TestRunBatchEncodeFailureDoesNotStopBatch(t *testing.T) {
	out := t.TempDir()
	prober := &fakeProber{infos: map[string]types.MediaInfo{"/videos/a.mp4": hd, "/videos/b.mp4": hd}}
	encoder := &fakeEncoder{scripts: map[string][]ffmpeg.Signal{
		"/videos/a.mp4": {
			ffmpeg.SignalStart{},
			ffmpeg.SignalProgress{Percent: 12},
			ffmpeg.SignalError{Err: errors.New("ffmpeg: Invalid data found when processing input: exit status 1")},
		},
	}}
	conv := newTestConverter(prober, encoder, nil)

	results := conv.RunBatch(context.Background(), []Input{
		{InputPath: "/videos/a.mp4", OutputDir: out},
		{InputPath: "/videos/b.mp4", OutputDir: out},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "Conversion failed for /videos/a.mp4: ffmpeg: Invalid data found when processing input: exit status 1", results[0].Error)
	assert.True(t, results[1].Success)
}

func TestRunBatchUnwrappedProbeError(t *testing.T) {
	prober := &fakeProber{errs: map[string]error{"/videos/a.mp4": errors.New("permission denied")}}
	conv := newTestConverter(prober, &fakeEncoder{}, nil)

	result := conv.Convert(context.Background(), Input{InputPath: "/videos/a.mp4", OutputDir: t.TempDir()})

	assert.Equal(t, "Probe failed for /videos/a.mp4: permission denied", result.Error)
}

func TestRunBatchPlanningFailure(t *testing.T) {
	prober := &fakeProber{infos: map[string]types.MediaInfo{
		"/videos/broken.mp4": {Width: 0, Height: 720, DurationSeconds: 5},
	}}
	encoder := &fakeEncoder{}
	conv := newTestConverter(prober, encoder, nil)

	result := conv.Convert(context.Background(), Input{InputPath: "/videos/broken.mp4", OutputDir: t.TempDir()})

	assert.False(t, result.Success)
	assert.Equal(t, "Planning failed for /videos/broken.mp4: invalid source dimensions 0x720", result.Error)
	assert.Empty(t, encoder.inputs())
}

func TestRunBatchEmpty(t *testing.T) {
	conv := newTestConverter(&fakeProber{}, &fakeEncoder{}, nil)

	results := conv.RunBatch(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestConvertPlansFromProbe(t *testing.T) {
	out := t.TempDir()
	prober := &fakeProber{infos: map[string]types.MediaInfo{
		"/videos/photo-mode.mov": {Width: 4000, Height: 3000, DurationSeconds: 7200},
	}}
	encoder := &fakeEncoder{}
	conv := newTestConverter(prober, encoder, nil)

	result := conv.Convert(context.Background(), Input{InputPath: "/videos/photo-mode.mov", OutputDir: out})
	require.True(t, result.Success)

	require.Len(t, encoder.requests, 1)
	req := encoder.requests[0]
	assert.Equal(t, filepath.Join(out, "photo-mode_whatsapp.mp4"), req.OutputPath)
	assert.Equal(t, 7200.0, req.DurationSeconds)
	assert.Equal(t, []types.Directive{
		{Flag: "c:v", Value: "libx264"},
		{Flag: "preset", Value: "veryfast"},
		{Flag: "b:v", Value: "300k"},
		{Flag: "c:a", Value: "aac"},
		{Flag: "b:a", Value: "128k"},
		{Flag: "vf", Value: "scale=480:360"},
	}, req.Directives)
}

func TestConvertCreatesOutputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "exports")
	prober := &fakeProber{infos: map[string]types.MediaInfo{"/videos/a.mp4": hd}}
	conv := newTestConverter(prober, &fakeEncoder{}, nil)

	result := conv.Convert(context.Background(), Input{InputPath: "/videos/a.mp4", OutputDir: out})
	require.True(t, result.Success)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConvertOutputDirNotWritable(t *testing.T) {
	// a regular file where the output directory should be
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	prober := &fakeProber{infos: map[string]types.MediaInfo{"/videos/a.mp4": hd}}
	encoder := &fakeEncoder{}
	conv := newTestConverter(prober, encoder, nil)

	result := conv.Convert(context.Background(), Input{InputPath: "/videos/a.mp4", OutputDir: filepath.Join(blocker, "out")})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Conversion failed for /videos/a.mp4: error creating output directory")
	assert.Empty(t, encoder.inputs())
}

func TestRunBatchSameBaseNameShareOutput(t *testing.T) {
	out := t.TempDir()
	prober := &fakeProber{infos: map[string]types.MediaInfo{"/a/clip.mov": hd, "/b/clip.mp4": hd}}
	conv := newTestConverter(prober, &fakeEncoder{}, nil)

	results := conv.RunBatch(context.Background(), []Input{
		{InputPath: "/a/clip.mov", OutputDir: out},
		{InputPath: "/b/clip.mp4", OutputDir: out},
	})

	require.Len(t, results, 2)
	assert.Equal(t, results[0].OutputPath, results[1].OutputPath)
}

func TestRunBatchEventsCarryJobIDs(t *testing.T) {
	out := t.TempDir()
	prober := &fakeProber{infos: map[string]types.MediaInfo{"/videos/a.mp4": hd, "/videos/b.mp4": hd}}
	sink := &recordingSink{}
	conv := newTestConverter(prober, &fakeEncoder{}, sink)

	conv.RunBatch(context.Background(), []Input{
		{InputPath: "/videos/a.mp4", OutputDir: out},
		{InputPath: "/videos/b.mp4", OutputDir: out},
	})

	evs := sink.all()
	require.Len(t, evs, 6)

	jobA, jobB := evs[0].JobID, evs[3].JobID
	assert.NotEmpty(t, jobA)
	assert.NotEqual(t, jobA, jobB)

	for i, e := range evs {
		want := jobA
		if i >= 3 {
			want = jobB
		}
		assert.Equal(t, want, e.JobID)
	}
	assert.Equal(t, events.KindStart, evs[0].Kind)
	assert.Equal(t, events.KindStart, evs[3].Kind)
	assert.Equal(t, "/videos/b.mp4", evs[4].InputPath)
}

func TestConverterRunsOneJobAtATime(t *testing.T) {
	out := t.TempDir()
	infos := map[string]types.MediaInfo{}
	var inputs []Input
	for _, name := range []string{"a", "b", "c"} {
		path := "/videos/" + name + ".mp4"
		infos[path] = hd
		inputs = append(inputs, Input{InputPath: path, OutputDir: out})
	}
	encoder := &fakeEncoder{delay: 10 * time.Millisecond}
	conv := newTestConverter(&fakeProber{infos: infos}, encoder, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			conv.RunBatch(context.Background(), inputs)
		}()
		go func() {
			defer wg.Done()
			conv.Convert(context.Background(), inputs[0])
		}()
	}
	wg.Wait()

	assert.Len(t, encoder.inputs(), 12)
	assert.Equal(t, 1, encoder.maxSeen)
}
