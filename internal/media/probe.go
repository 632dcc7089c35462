package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/video-publisher/internal/metrics"
	"github.com/amillerrr/video-publisher/pkg/models"
)

// Rounded width/height ratios of the two recognised geometries.
const (
	LandscapeRatio = 1.78 // 16:9
	PortraitRatio  = 0.56 // 9:16
)

// DefaultFFprobe is the inspector binary used when none is configured.
const DefaultFFprobe = "ffprobe"

// Prober classifies a staged video by aspect ratio.
type Prober struct {
	runner Runner
	binary string
}

// NewProber creates a Prober. An empty binary means DefaultFFprobe.
func NewProber(runner Runner, binary string) *Prober {
	if binary == "" {
		binary = DefaultFFprobe
	}
	return &Prober{runner: runner, binary: binary}
}

// probeOutput is the subset of `ffprobe -print_format json -show_streams` we read.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType string          `json:"codec_type"`
	Width     json.RawMessage `json:"width"`
	Height    json.RawMessage `json:"height"`
}

// Probe runs the inspector against f and returns its aspect class.
func (p *Prober) Probe(ctx context.Context, f *models.StagedFile) (models.AspectClass, error) {
	ctx, span := tracer.Start(ctx, "probe-geometry")
	defer span.End()

	start := time.Now()
	out, err := p.runner.Run(ctx, p.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		f.Path,
	)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", models.ErrProbeFailed, err)
	}

	width, height, err := parseDimensions(out)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", models.ErrProbeFailed, err)
	}

	class := ClassifyDimensions(width, height)
	metrics.StageDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("video.width", width),
		attribute.Int("video.height", height),
		attribute.String("video.aspect_class", string(class)),
	)

	return class, nil
}

// parseDimensions extracts the primary video stream's width and height.
func parseDimensions(out []byte) (int, int, error) {
	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, 0, fmt.Errorf("unparseable inspector output: %v", err)
	}

	stream, ok := primaryVideoStream(parsed.Streams)
	if !ok {
		return 0, 0, fmt.Errorf("no video stream found")
	}

	width, err := parseDimension(stream.Width)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width: %v", err)
	}
	height, err := parseDimension(stream.Height)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height: %v", err)
	}

	return width, height, nil
}

func primaryVideoStream(streams []probeStream) (probeStream, bool) {
	for _, s := range streams {
		if s.CodecType == "video" {
			return s, true
		}
	}
	// Some containers omit codec_type; take the first stream that has dimensions.
	for _, s := range streams {
		if s.CodecType == "" && len(s.Width) > 0 && len(s.Height) > 0 {
			return s, true
		}
	}
	return probeStream{}, false
}

// parseDimension accepts a JSON number or a numeric string and requires a positive value.
func parseDimension(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing")
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("not a number: %s", raw)
		}
		n, err = strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}

	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

// ClassifyRatio maps a width/height ratio to an aspect class after
// rounding it to two decimal places.
func ClassifyRatio(ratio float64) models.AspectClass {
	rounded := math.Round(ratio*100) / 100
	switch rounded {
	case LandscapeRatio:
		return models.AspectLandscape
	case PortraitRatio:
		return models.AspectPortrait
	default:
		return models.AspectOther
	}
}

// ClassifyDimensions classifies a width x height frame. Both must be positive.
func ClassifyDimensions(width, height int) models.AspectClass {
	return ClassifyRatio(float64(width) / float64(height))
}
