// Package chart renders a canonical population series to SVG and stores the
// result under a fixed, per-mode artifact key.
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"popgraph/internal/blob"
	"popgraph/internal/logging"
	"popgraph/pkg/domain"
)

// Mode selects the chart layout.
type Mode string

const (
	// ModeCombined draws total, male and female as grouped bars.
	ModeCombined Mode = "combined"
	// ModeTotalOnly draws totals with value labels and progressive shading.
	ModeTotalOnly Mode = "total-only"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeCombined, ModeTotalOnly}

// ErrUnknownMode is returned for a mode outside Modes.
var ErrUnknownMode = errors.New("unknown chart mode")

// ParseMode accepts a mode name, case-insensitively. "total" is an alias of
// total-only.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeCombined), "":
		return ModeCombined, nil
	case string(ModeTotalOnly), "total", "total_only":
		return ModeTotalOnly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Filename is the fixed artifact name for a mode.
func (m Mode) Filename() string {
	if m == ModeTotalOnly {
		return "total_population.svg"
	}
	return "population.svg"
}

const (
	DefaultPrefix = "img/"
	DefaultWidth  = 1600
	DefaultHeight = 1000

	combinedBarWidth = 0.3
	totalBarWidth    = 0.6
	headroom         = 1.1
	contentType      = "image/svg+xml"
)

// Fixed role colors for combined mode.
var (
	ColorTotal  = drawing.ColorFromHex("2E86AB")
	ColorMale   = drawing.ColorFromHex("A23B72")
	ColorFemale = drawing.ColorFromHex("F18F01")
)

// Labels holds the human readable chart text.
type Labels struct {
	CombinedTitle string
	TotalTitle    string
	XAxis         string
	YAxisCombined string
	YAxisTotal    string
	Total         string
	Male          string
	Female        string
}

// DefaultLabels matches the source statistics tables.
var DefaultLabels = Labels{
	CombinedTitle: "年齢階級別の人口分布（男女計・男子・女子）",
	TotalTitle:    "年齢階級別の総人口分布",
	XAxis:         "年齢階級",
	YAxisCombined: "人口（人）",
	YAxisTotal:    "総人口（人）",
	Total:         "男女計",
	Male:          "男子",
	Female:        "女子",
}

// Artifact identifies a rendered chart.
type Artifact struct {
	Mode Mode `json:"mode"`
	// Key is the stable output identifier inside the blob store.
	Key  string `json:"key"`
	Size int64  `json:"size_bytes"`
	// URL is empty when the store cannot address objects.
	URL string `json:"url,omitempty"`
}

// Renderer turns series into stored SVG artifacts.
type Renderer struct {
	store   blob.Store
	prefix  string
	width   int
	height  int
	labels  Labels
	printer *message.Printer
	log     Logger

	locks map[Mode]*sync.Mutex
	bufs  sync.Pool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPrefix sets the key prefix artifacts are written under.
func WithPrefix(prefix string) Option { return func(r *Renderer) { r.prefix = prefix } }

// WithSize sets the canvas size in pixels.
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// Logger is the subset of *slog.Logger the renderer writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns a Renderer writing to store.
func New(store blob.Store, opts ...Option) *Renderer {
	r := &Renderer{
		store:   store,
		prefix:  DefaultPrefix,
		width:   DefaultWidth,
		height:  DefaultHeight,
		labels:  DefaultLabels,
		printer: message.NewPrinter(language.English),
		log:     logging.Component("chart"),
		locks:   make(map[Mode]*sync.Mutex, len(Modes)),
		bufs:    sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
	for _, m := range Modes {
		r.locks[m] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the artifact key for mode.
func (r *Renderer) Key(mode Mode) string { return r.prefix + mode.Filename() }

// Render draws series in mode and replaces the mode's artifact. An empty
// series yields domain.ErrNoData and leaves the previous artifact in place.
func (r *Renderer) Render(ctx context.Context, mode Mode, series domain.CanonicalSeries) (Artifact, error) {
	lock, ok := r.locks[mode]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if len(series) == 0 {
		return Artifact{}, fmt.Errorf("render %s: %w", mode, domain.ErrNoData)
	}
	buf := r.bufs.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufs.Put(buf)
	}()
	if err := r.Draw(mode, series, buf); err != nil {
		return Artifact{}, fmt.Errorf("draw %s: %w", mode, err)
	}

	key := r.Key(mode)
	lock.Lock()
	info, err := blob.Replace(ctx, r.store, key, bytes.NewReader(buf.Bytes()), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"mode": string(mode), "categories": fmt.Sprint(len(series))},
	})
	lock.Unlock()
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", key, err)
	}
	art := Artifact{Mode: mode, Key: key, Size: info.Size}
	if u, err := r.store.URL(ctx, key, 0); err == nil {
		art.URL = u
	} else if !errors.Is(err, blob.ErrUnsupported) {
		r.log.Warn("artifact url unavailable", "key", key, "error", err)
	}
	r.log.Debug("chart stored", "mode", mode, "key", key, "bytes", info.Size, "categories", len(series))
	return art, nil
}

// Draw writes the SVG for series in mode to w without storing it.
func (r *Renderer) Draw(mode Mode, series domain.CanonicalSeries, w io.Writer) error {
	if len(series) == 0 {
		return domain.ErrNoData
	}
	var c gochart.Chart
	switch mode {
	case ModeCombined:
		c = r.combined(series)
	case ModeTotalOnly:
		c = r.totalOnly(series)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return c.Render(gochart.SVG, w)
}

func (r *Renderer) base(title, yName string, series domain.CanonicalSeries, max int64) gochart.Chart {
	// go-chart takes the x range from the outermost ticks, so blank ticks half a
	// slot beyond each end keep the edge bars inside the plot. A single bracket
	// would otherwise have a zero-width range.
	n := len(series)
	ticks := make([]gochart.Tick, 0, n+2)
	ticks = append(ticks, gochart.Tick{Value: -0.5})
	for i, p := range series {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: p.AgeBracket})
	}
	ticks = append(ticks, gochart.Tick{Value: float64(n) - 0.5})
	top := float64(max) * headroom
	if top <= 0 {
		top = 1
	}
	grid := gochart.Style{StrokeColor: drawing.ColorFromHex("BBBBBB"), StrokeWidth: 1, StrokeDashArray: []float64{4, 4}}
	return gochart.Chart{
		Title:      title,
		TitleStyle: gochart.Style{FontSize: 20},
		Width:      r.width,
		Height:     r.height,
		Background: gochart.Style{Padding: gochart.Box{Top: 70, Left: 30, Right: 40, Bottom: 30}},
		XAxis: gochart.XAxis{
			Name:  r.labels.XAxis,
			Style: gochart.Style{TextRotationDegrees: 45, FontSize: 12},
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Name:           yName,
			Style:          gochart.Style{FontSize: 12},
			Range:          &gochart.ContinuousRange{Min: 0, Max: top},
			ValueFormatter: r.countFormatter,
			GridMajorStyle: grid,
			GridMinorStyle: grid,
		},
	}
}

func (r *Renderer) countFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return r.printer.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

func (r *Renderer) combined(series domain.CanonicalSeries) gochart.Chart {
	total := make([]float64, len(series))
	male := make([]float64, len(series))
	female := make([]float64, len(series))
	var max int64
	for i, p := range series {
		total[i], male[i], female[i] = float64(p.Total), float64(p.Male), float64(p.Female)
		max = maxOf(max, p.Total, p.Male, p.Female)
	}
	c := r.base(r.labels.CombinedTitle, r.labels.YAxisCombined, series, max)
	edge := drawing.ColorWhite
	c.Series = []gochart.Series{
		barSeries{name: r.labels.Total, values: total, offset: -combinedBarWidth, width: combinedBarWidth, color: alpha(ColorTotal), edge: edge},
		barSeries{name: r.labels.Male, values: male, offset: 0, width: combinedBarWidth, color: alpha(ColorMale), edge: edge},
		barSeries{name: r.labels.Female, values: female, offset: combinedBarWidth, width: combinedBarWidth, color: alpha(ColorFemale), edge: edge},
	}
	c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	return c
}

func (r *Renderer) totalOnly(series domain.CanonicalSeries) gochart.Chart {
	total := make([]float64, len(series))
	fills := make([]drawing.Color, len(series))
	for i, p := range series {
		total[i] = float64(p.Total)
		fills[i] = alpha(Blues(0.3 + 0.7*float64(i)/float64(len(series))))
	}
	c := r.base(r.labels.TotalTitle, r.labels.YAxisTotal, series, series.MaxTotal())
	c.Series = []gochart.Series{
		barSeries{name: r.labels.Total, values: total, width: totalBarWidth, color: alpha(ColorTotal), fills: fills, edge: drawing.ColorWhite, labels: true, printer: r.printer},
	}
	return c
}

func alpha(c drawing.Color) drawing.Color {
	c.A = 204
	return c
}

func maxOf(cur int64, vs ...int64) int64 {
	for _, v := range vs {
		if v > cur {
			cur = v
		}
	}
	return cur
}
