// Package pdf assembles practice documents: a cover page listing the
// selected questions, then the question pages, then optionally the
// solution pages, all cut from the source PDFs.
package pdf

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	apperrors "github.com/hrygo/mintmaths/internal/errors"
	"github.com/hrygo/mintmaths/store"
)

func init() {
	// pdfcpu would otherwise create a config directory under the user's home.
	api.DisableConfigDir()
}

// Builder turns a selection into a single PDF.
type Builder struct {
	source           Source
	includeSolutions bool
	now              func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSolutions toggles appending solution pages after the questions.
func WithSolutions(include bool) BuilderOption {
	return func(b *Builder) {
		b.includeSolutions = include
	}
}

// WithClock sets the time printed on the cover.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a builder that reads source PDFs from source.
// Solutions are included by default.
func NewBuilder(source Source, opts ...BuilderOption) *Builder {
	b := &Builder{
		source:           source,
		includeSolutions: true,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IncludesSolutions reports whether solution pages are appended.
func (b *Builder) IncludesSolutions() bool {
	return b.includeSolutions
}

// Variant names the builder settings that change the output for the same
// selection. Documents built under different variants are cached apart.
func (b *Builder) Variant() string {
	if b.includeSolutions {
		return "solutions=1"
	}
	return "solutions=0"
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Build renders the document for selection.
//
// Sources that cannot be read and pages outside a source are logged and
// skipped, so a document may hold only its cover. A cover or merge failure
// fails the build with BUILD_FAILED.
func (b *Builder) Build(ctx context.Context, selection store.Selection) ([]byte, error) {
	titles := make([]string, len(selection))
	for i, q := range selection {
		titles[i] = q.Title()
	}
	cover, err := renderCover(titles, b.now())
	if err != nil {
		return nil, apperrors.BuildFailure("failed to create cover page", err)
	}

	a := &assembly{
		ctx:     ctx,
		source:  b.source,
		conf:    newConfiguration(),
		sources: map[string][]byte{},
		parts:   []io.ReadSeeker{bytes.NewReader(cover)},
	}
	for _, q := range selection {
		a.addPages(q.QuestionRef, q.QuestionPages, "question")
	}
	if b.includeSolutions {
		for _, q := range selection {
			a.addPages(q.SolutionRef, q.SolutionPages, "solution")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("assembling document",
		slog.Int("questions", len(selection)),
		slog.Int("parts", len(a.parts)),
		slog.Int("skipped", a.skipped))
	if len(a.parts) == 1 {
		return cover, nil
	}

	var out bytes.Buffer
	if err := api.MergeRaw(a.parts, &out, false, a.conf); err != nil {
		return nil, apperrors.BuildFailure("failed to merge pages", err)
	}
	return out.Bytes(), nil
}

// assembly collects the page ranges of one build.
type assembly struct {
	ctx    context.Context
	source Source
	conf   *model.Configuration

	// sources caches each reference for the build; nil marks a failed read.
	sources map[string][]byte
	parts   []io.ReadSeeker
	skipped int
}

func (a *assembly) open(ref string) []byte {
	if data, ok := a.sources[ref]; ok {
		return data
	}
	data, err := a.source.Open(a.ctx, ref)
	if err != nil {
		slog.Warn("skipping unreadable source", slog.String("ref", ref), slog.String("error", err.Error()))
		data = nil
	}
	a.sources[ref] = data
	return data
}

func (a *assembly) addPages(ref, spec, label string) {
	if ref == "" || a.ctx.Err() != nil {
		return
	}
	pages := ParsePageSpec(spec)
	if len(pages) == 0 {
		return
	}
	data := a.open(ref)
	if data == nil {
		a.skipped++
		return
	}

	count, err := api.PageCount(bytes.NewReader(data), a.conf)
	if err != nil {
		slog.Warn("skipping invalid pdf", slog.String("ref", ref), slog.String("error", err.Error()))
		a.skipped++
		return
	}

	selected := make([]string, 0, len(pages))
	for _, p := range pages {
		if p > count {
			slog.Warn("page out of range",
				slog.String("kind", label),
				slog.String("ref", ref),
				slog.Int("page", p),
				slog.Int("pageCount", count))
			continue
		}
		selected = append(selected, strconv.Itoa(p))
	}
	if len(selected) == 0 {
		a.skipped++
		return
	}

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, selected, a.conf); err != nil {
		slog.Warn("skipping pages that could not be extracted",
			slog.String("ref", ref), slog.String("error", err.Error()))
		a.skipped++
		return
	}
	a.parts = append(a.parts, bytes.NewReader(buf.Bytes()))
}
