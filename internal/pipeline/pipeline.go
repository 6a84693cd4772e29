// Package pipeline runs one article through selection, sentiment attribution,
// the competitive override and impact scoring, in that order.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"newsinsight/internal/competitive"
	"newsinsight/internal/entity"
	"newsinsight/internal/figures"
	"newsinsight/internal/fusion"
	"newsinsight/internal/registry"
	"newsinsight/internal/relevance"
	"newsinsight/internal/sentiment"
)

// Article is the read-only input of one pipeline run.
type Article struct {
	Title        string
	Content      string
	Link         string
	Feed         string
	SourceWeight float64
	PublishedAt  *time.Time
}

// Status is the terminal state of a run.
type Status string

const (
	StatusInsights    Status = "insights"
	StatusNoEntity    Status = "no_entity"
	StatusAmbiguous   Status = "ambiguous_subject"
	StatusNoSentiment Status = "no_sentiment"
)

// Degraded stage names.
const (
	DegradedLabeler    = "labeler"
	DegradedClassifier = "classifier"
	DegradedGraph      = "graph"
	DegradedEvent      = "event"
	DegradedRegistry   = "registry"
)

// Result carries everything a run decided. It is always returned; a run never
// fails as a whole.
type Result struct {
	Status   Status
	Stage    relevance.Stage
	Selected []entity.Validated
	Verdicts map[string]sentiment.Verdict
	Override competitive.Override
	Event    fusion.EventType
	Insights []fusion.Insight
	Degraded []string
}

// Options wires a pipeline. Events may be nil, in which case every article
// is General News.
type Options struct {
	Registry   *registry.Holder
	Selector   *relevance.Selector
	Attributor *sentiment.Attributor
	Engine     *competitive.Engine
	Events     fusion.EventClassifier
	EventTable fusion.EventTable
	KeyFigures bool
	Now        func() time.Time
}

// Pipeline is safe for concurrent use when its collaborators are.
type Pipeline struct {
	registry   *registry.Holder
	selector   *relevance.Selector
	attributor *sentiment.Attributor
	engine     *competitive.Engine
	events     fusion.EventClassifier
	table      fusion.EventTable
	keyFigures bool
	now        func() time.Time
	logger     zerolog.Logger
}

// New constructs a pipeline.
func New(opts Options, logger zerolog.Logger) *Pipeline {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	holder := opts.Registry
	if holder == nil {
		holder = registry.NewHolder(nil)
	}
	return &Pipeline{
		registry:   holder,
		selector:   opts.Selector,
		attributor: opts.Attributor,
		engine:     opts.Engine,
		events:     opts.Events,
		table:      opts.EventTable,
		keyFigures: opts.KeyFigures,
		now:        now,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Registry exposes the snapshot holder so callers can reload it.
func (p *Pipeline) Registry() *registry.Holder { return p.registry }

// Process runs the article through every stage.
func (p *Pipeline) Process(ctx context.Context, art Article) Result {
	reg := p.registry.Load()
	var res Result
	if reg.Len() == 0 {
		res.Degraded = append(res.Degraded, DegradedRegistry)
	}

	sel := p.selector.Select(ctx, reg, art.Title, art.Content)
	res.Stage = sel.Stage
	if sel.Degraded {
		res.Degraded = append(res.Degraded, DegradedLabeler)
	}
	switch sel.Outcome {
	case relevance.OutcomeNoEntity:
		res.Status = StatusNoEntity
		return res
	case relevance.OutcomeAmbiguous:
		res.Status = StatusAmbiguous
		p.logger.Debug().Str("link", art.Link).Interface("scores", sel.Scores).Msg("no clear subject")
		return res
	}
	res.Selected = sel.Entities

	attr := p.attributor.Attribute(ctx, art.Content, sel.Entities)
	if attr.Degraded {
		res.Degraded = append(res.Degraded, DegradedClassifier)
	}
	res.Verdicts = attr.Verdicts

	if p.engine != nil {
		res.Override = p.engine.Apply(ctx, art.Title, sel.Headline, res.Verdicts)
		if res.Override.Degraded {
			res.Degraded = append(res.Degraded, DegradedGraph)
		}
	}

	if len(res.Verdicts) == 0 {
		res.Status = StatusNoSentiment
		return res
	}

	res.Event = p.classifyEvent(ctx, art, &res)
	multiplier := p.table.Multiplier(res.Event)

	var keyFigures figures.KeyFigures
	if p.keyFigures {
		keyFigures = figures.Extract(art.Content)
	}

	ts := p.now()
	for _, ent := range sel.Entities {
		verdict, ok := res.Verdicts[ent.Ticker]
		if !ok {
			continue
		}
		res.Insights = append(res.Insights, fusion.Insight{
			Timestamp:    ts,
			ArticleTitle: art.Title,
			Link:         art.Link,
			CompanyName:  ent.OfficialName,
			Ticker:       ent.Ticker,
			Sentiment:    verdict.Label,
			Confidence:   verdict.Confidence,
			EventType:    res.Event,
			ImpactScore:  fusion.ImpactScore(verdict.Confidence, art.SourceWeight, multiplier),
			KeyFigures:   keyFigures,
		})
	}
	res.Status = StatusInsights
	if len(res.Insights) == 0 {
		res.Status = StatusNoSentiment
	}
	return res
}

func (p *Pipeline) classifyEvent(ctx context.Context, art Article, res *Result) fusion.EventType {
	if p.events == nil {
		return fusion.EventGeneral
	}
	raw, err := p.events.ClassifyEvent(ctx, art.Title)
	if err != nil {
		p.logger.Warn().Err(err).Str("link", art.Link).Msg("event classifier failed, using General News")
		res.Degraded = append(res.Degraded, DegradedEvent)
		return fusion.EventGeneral
	}
	return fusion.CanonicalEvent(raw)
}
