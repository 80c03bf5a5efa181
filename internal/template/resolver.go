package template

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

const (
	// DefaultTitle is what an unresolved template degrades to. Resolution
	// never fails outright; absence is a normal outcome.
	DefaultTitle = "Notification"

	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Source is the template store. Absent records come back as (nil, nil).
type Source interface {
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	GetLegacyTemplate(ctx context.Context, id string, ch models.Channel) (*models.LegacyTemplate, error)
}

// Content is a render-ready template for one channel.
type Content struct {
	Title     string
	Body      string
	Variables []string
}

// Resolver looks templates up through an ordered list of schema tiers —
// unified record first, then the legacy per-channel record — and falls back
// to a safe default when neither holds the template.
type Resolver struct {
	src     Source
	cache   *gocache.Cache
	lookups []lookupFunc
	log     zerolog.Logger
}

type lookupFunc func(ctx context.Context, id string, ch models.Channel) (*Content, error)

func NewResolver(src Source, log zerolog.Logger) *Resolver {
	r := &Resolver{
		src:   src,
		cache: gocache.New(cacheTTL, cacheCleanup),
		log:   log,
	}
	r.lookups = []lookupFunc{r.fromUnified, r.fromLegacy}
	return r
}

// Resolve returns the (title, body) pair for the template on the given
// channel. Store errors are logged and treated as a miss for that tier.
func (r *Resolver) Resolve(ctx context.Context, id string, ch models.Channel) Content {
	key := id + "|" + string(ch)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(Content)
	}

	content := r.resolve(ctx, id, ch)
	r.cache.Set(key, content, gocache.DefaultExpiration)
	return content
}

func (r *Resolver) resolve(ctx context.Context, id string, ch models.Channel) Content {
	for _, lookup := range r.lookups {
		c, err := lookup(ctx, id, ch)
		if err != nil {
			r.log.Warn().Err(err).Str("template_id", id).Str("channel", string(ch)).
				Msg("template lookup failed, trying next tier")
			continue
		}
		if c != nil {
			return *c
		}
	}
	r.log.Warn().Str("template_id", id).Str("channel", string(ch)).
		Msg("template not found in any schema, using default")
	return Content{Title: DefaultTitle}
}

// fromUnified reads the unified record, selecting the channel-specific fields
// and borrowing the other channel's when the requested ones are absent.
func (r *Resolver) fromUnified(ctx context.Context, id string, ch models.Channel) (*Content, error) {
	t, err := r.src.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	var title, body string
	switch ch {
	case models.ChannelPush:
		title, body = t.PushTitle, t.PushBody
		if title == "" {
			title = t.EmailTitle
		}
		if body == "" {
			body = t.EmailBody
		}
	default:
		title, body = t.EmailTitle, t.EmailBody
		if title == "" {
			title = t.PushTitle
		}
		if body == "" {
			body = t.PushBody
		}
	}
	if title == "" && body == "" {
		return nil, nil
	}
	return &Content{Title: title, Body: body, Variables: t.SuggestedVars}, nil
}

func (r *Resolver) fromLegacy(ctx context.Context, id string, ch models.Channel) (*Content, error) {
	t, err := r.src.GetLegacyTemplate(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return &Content{Title: t.Title, Body: t.Body}, nil
}
