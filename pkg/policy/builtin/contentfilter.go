package builtin

import (
	"context"
	"fmt"
	"regexp"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// ContentFilter redacts text matching the configured patterns before it
// reaches the client. Matching runs on each delta independently, so a match
// split across delta boundaries is not detected.
//
// Settings:
//
//	patterns:    list of regular expressions to redact
//	replacement: redaction text (default "[redacted]")
type ContentFilter struct {
	policy.Base

	patterns    []*regexp.Regexp
	replacement string
}

// NewContentFilter builds a ContentFilter from its settings.
func NewContentFilter(settings map[string]any) (policy.Policy, error) {
	raw, err := stringSlice(settings, "patterns")
	if err != nil {
		return nil, err
	}
	replacement, err := stringValue(settings, "replacement", "[redacted]")
	if err != nil {
		return nil, err
	}

	f := &ContentFilter{replacement: replacement}
	for _, pattern := range raw {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("patterns entry %q: %w", pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Name implements policy.Policy.
func (*ContentFilter) Name() string { return "content_filter" }

// OnChunkFinished forwards the chunk, redacting any matching content first.
// The chunk is cloned before mutation; the original stays shared with the
// aggregator.
func (f *ContentFilter) OnChunkFinished(ctx context.Context, sc policy.Context, _ policy.State, chunk *providers.Chunk) error {
	if chunk.ContentDelta == nil || *chunk.ContentDelta == "" {
		return sc.Send(ctx, chunk)
	}

	text := *chunk.ContentDelta
	redacted := text
	for _, re := range f.patterns {
		redacted = re.ReplaceAllString(redacted, f.replacement)
	}
	if redacted == text {
		return sc.Send(ctx, chunk)
	}

	sc.Emit(ctx, "content_filter.redacted", "content delta redacted", map[string]any{
		"original_len": len(text),
	}, events.SeverityWarning)

	out := chunk.Clone()
	out.ContentDelta = providers.Text(redacted)
	return sc.Send(ctx, out)
}
