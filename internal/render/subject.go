package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

// DefaultSubjectTemplate is used when the campaign config doesn't override it.
const DefaultSubjectTemplate = `{{ first_name | default: "Hey" }}, your coliving pick in {{ region }} 🌴`

// subjectEngine is a process-wide Liquid engine with the filters subject
// templates rely on. Parsed templates are cached; the weekly campaign
// renders the same template thousands of times per run.
var subjectEngine = struct {
	once   sync.Once
	engine *liquid.Engine
	cache  sync.Map // template string -> *liquid.Template
}{}

func engine() *liquid.Engine {
	subjectEngine.once.Do(func() {
		e := liquid.NewEngine()
		e.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
			if value == nil {
				return fallback
			}
			if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
				return fallback
			}
			return value
		})
		e.RegisterFilter("titlecase", func(s string) string {
			return strings.Title(strings.ToLower(s))
		})
		subjectEngine.engine = e
	})
	return subjectEngine.engine
}

// Subject renders the campaign subject line for one subscriber. Rendering is
// lax: a broken template falls back to a plain subject rather than failing
// the send.
func Subject(templateStr string, sub *domain.Subscriber, rec *domain.Recommendation) string {
	if templateStr == "" {
		templateStr = DefaultSubjectTemplate
	}

	ctx := map[string]interface{}{
		"first_name":   "",
		"region":       rec.RegionUsed,
		"listing_name": rec.Listing.Name,
		"city":         rec.Listing.City,
	}
	if sub != nil {
		ctx["first_name"] = sub.FirstName
	}

	tpl, err := parseCached(templateStr)
	if err != nil {
		logger.Warn("subject template parse failed, using fallback", "error", err)
		return fallbackSubject(rec)
	}
	out, err := tpl.RenderString(ctx)
	if err != nil {
		logger.Warn("subject template render failed, using fallback", "error", err)
		return fallbackSubject(rec)
	}
	return out
}

func parseCached(templateStr string) (*liquid.Template, error) {
	if cached, ok := subjectEngine.cache.Load(templateStr); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := engine().ParseString(templateStr)
	if err != nil {
		return nil, err
	}
	subjectEngine.cache.Store(templateStr, tpl)
	return tpl, nil
}

func fallbackSubject(rec *domain.Recommendation) string {
	return fmt.Sprintf("Your coliving pick in %s", rec.RegionUsed)
}
