// Package render turns a recommendation into the HTML and plain-text email
// bodies. Rendering is pure: same subscriber + payload in, same string out.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/colively/campaign-engine/internal/domain"
)

// Renderer holds the static pieces of rendering: where CTA links point.
type Renderer struct {
	SiteBaseURL string
}

// NewRenderer creates a renderer for the given site.
func NewRenderer(siteBaseURL string) *Renderer {
	return &Renderer{SiteBaseURL: strings.TrimRight(siteBaseURL, "/")}
}

// CTALink derives the call-to-action URL from the listing's region code,
// falling back to the display name when no code is stored.
func (r *Renderer) CTALink(listing domain.Listing) string {
	slug := listing.RegionCode
	if slug == "" {
		slug = listing.Region
	}
	slug = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(slug), " ", "-"))
	if slug == "" {
		return r.SiteBaseURL
	}
	return fmt.Sprintf("%s/coliving/%s", r.SiteBaseURL, slug)
}

func greetingName(sub *domain.Subscriber) string {
	if sub != nil && sub.FirstName != "" {
		return sub.FirstName
	}
	return "there"
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	default:
		return code + " "
	}
}

// HTML renders the full HTML document for one recommendation. Every
// populated payload field appears; missing optional fields drop their
// section entirely instead of rendering empty placeholders.
func (r *Renderer) HTML(sub *domain.Subscriber, rec *domain.Recommendation) string {
	l := rec.Listing
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        h1 { color: #1a1a1a; font-size: 24px; margin-bottom: 10px; }
        h2 { color: #1a1a1a; font-size: 18px; margin-top: 28px; }
        .meta { color: #666; font-size: 14px; margin-bottom: 20px; }
        .logo { width: 100%; max-width: 100%; height: auto; border-radius: 8px; margin-bottom: 20px; }
        .place { margin: 6px 0; }
        .muted { color: #888; font-size: 14px; }
        .cta { display: inline-block; background: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 20px; }
    </style>
</head>
<body>
`)

	fmt.Fprintf(&b, "    <p>Hi %s,</p>\n", html.EscapeString(greetingName(sub)))
	fmt.Fprintf(&b, "    <h1>%s</h1>\n", html.EscapeString(l.Name))
	fmt.Fprintf(&b, "    <p class=\"meta\">%s, %s</p>\n", html.EscapeString(l.City), html.EscapeString(l.Region))

	if l.LogoURL != "" {
		fmt.Fprintf(&b, "    <img src=\"%s\" alt=\"%s\" class=\"logo\">\n", html.EscapeString(l.LogoURL), html.EscapeString(l.Name))
	}

	var facts []string
	if l.PriceMonth > 0 {
		facts = append(facts, fmt.Sprintf("from %s%d/month", currencySymbol(l.Currency), l.PriceMonth))
	}
	if l.Rating > 0 {
		facts = append(facts, fmt.Sprintf("rated %.1f", l.Rating))
	}
	if len(facts) > 0 {
		fmt.Fprintf(&b, "    <p><strong>%s</strong></p>\n", html.EscapeString(strings.Join(facts, " · ")))
	}

	fmt.Fprintf(&b, "    <p>%s</p>\n", html.EscapeString(l.Description))

	if len(l.Amenities) > 0 {
		escaped := make([]string, 0, len(l.Amenities))
		for _, a := range l.Amenities {
			escaped = append(escaped, html.EscapeString(a))
		}
		fmt.Fprintf(&b, "    <p class=\"muted\">Amenities: %s</p>\n", strings.Join(escaped, ", "))
	}

	if len(rec.Places) == 0 && len(rec.Communities) == 0 {
		b.WriteString("    <p class=\"muted\">We're still mapping the neighborhood around this one — more next week.</p>\n")
	}

	if len(rec.Places) > 0 {
		b.WriteString("    <h2>Around the corner</h2>\n")
		for _, p := range rec.Places {
			line := fmt.Sprintf("%s (%s) — rated %.1f", p.Name, p.Category, p.Rating)
			if p.Distance != "" {
				line += ", " + p.Distance
			}
			fmt.Fprintf(&b, "    <p class=\"place\">%s</p>\n", html.EscapeString(line))
		}
	}

	if len(rec.Communities) > 0 {
		b.WriteString("    <h2>Meet people already there</h2>\n")
		for _, c := range rec.Communities {
			label := c.DisplayName
			if label == "" {
				label = c.Platform
			}
			line := html.EscapeString(label)
			if c.Platform != "" && c.DisplayName != "" {
				line += " on " + html.EscapeString(c.Platform)
			}
			if c.Members > 0 {
				line += fmt.Sprintf(" (%d members)", c.Members)
			}
			fmt.Fprintf(&b, "    <p class=\"place\"><a href=\"%s\">%s</a></p>\n", html.EscapeString(c.JoinURL), line)
		}
	}

	fmt.Fprintf(&b, "    <p><a href=\"%s\" class=\"cta\">See all colivings in %s</a></p>\n",
		html.EscapeString(r.CTALink(l)), html.EscapeString(l.Region))
	b.WriteString("</body>\n</html>")

	return b.String()
}

// Text renders the plain-text alternative. Empty sections are omitted
// entirely; text clients get no placeholder copy.
func (r *Renderer) Text(sub *domain.Subscriber, rec *domain.Recommendation) string {
	l := rec.Listing
	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(sub))
	fmt.Fprintf(&b, "%s\n%s, %s\n", l.Name, l.City, l.Region)

	if l.PriceMonth > 0 {
		fmt.Fprintf(&b, "From %s%d/month", currencySymbol(l.Currency), l.PriceMonth)
		if l.Rating > 0 {
			fmt.Fprintf(&b, " - rated %.1f", l.Rating)
		}
		b.WriteString("\n")
	} else if l.Rating > 0 {
		fmt.Fprintf(&b, "Rated %.1f\n", l.Rating)
	}

	fmt.Fprintf(&b, "\n%s\n", l.Description)

	if len(l.Amenities) > 0 {
		fmt.Fprintf(&b, "\nAmenities: %s\n", strings.Join(l.Amenities, ", "))
	}

	if len(rec.Places) > 0 {
		b.WriteString("\nAround the corner:\n")
		for _, p := range rec.Places {
			fmt.Fprintf(&b, "- %s (%s), rated %.1f", p.Name, p.Category, p.Rating)
			if p.Distance != "" {
				fmt.Fprintf(&b, ", %s", p.Distance)
			}
			b.WriteString("\n")
		}
	}

	if len(rec.Communities) > 0 {
		b.WriteString("\nMeet people already there:\n")
		for _, c := range rec.Communities {
			label := c.DisplayName
			if label == "" {
				label = c.Platform
			}
			fmt.Fprintf(&b, "- %s", label)
			if c.Members > 0 {
				fmt.Fprintf(&b, " (%d members)", c.Members)
			}
			if c.JoinURL != "" {
				fmt.Fprintf(&b, ": %s", c.JoinURL)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nSee all colivings in %s: %s\n", l.Region, r.CTALink(l))
	return b.String()
}
