package provider

import (
	"context"
	"html"
	"maps"
	"slices"
	"strings"
)

// HTML renders the projection as the stub's detail body: an unordered list
// of "key: value" entries sorted by key. Keys stored as dedicated stub fields
// are left out.
func (p *Provider) HTML(ctx context.Context) (string, error) {
	data, err := p.Data(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("<ul>")
	for _, key := range slices.Sorted(maps.Keys(data)) {
		if slices.Contains(bodyExclude, key) {
			continue
		}
		sb.WriteString("<li><strong>")
		sb.WriteString(html.EscapeString(key))
		sb.WriteString("</strong>: ")
		sb.WriteString(html.EscapeString(data[key]))
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
	return sb.String(), nil
}
