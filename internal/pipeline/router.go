package pipeline

import (
	"slices"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
)

var routes = map[domain.Category][]ports.StageName{
	domain.CategoryAIHistory: {ports.StageHistorian, ports.StageDispatch, ports.StageFormatter},
	domain.CategoryO365:      {ports.StageDispatch, ports.StageFormatter},
	domain.CategoryHardware:  {ports.StageDispatch, ports.StageFormatter},
	domain.CategoryLogin:     {ports.StageDispatch, ports.StageFormatter},
	domain.CategoryOther:     {ports.StageFormatter},
}

// Route returns the ordered stages to run for category. Unknown categories
// take the OTHER route. The returned slice is a copy.
func Route(category domain.Category) []ports.StageName {
	route, ok := routes[category]
	if !ok {
		route = routes[domain.CategoryOther]
	}
	return slices.Clone(route)
}
