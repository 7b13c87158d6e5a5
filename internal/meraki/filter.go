package meraki

import (
	"sort"
	"strings"
)

// Product types the dashboard reports for networks.
const (
	ProductWireless  = "wireless"
	ProductSwitch    = "switch"
	ProductAppliance = "appliance"
	ProductCamera    = "camera"
)

// ProductTypes is the configured set of product types to poll.
type ProductTypes map[string]struct{}

// NewProductTypes builds a set, ignoring blanks and surrounding whitespace.
func NewProductTypes(types ...string) ProductTypes {
	set := make(ProductTypes, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Intersect returns the sorted, de-duplicated product types present both in
// the set and in networkTypes.
func (p ProductTypes) Intersect(networkTypes []string) []string {
	seen := make(map[string]struct{}, len(networkTypes))
	var out []string
	for _, t := range networkTypes {
		if _, ok := p[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// List returns the set's members sorted.
func (p ProductTypes) List() []string {
	out := make([]string, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
