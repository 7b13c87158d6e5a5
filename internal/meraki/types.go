package meraki

import "encoding/json"

// Organization is a Meraki dashboard organization.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Network is a Meraki network and the device classes it contains.
type Network struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	Name           string   `json:"name"`
	ProductTypes   []string `json:"productTypes"`
	TimeZone       string   `json:"timeZone,omitempty"`
}

// Event is one event-log record kept as the raw JSON the API returned, so
// numbers, key order and escaping reach the sink unchanged.
type Event = json.RawMessage

// EventPage is one page of the network events endpoint.
type EventPage struct {
	Message     string  `json:"message,omitempty"`
	PageStartAt string  `json:"pageStartAt"`
	PageEndAt   string  `json:"pageEndAt"`
	Events      []Event `json:"events"`
}

// EventsQuery selects one page of events.
type EventsQuery struct {
	NetworkID     string
	ProductType   string
	PerPage       int
	StartingAfter string
}
