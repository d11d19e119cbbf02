package stac

// Provider names an organization involved in producing or hosting a
// collection, e.g. ESA as producer and the Data Space operator as host.
type Provider struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Url         string   `json:"url,omitempty"`
}
