package dsclient

import (
	"net/url"
	"strings"

	"github.com/robert-malhotra/go-dataspace-client/pkg/stac"
)

// ItemCollection represents one page of search or listing results.
type ItemCollection struct {
	Type    string         `json:"type"`
	Items   []*stac.Item   `json:"features"`
	Links   []*stac.Link   `json:"links,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// NextLink returns the rel="next" link if present. Its absence means this is
// the last page.
func (c *ItemCollection) NextLink() *stac.Link {
	if c == nil {
		return nil
	}
	for _, link := range c.Links {
		if link == nil {
			continue
		}
		if strings.EqualFold(link.Rel, "next") {
			return link
		}
	}
	return nil
}

// NextToken extracts the opaque cursor from the next link, if present. The
// token's contents are never interpreted, only echoed on the next request.
func (c *ItemCollection) NextToken() string {
	link := c.NextLink()
	if link == nil || link.Href == "" {
		return ""
	}
	if body, ok := link.AdditionalFields["body"].(map[string]any); ok {
		if token, ok := body["token"].(string); ok && token != "" {
			return token
		}
	}
	u, err := url.Parse(link.Href)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}
