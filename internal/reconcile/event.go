package reconcile

// Event is the inbound payload from the social platform's webhook: a public
// post carrying the author, any embedded media, and optionally a deep link
// back into this app.
type Event struct {
	Type string `json:"type"`
	Data Post   `json:"data"`
}

type Post struct {
	Hash   string  `json:"hash"`
	Author Author  `json:"author"`
	Embeds []Embed `json:"embeds"`
}

type Author struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
}

// Embed is either a bare URL or resolved media; either field may carry the
// reference we care about.
type Embed struct {
	URL   string `json:"url,omitempty"`
	Media *Media `json:"media,omitempty"`
}

type Media struct {
	URL string `json:"url"`
}

// ref returns the usable URL of the embed, preferring resolved media.
func (e Embed) ref() string {
	if e.Media != nil && e.Media.URL != "" {
		return e.Media.URL
	}
	return e.URL
}
