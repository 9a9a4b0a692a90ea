package links

// Record is the stored payload of a negotiation link. It is served back to
// the recipient byte-for-byte as it was written.
type Record struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Request string `json:"request"`
	Context string `json:"context"`
	Intro   string `json:"intro,omitempty"`
}

type CreateInput struct {
	To      string
	From    string
	Request string
	Context string
}

type Created struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// Intro is the result of one precompute call.
type Intro struct {
	Text        string
	Model       string
	TotalTokens int64
}
