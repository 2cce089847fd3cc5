package shazam

import "encoding/json"

// recognizeRequest is the JSON body of one recognition call.
type recognizeRequest struct {
	Timezone    string           `json:"timezone"`
	Signature   signaturePayload `json:"signature"`
	Timestamp   int64            `json:"timestamp"`
	Context     struct{}         `json:"context"`
	Geolocation struct{}         `json:"geolocation"`
}

type signaturePayload struct {
	URI      string `json:"uri"`
	SampleMS int    `json:"samplems"`
}

// Response is the parsed recognition payload for one signature. Raw
// carries the complete service response for callers that need fields
// beyond the ones modeled here.
type Response struct {
	Matches   []Match `json:"matches"`
	Track     *Track  `json:"track,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
	TagID     string  `json:"tagid,omitempty"`
	RetryMS   int     `json:"retryms,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Matched reports whether the service recognized the signature.
func (r *Response) Matched() bool {
	return len(r.Matches) > 0
}

// Match is one candidate identification.
type Match struct {
	ID            string  `json:"id"`
	Offset        float64 `json:"offset"`
	TimeSkew      float64 `json:"timeskew"`
	FrequencySkew float64 `json:"frequencyskew"`
}

// Track describes the identified recording.
type Track struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	URL      string `json:"url,omitempty"`
	Images   struct {
		Background string `json:"background,omitempty"`
		CoverArt   string `json:"coverart,omitempty"`
		CoverArtHQ string `json:"coverarthq,omitempty"`
	} `json:"images,omitempty"`
	Genres struct {
		Primary string `json:"primary,omitempty"`
	} `json:"genres,omitempty"`
}
