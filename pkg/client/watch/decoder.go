package watch

import (
	"encoding/json"
	"io"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// streamDecoder consumes one newline-delimited JSON watch event at a time
// from a chunked response body. It never buffers the whole response; Close
// aborts a blocked read by closing the underlying body.
type streamDecoder struct {
	body    io.ReadCloser
	decoder *json.Decoder

	closeOnce sync.Once
}

func newStreamDecoder(body io.ReadCloser) *streamDecoder {
	return &streamDecoder{
		body:    body,
		decoder: json.NewDecoder(body),
	}
}

// next blocks until one event arrives, the stream ends (io.EOF), or the body
// is closed.
func (d *streamDecoder) next() (*metav1.WatchEvent, error) {
	event := &metav1.WatchEvent{}
	if err := d.decoder.Decode(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (d *streamDecoder) Close() {
	d.closeOnce.Do(func() {
		_ = d.body.Close()
	})
}

// metaProbe extracts the resourceVersion from a raw event object without
// knowing the full type.
type metaProbe struct {
	Metadata struct {
		ResourceVersion string `json:"resourceVersion"`
	} `json:"metadata"`
}

func resourceVersionOf(raw []byte) string {
	var probe metaProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Metadata.ResourceVersion
}
