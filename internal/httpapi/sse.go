package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/qbiz-tools/qconsole/internal/qbusiness"
)

// sseSink streams relay frames as Server-Sent Events, flushing after each
// frame so tokens reach the browser incrementally.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseSink{w: w, flusher: flusher}, nil
}

func (s *sseSink) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sse frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Text(f qbusiness.TextFrame) error {
	return s.send(struct {
		Type string `json:"type"`
		qbusiness.TextFrame
	}{"text", f})
}

func (s *sseSink) Metadata(f qbusiness.MetadataFrame) error {
	return s.send(struct {
		Type string `json:"type"`
		qbusiness.MetadataFrame
	}{"metadata", f})
}

func (s *sseSink) Complete(f qbusiness.CompleteFrame) error {
	return s.send(struct {
		Type string `json:"type"`
		qbusiness.CompleteFrame
	}{"complete", f})
}

func (s *sseSink) Error(message string) error {
	return s.send(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", message})
}
