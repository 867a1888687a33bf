package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types carried on the raw-content channel.
const (
	ContentTypeNews      = "news"
	ContentTypeLiveVideo = "live-video"
)

// RawContentMessage is the tagged union published to the raw-content channel.
// Exactly one of Article or StreamURL is set, selected by Type.
type RawContentMessage struct {
	Type      string           `json:"type"`
	Article   *ContentItemView `json:"article,omitempty"`
	StreamURL string           `json:"url,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// AnalysisResultMessage carries one completed aggregation to the
// analysis-results channel.
type AnalysisResultMessage struct {
	Timestamp  time.Time         `json:"timestamp"`
	Source     string            `json:"source"`
	SourceText string            `json:"transcript,omitempty"`
	Claim      string            `json:"news"`
	Verdict    AggregationResult `json:"verdict"`
}

// NewsMessage wraps an article for the raw-content channel.
func NewsMessage(article ContentItemView) RawContentMessage {
	return RawContentMessage{
		Type:      ContentTypeNews,
		Article:   &article,
		Timestamp: time.Now(),
	}
}

// LiveVideoMessage wraps a stream URL for the raw-content channel.
func LiveVideoMessage(url string) RawContentMessage {
	return RawContentMessage{
		Type:      ContentTypeLiveVideo,
		StreamURL: url,
		Timestamp: time.Now(),
	}
}

// Key returns the partition/ordering key for the message, derived from the
// content identifier where one exists and the timestamp otherwise.
func (m RawContentMessage) Key() string {
	switch m.Type {
	case ContentTypeNews:
		if m.Article != nil && m.Article.ID != "" {
			return "news-" + m.Article.ID
		}
	case ContentTypeLiveVideo:
		if m.StreamURL != "" {
			return "live-" + m.StreamURL
		}
	}
	return fmt.Sprintf("raw-%d", m.Timestamp.UnixNano())
}

// Key returns the ordering key for a result message.
func (m AnalysisResultMessage) Key() string {
	return fmt.Sprintf("result-%d", m.Timestamp.Unix())
}

// DecodeRawContent parses and validates a raw-content payload. Anything that
// does not match a known shape is rejected with ErrMalformedMessage so the
// consumer can skip it without trusting arbitrary fields downstream.
func DecodeRawContent(data []byte) (RawContentMessage, error) {
	var msg RawContentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case ContentTypeNews:
		if msg.Article == nil || msg.Article.Title == "" {
			return msg, fmt.Errorf("%w: news message without article", ErrMalformedMessage)
		}
	case ContentTypeLiveVideo:
		if msg.StreamURL == "" {
			return msg, fmt.Errorf("%w: live-video message without url", ErrMalformedMessage)
		}
	default:
		return msg, fmt.Errorf("%w: unknown content type %q", ErrMalformedMessage, msg.Type)
	}

	return msg, nil
}

// DecodeAnalysisResult parses and validates an analysis-results payload.
func DecodeAnalysisResult(data []byte) (AnalysisResultMessage, error) {
	var msg AnalysisResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if msg.Claim == "" {
		return msg, fmt.Errorf("%w: result message without news text", ErrMalformedMessage)
	}

	return msg, nil
}
