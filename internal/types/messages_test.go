package types

import (
	"errors"
	"testing"
)

func TestDecodeRawContentNews(t *testing.T) {
	payload := []byte(`{"type":"news","article":{"id":"a1","title":"Headline","source":"BBC News"},"timestamp":"2026-01-02T15:04:05Z"}`)

	msg, err := DecodeRawContent(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != ContentTypeNews {
		t.Errorf("got type %q", msg.Type)
	}
	if msg.Article == nil || msg.Article.Title != "Headline" {
		t.Errorf("article not decoded: %+v", msg.Article)
	}
	if msg.Key() != "news-a1" {
		t.Errorf("got key %q, want news-a1", msg.Key())
	}
}

func TestDecodeRawContentLiveVideo(t *testing.T) {
	payload := []byte(`{"type":"live-video","url":"https://stream.example/live","timestamp":"2026-01-02T15:04:05Z"}`)

	msg, err := DecodeRawContent(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.StreamURL != "https://stream.example/live" {
		t.Errorf("got url %q", msg.StreamURL)
	}
	if msg.Key() != "live-https://stream.example/live" {
		t.Errorf("got key %q", msg.Key())
	}
}

func TestDecodeRawContentRejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"unknown type", `{"type":"podcast","url":"x"}`},
		{"missing type", `{"article":{"id":"a1","title":"t"}}`},
		{"news without article", `{"type":"news"}`},
		{"news without title", `{"type":"news","article":{"id":"a1"}}`},
		{"live-video without url", `{"type":"live-video"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRawContent([]byte(tc.payload))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("got %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecodeAnalysisResult(t *testing.T) {
	payload := []byte(`{"timestamp":"2026-01-02T15:04:05Z","source":"stream","news":"A claim","verdict":{"is_fake":true,"votes_for_fake":2,"votes_for_real":1,"classification":"🔴 Fake"}}`)

	msg, err := DecodeAnalysisResult(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Claim != "A claim" {
		t.Errorf("got claim %q", msg.Claim)
	}
	if !msg.Verdict.IsFake {
		t.Error("verdict not decoded")
	}
}

func TestDecodeAnalysisResultRejectsEmptyClaim(t *testing.T) {
	_, err := DecodeAnalysisResult([]byte(`{"source":"stream"}`))
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("got %v, want ErrMalformedMessage", err)
	}
}
