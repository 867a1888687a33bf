package detect

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const noNewsMarker = "NO_NEWS_FOUND"

const extractPrompt = `You are a specialized news extraction AI. Analyze the following transcript from a media source and extract ONE SINGLE news item if it exists.
A news item typically reports on a current event, has factual statements, mentions specific people, places, or events.

Transcript:
%s

If there is a news item in the transcript, extract it completely and faithfully.
If there is more than one news item, extract only the most important or complete one.
If there is no clear news item, respond with "NO_NEWS_FOUND".

Extract only the news item text with no additional commentary or explanation.`

// NewsExtractor pulls a single news item out of a transcript chunk, used by
// the live media loop before classification.
type NewsExtractor struct {
	llm     *OllamaClient
	timeout time.Duration
}

func NewNewsExtractor(llm *OllamaClient, timeout time.Duration) *NewsExtractor {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &NewsExtractor{llm: llm, timeout: timeout}
}

// Extract returns the detected news item and whether one was found.
func (e *NewsExtractor) Extract(ctx context.Context, transcript string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.llm.Complete(ctx, fmt.Sprintf(extractPrompt, transcript))
	if err != nil {
		return "", false, err
	}

	item := strings.TrimSpace(raw)
	if item == "" || strings.Contains(item, noNewsMarker) {
		return "", false, nil
	}
	return item, true, nil
}
