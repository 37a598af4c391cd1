package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// WebProber verifies post existence through the public t.me embed pages.
// It is the fallback when no probe chat is configured: only works for
// public channels, but needs no bot permissions at all.
type WebProber struct {
	httpClient *http.Client
	maxRetries int
	log        *zap.Logger
}

func NewWebProber(timeout time.Duration, maxRetries int, log *zap.Logger) *WebProber {
	return &WebProber{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log,
	}
}

// PostExists fetches https://t.me/<username>/<id>?embed=1 and checks the
// widget actually contains the requested message. Telegram serves an
// "error" page with HTTP 200 for deleted posts, so status alone is not
// enough.
func (p *WebProber) PostExists(ctx context.Context, channelUsername string, messageID int64) (bool, error) {
	url := fmt.Sprintf("https://t.me/%s/%d?embed=1", channelUsername, messageID)

	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return false, lastErr
	}

	found := false
	doc.Find(".tgme_widget_message").Each(func(_ int, s *goquery.Selection) {
		dataPost, ok := s.Attr("data-post")
		if !ok {
			return
		}
		parts := strings.Split(dataPost, "/")
		if len(parts) != 2 {
			return
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err == nil && id == messageID {
			found = true
		}
	})

	if !found {
		p.log.Debug("post not present in t.me embed",
			zap.String("channel", channelUsername),
			zap.Int64("message_id", messageID),
		)
	}
	return found, nil
}
