package browser

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

const metadataBudget = 10 * time.Second

// Metadata extraction mirrors the page's rendered state: every field is
// probed through several selectors in priority order and missing values stay
// empty rather than failing the call.
const metadataJS = `(function() {
	function q(sel) { var el = document.querySelector(sel); return el ? el : null; }
	function text(sel) { var el = q(sel); return el && el.textContent ? el.textContent.trim() : ''; }
	function firstText(sels) {
		for (var i = 0; i < sels.length; i++) { var t = text(sels[i]); if (t) return t; }
		return '';
	}
	function meta(sel, attr) { var el = q(sel); return el ? (el.getAttribute(attr) || '') : ''; }
	function digits(s) { var m = (s || '').match(/[\d,]+/); return m ? m[0].replace(/,/g, '') : ''; }

	var params = new URLSearchParams(window.location.search);
	var videoId = params.get('v') || 'unknown';

	var title = firstText(['h1.ytd-video-primary-info-renderer yt-formatted-string']) ||
		meta('meta[name="title"]', 'content') ||
		document.title.replace(' - YouTube', '').trim();

	var channel = firstText([
		'ytd-channel-name yt-formatted-string a',
		'ytd-video-owner-renderer .ytd-channel-name a',
		'#owner-name a',
		'#channel-name a'
	]) || 'Unknown Channel';

	var channelUrl = '';
	var chEl = q('ytd-channel-name a') || q('ytd-video-owner-renderer a.yt-simple-endpoint') || q('#owner-name a');
	if (chEl && chEl.href) channelUrl = chEl.href;

	var duration = text('.ytp-time-duration');
	if (!duration) {
		var iso = meta('meta[itemprop="duration"]', 'content');
		if (iso) {
			var m = iso.match(/PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?/);
			if (m) {
				var h = m[1] || '0', mi = m[2] || '0', s = m[3] || '0';
				duration = h !== '0'
					? h + ':' + mi.padStart(2, '0') + ':' + s.padStart(2, '0')
					: mi + ':' + s.padStart(2, '0');
			}
		}
	}

	var views = digits(firstText([
		'ytd-video-view-count-renderer span.view-count',
		'#info span.view-count',
		'#count .ytd-video-view-count-renderer'
	])) || '0';

	var likes = '0';
	var likeBtn = q('like-button-view-model button[aria-label*="like"]');
	if (likeBtn) likes = digits(likeBtn.getAttribute('aria-label')) || '0';

	var thumbnail = meta('meta[property="og:image"]', 'content') ||
		'https://img.youtube.com/vi/' + videoId + '/maxresdefault.jpg';

	var description = meta('meta[name="description"]', 'content') ||
		text('ytd-expander.ytd-video-secondary-info-renderer #description');

	var uploadDate = meta('meta[itemprop="uploadDate"]', 'content') || text('#info-strings yt-formatted-string');

	var subs = '';
	var subText = text('#owner-sub-count');
	if (subText) { var sm = subText.match(/[\d.]+[KMB]?/); if (sm) subs = sm[0]; }

	return {
		videoId: videoId,
		url: window.location.href,
		title: title || 'Untitled Video',
		channel: channel,
		channelUrl: channelUrl,
		duration: duration || '',
		viewCount: views,
		likeCount: likes,
		thumbnail: thumbnail,
		description: description || '',
		uploadDate: uploadDate || '',
		subscriberCount: subs
	};
})()`

// ExtractMetadata reads the watch page's metadata. Extraction is best-effort:
// on any failure a fallback built from the video URL is returned instead of
// an error.
func (c *Client) ExtractMetadata(ctx context.Context, videoURL string) (*types.VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataBudget)
	defer cancel()

	var md types.VideoMetadata
	if err := c.eval(ctx, "getMetadata", metadataJS, &md); err != nil {
		log.Printf("[metadata] Extraction failed, using fallback: %v", err)
		return fallbackMetadata(videoURL), nil
	}

	if md.VideoID == "" || md.VideoID == "unknown" {
		if id := videoIDFromURL(videoURL); id != "" {
			md.VideoID = id
		}
	}
	if md.URL == "" {
		md.URL = videoURL
	}
	return &md, nil
}

func fallbackMetadata(videoURL string) *types.VideoMetadata {
	id := videoIDFromURL(videoURL)
	md := &types.VideoMetadata{
		VideoID:   id,
		URL:       videoURL,
		Channel:   "Unknown Channel",
		ViewCount: "0",
		LikeCount: "0",
	}
	if id != "" {
		md.Thumbnail = fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", id)
	}
	return md
}

// videoIDFromURL extracts the watch ID from a youtube.com or youtu.be URL.
func videoIDFromURL(videoURL string) string {
	u, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Host, "youtu.be") {
		return strings.TrimPrefix(u.Path, "/")
	}
	return u.Query().Get("v")
}
