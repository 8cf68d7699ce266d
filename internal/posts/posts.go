// Package posts turns the platform-specific post shapes returned by the
// profile scraping integrations into model.SelectedPost values.
package posts

import (
	"encoding/json"
	"fmt"
	"strings"

	"checkout-service/internal/model"
	"github.com/samber/lo"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// Post is implemented by InstagramPost, TikTokPost and YouTubeVideo only.
type Post interface {
	Platform() Platform
	ref() (url, id string)
}

type InstagramPost struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
	Permalink string `json:"permalink"`
	Caption   string `json:"caption"`
}

func (InstagramPost) Platform() Platform { return PlatformInstagram }

func (p InstagramPost) ref() (string, string) {
	url := p.Permalink
	if url == "" && p.Shortcode != "" {
		url = "https://www.instagram.com/p/" + p.Shortcode + "/"
	}
	return url, lo.Ternary(p.ID != "", p.ID, p.Shortcode)
}

type TikTokPost struct {
	VideoID  string `json:"video_id"`
	ShareURL string `json:"share_url"`
	Author   string `json:"author"`
}

func (TikTokPost) Platform() Platform { return PlatformTikTok }

func (p TikTokPost) ref() (string, string) {
	url := p.ShareURL
	if url == "" && p.Author != "" {
		url = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", strings.TrimPrefix(p.Author, "@"), p.VideoID)
	}
	return url, p.VideoID
}

type YouTubeVideo struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

func (YouTubeVideo) Platform() Platform { return PlatformYouTube }

func (p YouTubeVideo) ref() (string, string) {
	return "https://www.youtube.com/watch?v=" + p.VideoID, p.VideoID
}

// Decode parses one raw post as returned by the scraping API for platform.
func Decode(platform Platform, raw json.RawMessage) (Post, error) {
	switch platform {
	case PlatformInstagram:
		var p InstagramPost
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("instagram post: %w", err)
		}
		if p.ID == "" && p.Shortcode == "" {
			return nil, fmt.Errorf("instagram post: missing id and shortcode")
		}
		return p, nil
	case PlatformTikTok:
		var p TikTokPost
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("tiktok post: %w", err)
		}
		if p.VideoID == "" {
			return nil, fmt.Errorf("tiktok post: missing video_id")
		}
		return p, nil
	case PlatformYouTube:
		var p YouTubeVideo
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("youtube video: %w", err)
		}
		if p.VideoID == "" {
			return nil, fmt.Errorf("youtube video: missing videoId")
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// Normalize splits totalQuantity evenly across posts. The remainder goes to
// the first posts so the shares always add up to totalQuantity.
func Normalize(posts []Post, totalQuantity int) []model.SelectedPost {
	if len(posts) == 0 {
		return nil
	}

	share := totalQuantity / len(posts)
	remainder := totalQuantity % len(posts)

	return lo.Map(posts, func(p Post, i int) model.SelectedPost {
		url, id := p.ref()
		quantity := share
		if i < remainder {
			quantity++
		}
		return model.SelectedPost{URL: url, ID: id, Quantity: quantity}
	})
}
