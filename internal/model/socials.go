package model

// Social platform names.
const (
	Facebook  = "facebook"
	Instagram = "instagram"
	LinkedIn  = "linkedin"
	Twitter   = "twitter"
	TikTok    = "tiktok"
	YouTube   = "youtube"
	Yelp      = "yelp"
)

// SocialPlatforms lists the platforms extracted from crawled pages, in
// extraction order.
var SocialPlatforms = []string{Facebook, Instagram, LinkedIn, Twitter, TikTok, YouTube, Yelp}

// Socials holds at most one profile URL per platform.
type Socials struct {
	Facebook  string `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty" yaml:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	Twitter   string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
	TikTok    string `json:"tiktok,omitempty" yaml:"tiktok,omitempty"`
	YouTube   string `json:"youtube,omitempty" yaml:"youtube,omitempty"`
	Yelp      string `json:"yelp,omitempty" yaml:"yelp,omitempty"`
}

// Get returns the URL stored for platform.
func (s Socials) Get(platform string) string {
	switch platform {
	case Facebook:
		return s.Facebook
	case Instagram:
		return s.Instagram
	case LinkedIn:
		return s.LinkedIn
	case Twitter:
		return s.Twitter
	case TikTok:
		return s.TikTok
	case YouTube:
		return s.YouTube
	case Yelp:
		return s.Yelp
	}
	return ""
}

// Set stores url for platform. Unknown platforms are ignored.
func (s *Socials) Set(platform, url string) {
	switch platform {
	case Facebook:
		s.Facebook = url
	case Instagram:
		s.Instagram = url
	case LinkedIn:
		s.LinkedIn = url
	case Twitter:
		s.Twitter = url
	case TikTok:
		s.TikTok = url
	case YouTube:
		s.YouTube = url
	case Yelp:
		s.Yelp = url
	}
}

// Merge fills platforms missing from s with values from other. The first
// URL found for a platform wins.
func (s *Socials) Merge(other Socials) {
	for _, p := range SocialPlatforms {
		if s.Get(p) == "" {
			if v := other.Get(p); v != "" {
				s.Set(p, v)
			}
		}
	}
}

// Count returns how many of the given platforms are present. With no
// arguments every platform is counted.
func (s Socials) Count(platforms ...string) int {
	if len(platforms) == 0 {
		platforms = SocialPlatforms
	}
	n := 0
	for _, p := range platforms {
		if s.Get(p) != "" {
			n++
		}
	}
	return n
}
