package units

// Platform identifies a streaming service.
type Platform string

// Known streaming platforms. Custom destinations carry their own ingest URL.
const (
	PlatformTwitch    Platform = "twitch"
	PlatformYouTube   Platform = "youtube"
	PlatformFacebook  Platform = "facebook"
	PlatformKick      Platform = "kick"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformX         Platform = "x"
	PlatformCustom    Platform = "custom"
)

// platformInfo is one catalog entry. VerticalIngestURL is set only for
// services that publish portrait streams to a separate endpoint.
type platformInfo struct {
	DisplayName       string
	IngestURL         string
	VerticalIngestURL string
}

var platformOrder = []Platform{
	PlatformTwitch,
	PlatformYouTube,
	PlatformFacebook,
	PlatformKick,
	PlatformTikTok,
	PlatformInstagram,
	PlatformX,
	PlatformCustom,
}

var platformCatalog = map[Platform]platformInfo{
	PlatformTwitch: {
		DisplayName: "Twitch",
		IngestURL:   "rtmp://live.twitch.tv/app",
	},
	PlatformYouTube: {
		DisplayName: "YouTube",
		IngestURL:   "rtmp://a.rtmp.youtube.com/live2",
	},
	PlatformFacebook: {
		DisplayName: "Facebook",
		IngestURL:   "rtmps://live-api-s.facebook.com:443/rtmp",
	},
	PlatformKick: {
		DisplayName: "Kick",
		IngestURL:   "rtmp://stream.kick.com/app",
	},
	PlatformTikTok: {
		DisplayName:       "TikTok",
		IngestURL:         "rtmp://live.tiktok.com/live/horizontal",
		VerticalIngestURL: "rtmp://live.tiktok.com/live",
	},
	PlatformInstagram: {
		DisplayName: "Instagram",
		IngestURL:   "rtmps://live-upload.instagram.com:443/rtmp",
	},
	PlatformX: {
		DisplayName: "X (Twitter)",
		IngestURL:   "rtmp://ingest.pscp.tv:80/x",
	},
	PlatformCustom: {
		DisplayName: "Custom",
	},
}

// Platforms lists every known platform in display order.
func Platforms() []Platform {
	out := make([]Platform, len(platformOrder))
	copy(out, platformOrder)
	return out
}

// Valid reports whether p names a known platform.
func (p Platform) Valid() bool {
	_, ok := platformCatalog[p]
	return ok
}

// DisplayName returns the human-readable service name.
func (p Platform) DisplayName() string {
	if info, ok := platformCatalog[p]; ok {
		return info.DisplayName
	}
	return string(p)
}

// IngestURL returns the RTMP ingest endpoint for a platform and target
// orientation. Auto orientation is treated as horizontal. Custom platforms
// have no catalog entry and return "".
func IngestURL(platform Platform, orientation Orientation) string {
	info, ok := platformCatalog[platform]
	if !ok {
		return ""
	}
	if orientation == OrientationVertical && info.VerticalIngestURL != "" {
		return info.VerticalIngestURL
	}
	return info.IngestURL
}

// BuildVideoFilter returns the ffmpeg filter string converting the source
// orientation to the target, or "" when no conversion applies.
func BuildVideoFilter(source, target Orientation) string {
	if target == OrientationAuto || source == target {
		return ""
	}

	switch {
	case source == OrientationHorizontal && target == OrientationVertical:
		return "crop=ih*9/16:ih,scale=1080:1920"
	case source == OrientationVertical && target == OrientationHorizontal:
		return "crop=iw:iw*9/16,scale=1920:1080"
	case source == OrientationSquare && target == OrientationHorizontal:
		return "scale=1920:1080,setsar=1"
	case source == OrientationSquare && target == OrientationVertical:
		return "scale=1080:1920,setsar=1"
	case target == OrientationSquare:
		return "scale=1080:1080,setsar=1"
	}
	return ""
}
