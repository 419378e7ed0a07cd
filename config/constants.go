package config

// Video Output Constants
const (
	// VideoWidth is the output frame width (9:16 aspect ratio)
	VideoWidth = 1080

	// VideoHeight is the output frame height (9:16 aspect ratio)
	VideoHeight = 1920

	// FPS is the output and pan-zoom frame rate
	FPS = 30

	// PixelFormat is the output pixel format
	PixelFormat = "yuv420p"

	// VideoCodec is the software H.264 encoder
	VideoCodec = "libx264"

	// VideoPreset is the libx264 speed preset
	VideoPreset = "medium"

	// HardwareBitrate is the target bitrate when a hardware encoder is selected
	HardwareBitrate = "5M"

	// AudioCodec is the audio encoding codec
	AudioCodec = "aac"

	// AudioBitrate is the audio quality bitrate
	AudioBitrate = "256k"
)

// Timing Constants
const (
	// DefaultIntroDuration is the intro card length in seconds
	DefaultIntroDuration = 3.0

	// DefaultOutroDuration is the outro card length in seconds
	DefaultOutroDuration = 3.0

	// DefaultTransitionDuration is the crossfade length in seconds
	DefaultTransitionDuration = 1.0

	// MinimumNarrationSeconds is the shortest voice track that yields a reel
	MinimumNarrationSeconds = 3.0

	// FallbackSegmentDuration is used when a timeline has no content segments
	FallbackSegmentDuration = 5.0
)

// Motion Constants
const (
	// ZoomCap is the maximum pan-zoom scale factor
	ZoomCap = 1.15

	// PanZoomScaleWidth and PanZoomScaleHeight oversize content stills before cropping
	// so the zoom has headroom without exposing edges.
	PanZoomScaleWidth  = 1280
	PanZoomScaleHeight = 2275

	// PanZoomCropWidth and PanZoomCropHeight are the crop applied before pan-zoom
	PanZoomCropWidth  = 1280
	PanZoomCropHeight = 2120
)

// Card Constants
const (
	// PlaceholderColor is the background of generated intro/outro cards
	PlaceholderColor = "#1a1a2e"

	// IntroPlaceholderText is drawn on a generated intro card
	IntroPlaceholderText = "NEWS REEL"

	// OutroPlaceholderText is drawn on a generated outro card
	OutroPlaceholderText = "Follow for more"

	// CaptionFontSize is the caption text size in points
	CaptionFontSize = 40

	// TitleFontSize is the title text size in points
	TitleFontSize = 56

	// PlaceholderFontSize is the placeholder card text size in points
	PlaceholderFontSize = 72

	// CaptionWrapChars is the caption line width in characters
	CaptionWrapChars = 35

	// TitleWrapChars is the title line width in characters
	TitleWrapChars = 24
)

// Processing Constants
const (
	// DefaultMaxConcurrentReels limits the number of reels rendered simultaneously
	DefaultMaxConcurrentReels = 2

	// DefaultJobTTLSeconds is how long job status records are retained
	DefaultJobTTLSeconds = 24 * 60 * 60
)

// TransitionStyles is the crossfade style rotation, selected by transition index.
var TransitionStyles = []string{
	"fadeblack",
	"slideleft",
	"diagtl",
	"circlecrop",
	"radial",
	"smoothleft",
}

// VideoExtensions are container extensions treated as motion video.
var VideoExtensions = []string{".mp4", ".mov", ".webm", ".mkv"}

// ImageExtensions are extensions treated as still images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".bmp", ".gif"}
