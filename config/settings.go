package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds everything the reel service reads from the environment.
type Settings struct {
	IntroDuration      float64
	OutroDuration      float64
	TransitionDuration float64
	MinNarration       float64

	IntroMediaPath   string
	OutroMediaPath   string
	FrameOverlayPath string
	FontPath         string
	CaptionMode      string

	OutputDir string
	WorkDir   string
	InputDir  string

	FFmpegPath string
	HWEncoder  string // "auto", "off", or an explicit encoder name
	LogLevel   string

	Port               string
	MaxConcurrentReels int
	BatchSchedule      string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JobTTL        time.Duration
}

// Load reads a .env file if present (non-fatal if missing) and builds Settings
// from the environment.
func Load() (Settings, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds Settings from a lookup function, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Settings, error) {
	p := envParser{getenv: getenv}

	s := Settings{
		IntroDuration:      p.float("INTRO_DURATION", DefaultIntroDuration),
		OutroDuration:      p.float("OUTRO_DURATION", DefaultOutroDuration),
		TransitionDuration: p.float("TRANSITION_DURATION", DefaultTransitionDuration),
		MinNarration:       p.float("MIN_NARRATION_SECONDS", MinimumNarrationSeconds),

		IntroMediaPath:   p.str("INTRO_MEDIA_PATH", "assets/intro.png"),
		OutroMediaPath:   p.str("OUTRO_MEDIA_PATH", "assets/outro.png"),
		FrameOverlayPath: p.str("FRAME_OVERLAY_PATH", ""),
		FontPath:         p.str("FONT_PATH", ""),
		CaptionMode:      p.str("CAPTION_MODE", "typewriter"),

		OutputDir: p.str("OUTPUT_DIR", "output"),
		WorkDir:   p.str("WORK_DIR", "work"),
		InputDir:  p.str("INPUT_DIR", "input"),

		FFmpegPath: p.str("FFMPEG_PATH", "ffmpeg"),
		HWEncoder:  p.str("HW_ENCODER", "auto"),
		LogLevel:   p.str("LOG_LEVEL", "info"),

		Port:               p.str("PORT", "8081"),
		MaxConcurrentReels: p.int("MAX_CONCURRENT_REELS", DefaultMaxConcurrentReels),
		BatchSchedule:      p.str("BATCH_SCHEDULE", ""),

		KafkaBrokers: strings.Split(p.str("KAFKA_BOOTSTRAP_SERVERS", "localhost:9093"), ","),
		KafkaTopic:   p.str("KAFKA_TOPIC_REEL_REQUESTS", "reel-render-requests"),
		KafkaGroupID: p.str("KAFKA_CONSUMER_GROUP_ID", "reelbot-consumer-group"),

		RedisAddr:     p.str("REDIS_ADDR", ""),
		RedisPassword: p.str("REDIS_PASS", ""),
		RedisDB:       p.int("REDIS_DB", 0),
		JobTTL:        time.Duration(p.int("JOB_TTL_SECONDS", DefaultJobTTLSeconds)) * time.Second,
	}

	if p.err != nil {
		return Settings{}, p.err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings the timeline math cannot work with.
func (s Settings) Validate() error {
	var errs []string

	positive := func(name string, v float64) {
		if math.IsNaN(v) || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got %v", name, v))
		}
	}
	positive("INTRO_DURATION", s.IntroDuration)
	positive("OUTRO_DURATION", s.OutroDuration)
	positive("TRANSITION_DURATION", s.TransitionDuration)
	positive("MIN_NARRATION_SECONDS", s.MinNarration)

	if s.TransitionDuration > s.IntroDuration {
		errs = append(errs, "TRANSITION_DURATION must not exceed INTRO_DURATION")
	}
	if s.TransitionDuration > s.OutroDuration {
		errs = append(errs, "TRANSITION_DURATION must not exceed OUTRO_DURATION")
	}
	if s.MaxConcurrentReels < 1 {
		errs = append(errs, "MAX_CONCURRENT_REELS must be at least 1")
	}
	switch strings.ToLower(s.CaptionMode) {
	case "typewriter", "static":
	default:
		errs = append(errs, fmt.Sprintf("CAPTION_MODE must be typewriter or static, got %q", s.CaptionMode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

type envParser struct {
	getenv func(string) string
	err    error
}

func (p *envParser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *envParser) float(key string, def float64) float64 {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *envParser) int(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *envParser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
}
