// Package assets validates and classifies the media a reel is built from and
// substitutes generated placeholder cards for a missing intro or outro.
package assets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelbot/config"
	"reelbot/media"
)

// Role is the position an asset plays in the reel.
type Role int

const (
	RoleIntro Role = iota
	RoleContent
	RoleOutro
)

func (r Role) String() string {
	switch r {
	case RoleIntro:
		return "intro"
	case RoleContent:
		return "content"
	case RoleOutro:
		return "outro"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Placeholder describes a generated solid-colour card standing in for a missing asset.
type Placeholder struct {
	Text  string
	Color string
}

// Asset is one resolved input. Placeholder assets point at a card that still
// has to be rendered to Path before the plan executes.
type Asset struct {
	Path        string
	Kind        media.Kind
	Role        Role
	Placeholder *Placeholder
}

// IsPlaceholder reports whether the asset is a generated card.
func (a Asset) IsPlaceholder() bool { return a.Placeholder != nil }

// Skeleton is the role-assigned asset list handed to the timeline compiler.
type Skeleton struct {
	Intro   Asset
	Content []Asset
	Outro   Asset

	// Dropped lists content paths rejected during resolution.
	Dropped []string
}

// NoContentAssetsError is returned when no content image survives resolution.
type NoContentAssetsError struct {
	Rejected []string
}

func (e *NoContentAssetsError) Error() string {
	if len(e.Rejected) == 0 {
		return "no content assets: none provided"
	}
	return fmt.Sprintf("no content assets: all %d rejected (%s)", len(e.Rejected), strings.Join(e.Rejected, ", "))
}

// ResolverOptions configures placeholder generation.
type ResolverOptions struct {
	// WorkDir receives generated placeholder cards.
	WorkDir   string
	IntroText string
	OutroText string
	CardColor string
}

// Resolver applies the fallback policy to a reel's inputs.
type Resolver struct {
	logger *slog.Logger
	opts   ResolverOptions
}

// NewResolver creates a resolver, filling unset options with the package defaults.
func NewResolver(logger *slog.Logger, opts ResolverOptions) *Resolver {
	if opts.IntroText == "" {
		opts.IntroText = config.IntroPlaceholderText
	}
	if opts.OutroText == "" {
		opts.OutroText = config.OutroPlaceholderText
	}
	if opts.CardColor == "" {
		opts.CardColor = config.PlaceholderColor
	}
	return &Resolver{logger: logger, opts: opts}
}

// Resolve assigns roles, drops unusable content and substitutes placeholders
// for a missing intro or outro. Content with an unrecognised extension is
// dropped with a warning and listed in Skeleton.Dropped; it is never treated
// as a still. An unreadable content file is dropped the same way. Only an
// empty content list is an error.
func (r *Resolver) Resolve(introPath, outroPath string, contentPaths []string) (*Skeleton, error) {
	skel := &Skeleton{
		Intro: r.bookend(RoleIntro, introPath, r.opts.IntroText),
		Outro: r.bookend(RoleOutro, outroPath, r.opts.OutroText),
	}

	for _, p := range contentPaths {
		kind := media.DetectKind(p)
		if kind == media.KindUnknown {
			r.logger.Warn("dropping content asset with unrecognised extension", "path", p)
			skel.Dropped = append(skel.Dropped, p)
			continue
		}
		if err := checkReadable(p); err != nil {
			r.logger.Warn("dropping unreadable content asset", "path", p, "error", err)
			skel.Dropped = append(skel.Dropped, p)
			continue
		}
		skel.Content = append(skel.Content, Asset{Path: p, Kind: kind, Role: RoleContent})
	}

	if len(skel.Content) == 0 {
		return nil, &NoContentAssetsError{Rejected: skel.Dropped}
	}

	r.logger.Info("assets resolved",
		"content", len(skel.Content),
		"dropped", len(skel.Dropped),
		"intro_placeholder", skel.Intro.IsPlaceholder(),
		"outro_placeholder", skel.Outro.IsPlaceholder())

	return skel, nil
}

func (r *Resolver) bookend(role Role, path, text string) Asset {
	reason := ""
	kind := media.DetectKind(path)
	switch {
	case strings.TrimSpace(path) == "":
		reason = "not provided"
	case kind == media.KindUnknown:
		reason = "unrecognised extension"
	default:
		if err := checkReadable(path); err != nil {
			reason = err.Error()
		}
	}

	if reason == "" {
		return Asset{Path: path, Kind: kind, Role: role}
	}

	r.logger.Warn("substituting placeholder card", "role", role.String(), "path", path, "reason", reason)
	return Asset{
		Path:        filepath.Join(r.opts.WorkDir, role.String()+"_placeholder.png"),
		Kind:        media.KindImage,
		Role:        role,
		Placeholder: &Placeholder{Text: text, Color: r.opts.CardColor},
	}
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
