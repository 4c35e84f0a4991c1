package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dota-pipeline/internal/apperrors"
	appconfig "dota-pipeline/internal/config"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindMatch         Kind = "match"
	KindMatchPlayer   Kind = "match_player"
	KindPlayerProfile Kind = "player_profile"
	KindPlayerMatches Kind = "player_matches"
)

// Key identifies one archived document.
type Key struct {
	Kind      Kind
	MatchID   int64
	AccountID *int64
	Slot      int
}

func MatchKey(matchID int64) Key {
	return Key{Kind: KindMatch, MatchID: matchID}
}

// MatchPlayerKey names a player block by account id, or by slot when the
// player is anonymous.
func MatchPlayerKey(matchID int64, accountID *int64, slot int) Key {
	return Key{Kind: KindMatchPlayer, MatchID: matchID, AccountID: accountID, Slot: slot}
}

func PlayerProfileKey(accountID int64) Key {
	return Key{Kind: KindPlayerProfile, AccountID: &accountID}
}

func PlayerMatchesKey(accountID int64) Key {
	return Key{Kind: KindPlayerMatches, AccountID: &accountID}
}

// RelPath is the slash separated location of the document under the archive root.
func (k Key) RelPath() (string, error) {
	switch k.Kind {
	case KindMatch:
		return fmt.Sprintf("matches/match_%d.xml", k.MatchID), nil
	case KindMatchPlayer:
		if k.AccountID != nil {
			return fmt.Sprintf("matches/%d/player_%d.xml", k.MatchID, *k.AccountID), nil
		}
		return fmt.Sprintf("matches/%d/player_anon-%d.xml", k.MatchID, k.Slot), nil
	case KindPlayerProfile, KindPlayerMatches:
		if k.AccountID == nil {
			return "", fmt.Errorf("%s requires an account id", k.Kind)
		}
		name := "profile.xml"
		if k.Kind == KindPlayerMatches {
			name = "matches.xml"
		}
		return fmt.Sprintf("players/%d/%s", *k.AccountID, name), nil
	default:
		return "", fmt.Errorf("unknown document kind %q", k.Kind)
	}
}

// Mirror receives a copy of every archived document.
type Mirror interface {
	Put(ctx context.Context, relPath string, body []byte) error
}

type Archiver struct {
	root   string
	mirror Mirror
	logger zerolog.Logger
}

// New returns an archiver writing below root. mirror may be nil.
func New(root string, mirror Mirror, logger zerolog.Logger) *Archiver {
	return &Archiver{
		root:   root,
		mirror: mirror,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

func (a *Archiver) Root() string {
	return a.root
}

// Persist serializes document as XML and writes it to the deterministic path
// for key, replacing any previous file. Errors are tagged ArchivalWrite.
func (a *Archiver) Persist(ctx context.Context, key Key, document any) (string, error) {
	op := fmt.Sprintf("archive %s", key.Kind)

	rel, err := key.RelPath()
	if err != nil {
		return "", apperrors.New(apperrors.KindArchivalWrite, op, 0, err)
	}
	data, err := Marshal(string(key.Kind), document)
	if err != nil {
		return "", apperrors.New(apperrors.KindArchivalWrite, op, 0, fmt.Errorf("marshal %s: %w", rel, err))
	}

	path := filepath.Join(a.root, filepath.FromSlash(rel))
	if err := writeFile(path, data); err != nil {
		return "", apperrors.New(apperrors.KindArchivalWrite, op, 0, err)
	}

	if a.mirror != nil {
		if err := a.mirror.Put(ctx, rel, data); err != nil {
			return path, apperrors.New(apperrors.KindArchivalWrite, op+" mirror", 0, err)
		}
	}

	a.logger.Debug().Str("path", path).Msg("archived document")
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// NewMirror returns the configured S3 mirror, or nil when mirroring is off.
func NewMirror(ctx context.Context, cfg appconfig.ArchiveConfig) (Mirror, error) {
	if !cfg.S3Enabled() {
		return nil, nil
	}
	m, err := NewS3Mirror(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}
