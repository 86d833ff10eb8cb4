// Package quiz implements the quiz session engine: content indexing, round
// selection and the per-user session state machine.
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Mode selects the content source and round flow.
type Mode string

const (
	// ModeAvatar shows a 2x2 collage of avatars; one media item per entity.
	ModeAvatar Mode = "avatar"
	// ModeArt shows a batch of artworks for one artist.
	ModeArt Mode = "art"
)

func (m Mode) Valid() bool { return m == ModeAvatar || m == ModeArt }

// MultiAsset reports whether the mode asks for a batch size.
func (m Mode) MultiAsset() bool { return m == ModeArt }

func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaItem is one file of an entity. Seq orders the items and correlates rounds.
type MediaItem struct {
	EntityID string
	Seq      int
	Kind     MediaKind
	Path     string
	File     string
}

type Entity struct {
	ID    string
	Label string
	Media []MediaItem
}

// Index is an immutable snapshot of a content directory.
type Index struct {
	mode     Mode
	ids      []string
	entities map[string]*Entity
}

// Captions maps a file name to its display label.
type Captions map[string]string

var (
	avatarRe = regexp.MustCompile(`(?i)^(.+)\.(jpg|jpeg|png|webp)$`)
	artRe    = regexp.MustCompile(`(?i)^(.+?)#(\d+)\.(jpg|jpeg|png|webp|mp4)$`)
)

// LoadCaptions reads the JSON caption table. A missing file is an empty table.
func LoadCaptions(path string) (Captions, error) {
	if strings.TrimSpace(path) == "" {
		return Captions{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Captions{}, nil
		}
		return nil, err
	}
	out := Captions{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("captions %s: %w", path, err)
	}
	return out, nil
}

// BuildIndex scans dir once. Files not matching the mode's naming pattern are skipped.
func BuildIndex(dir string, mode Mode, captions Captions) (*Index, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Index{mode: mode, entities: map[string]*Entity{}}, nil
		}
		return nil, err
	}

	ix := &Index{mode: mode, entities: map[string]*Entity{}}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		item, ok := parseName(mode, name)
		if !ok {
			continue
		}
		item.Path = filepath.Join(dir, name)
		e := ix.entities[item.EntityID]
		if e == nil {
			e = &Entity{ID: item.EntityID, Label: labelFor(captions, name, item.EntityID)}
			ix.entities[item.EntityID] = e
		}
		e.Media = append(e.Media, item)
	}

	for id, e := range ix.entities {
		sort.SliceStable(e.Media, func(i, j int) bool { return e.Media[i].Seq < e.Media[j].Seq })
		ix.ids = append(ix.ids, id)
	}
	sort.Strings(ix.ids)
	return ix, nil
}

func parseName(mode Mode, name string) (MediaItem, bool) {
	switch mode {
	case ModeAvatar:
		m := avatarRe.FindStringSubmatch(name)
		if m == nil {
			return MediaItem{}, false
		}
		return MediaItem{EntityID: m[1], Seq: 1, Kind: MediaImage, File: name}, true
	case ModeArt:
		m := artRe.FindStringSubmatch(name)
		if m == nil {
			return MediaItem{}, false
		}
		seq, err := strconv.Atoi(m[2])
		if err != nil {
			return MediaItem{}, false
		}
		kind := MediaImage
		if strings.EqualFold(m[3], "mp4") {
			kind = MediaVideo
		}
		return MediaItem{EntityID: m[1], Seq: seq, Kind: kind, File: name}, true
	}
	return MediaItem{}, false
}

func labelFor(c Captions, file, id string) string {
	if v := strings.TrimSpace(c[file]); v != "" {
		return v
	}
	if v := strings.TrimSpace(c[id+".jpg"]); v != "" {
		return v
	}
	return id
}

func (ix *Index) Mode() Mode { return ix.mode }

// IDs returns entity ids in ascending order.
func (ix *Index) IDs() []string { return append([]string(nil), ix.ids...) }

func (ix *Index) Len() int { return len(ix.ids) }

func (ix *Index) Entity(id string) (*Entity, bool) {
	e, ok := ix.entities[id]
	return e, ok
}

// Label returns the display label for id, falling back to id itself.
func (ix *Index) Label(id string) string {
	if e, ok := ix.entities[id]; ok && e.Label != "" {
		return e.Label
	}
	return id
}

// Content builds indexes for a mode. The engine calls it once per session start.
type Content interface {
	Index(mode Mode) (*Index, error)
}

// DirContent reads entities from per-mode directories.
type DirContent struct {
	Dirs         map[Mode]string
	CaptionsFile string
}

func (c DirContent) Index(mode Mode) (*Index, error) {
	dir, ok := c.Dirs[mode]
	if !ok {
		return nil, fmt.Errorf("no content directory for mode %q", mode)
	}
	captions, err := LoadCaptions(c.CaptionsFile)
	if err != nil {
		return nil, err
	}
	return BuildIndex(dir, mode, captions)
}
