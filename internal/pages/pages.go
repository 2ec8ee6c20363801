package pages

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	idpkg "github.com/macrat/markdown-board-sub001/pkg/id"
	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	pebblestore "github.com/macrat/markdown-board-sub001/internal/storage/pebble"
	"github.com/macrat/markdown-board-sub001/internal/updatelog/pebblelog"
)

// ErrNotFound is returned when no page exists under the requested id.
var ErrNotFound = errors.New("pages: not found")

// Page holds board page metadata. The page id doubles as the document id of
// the page's update log.
type Page struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CreatedAtMs int64  `json:"createdAtMs"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

var pageMetaPrefix = []byte("pgmeta/")

func pageKey(id string) []byte {
	k := make([]byte, 0, len(pageMetaPrefix)+len(id))
	k = append(k, pageMetaPrefix...)
	k = append(k, id...)
	return k
}

func pageBounds() (lo, hi []byte) {
	lo = append([]byte(nil), pageMetaPrefix...)
	hi = append([]byte(nil), pageMetaPrefix...)
	hi[len(hi)-1]++
	return lo, hi
}

// Service manages page metadata and ties each page's lifetime to its update
// log: deleting a page removes the page and every stored update in one
// atomic batch.
type Service struct {
	db      *pebblestore.DB
	updates *pebblelog.Store
	log     logpkg.Logger
}

// New wires a Service over the same database the update log runs on.
func New(db *pebblestore.DB, updates *pebblelog.Store, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Service{
		db:      db,
		updates: updates,
		log:     logger.WithComponent("pages"),
	}
}

// Create stores a new page. An empty id is replaced with a generated one.
// Creating an id that already exists returns the stored page unchanged, so
// retried creates are harmless.
func (s *Service) Create(ctx context.Context, id, title string) (Page, error) {
	if id == "" {
		id = idpkg.New("pg")
	}
	if existing, err := s.Get(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Page{}, err
	}

	now := time.Now().UnixMilli()
	p := Page{ID: id, Title: title, CreatedAtMs: now, UpdatedAtMs: now}
	raw, err := json.Marshal(p)
	if err != nil {
		return Page{}, err
	}
	if err := s.db.Set(pageKey(id), raw); err != nil {
		return Page{}, err
	}
	s.log.Debug("pages.create", logpkg.Str("page", id))
	return p, nil
}

// Get loads one page.
func (s *Service) Get(ctx context.Context, id string) (Page, error) {
	raw, err := s.db.Get(pageKey(id))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, err
	}
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return Page{}, err
	}
	return p, nil
}

// List returns every page sorted by id.
func (s *Service) List(ctx context.Context) ([]Page, error) {
	lo, hi := pageBounds()
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Page
	for ok := it.First(); ok; ok = it.Next() {
		var p Page
		if err := json.Unmarshal(it.Value(), &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetTitle renames a page.
func (s *Service) SetTitle(ctx context.Context, id, title string) (Page, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Page{}, err
	}
	p.Title = title
	p.UpdatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(p)
	if err != nil {
		return Page{}, err
	}
	if err := s.db.Set(pageKey(id), raw); err != nil {
		return Page{}, err
	}
	return p, nil
}

// Delete removes the page and clears its update log in one batch commit.
// After it returns, the page reads as missing, the document reads as empty,
// and the next append to the same id starts over at sequence zero.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.updates.ClearWith(ctx, id, func(b *pebble.Batch) error {
		return b.Delete(pageKey(id), nil)
	})
	if err != nil {
		return err
	}
	s.log.Info("pages.delete", logpkg.Str("page", id))
	return nil
}
