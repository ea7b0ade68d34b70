package collection

import (
	"context"
	"sync"
	"time"

	"github.com/5IGI0/Masstuffy/internal/index"
)

// fakeIndex is a minimal in-memory index.Client for exercising Collection
// without a real database, mirroring the contract described in
// internal/index/contract.go closely enough for rebuild tests.
type fakeIndex struct {
	mu   sync.Mutex
	rows []index.Row
	next int64
}

func newFakeIndex() *fakeIndex { return &fakeIndex{next: 1} }

func (f *fakeIndex) InsertRecord(ctx context.Context, collUUID string, row index.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.ID = f.next
	f.next++
	row.Collection = collUUID
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeIndex) ActivateRecords(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		r := &f.rows[i]
		if r.Collection == collUUID && r.DictID != nil && *r.DictID == dictID && r.DictAlgo != nil && *r.DictAlgo == dictAlgo {
			r.Active = true
		}
	}
	return nil
}

func (f *fakeIndex) DeleteRecords(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.Collection == collUUID && r.DictID != nil && *r.DictID == dictID && r.DictAlgo != nil && *r.DictAlgo == dictAlgo {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

func (f *fakeIndex) DeleteRecordsExcept(ctx context.Context, collUUID string, dictID uint32, dictAlgo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, r := range f.rows {
		matches := r.Collection == collUUID &&
			r.DictID != nil && *r.DictID == dictID &&
			r.DictAlgo != nil && *r.DictAlgo == dictAlgo
		if r.Collection == collUUID && !matches {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

func (f *fakeIndex) DeleteCollection(ctx context.Context, collUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.Collection == collUUID {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

func (f *fakeIndex) GetByID(ctx context.Context, id string) (index.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Identifier == id && r.Active {
			return r, nil
		}
	}
	return index.Row{}, index.ErrNotFound
}

func (f *fakeIndex) GetByURI(ctx context.Context, date time.Time, uri string) (index.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best index.Row
	var bestDelta time.Duration
	found := false
	for _, r := range f.rows {
		if !r.Active || r.Type == "request" || r.URL != uri {
			continue
		}
		delta := r.Date.Sub(date)
		if delta < 0 {
			delta = -delta
		}
		if !found || delta < bestDelta {
			best, bestDelta, found = r, delta, true
		}
	}
	if !found {
		return index.Row{}, index.ErrNotFound
	}
	return best, nil
}

func (f *fakeIndex) Search(ctx context.Context, q index.SearchQuery) ([]index.Row, error) {
	return nil, nil
}

func (f *fakeIndex) GetSamples(ctx context.Context, collUUID string, limit int) ([]index.Row, error) {
	return nil, nil
}

func (f *fakeIndex) CreateToken(ctx context.Context, t index.Token) error { return nil }
func (f *fakeIndex) GetToken(ctx context.Context, token string) (index.Token, error) {
	return index.Token{}, index.ErrNotFound
}
func (f *fakeIndex) ListTokens(ctx context.Context) ([]index.Token, error) { return nil, nil }
func (f *fakeIndex) DeleteToken(ctx context.Context, token string) error   { return nil }

func (f *fakeIndex) activeCount(collUUID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Collection == collUUID && r.Active {
			n++
		}
	}
	return n
}

func (f *fakeIndex) rowCount(collUUID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Collection == collUUID {
			n++
		}
	}
	return n
}

func (f *fakeIndex) countForDict(collUUID string, dictID uint32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Collection == collUUID && r.DictID != nil && *r.DictID == dictID {
			n++
		}
	}
	return n
}
