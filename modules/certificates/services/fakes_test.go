package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
)

// memDB keeps both stores and the outbox in memory. inTx snapshots all of
// it and restores the snapshot when fn fails, like a rolled back
// transaction.
type memDB struct {
	mu       sync.Mutex
	seq      int64
	nextID   int64
	requests map[int64]request.Request
	ledger   map[int64]history.Record
	outbox   []enqueued
	now      time.Time

	failLedgerUpsert error
	failOutbox       error
	// beforeRequestDelete runs ahead of each active-row delete, standing in
	// for a concurrent transaction.
	beforeRequestDelete func(id int64)
}

type enqueued struct {
	Topic   string
	Key     string
	Payload json.RawMessage
}

func newMemDB() *memDB {
	return &memDB{
		seq:      99,
		requests: map[int64]request.Request{},
		ledger:   map[int64]history.Record{},
		now:      time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) clock() time.Time {
	db.now = db.now.Add(time.Minute)
	return db.now
}

func (db *memDB) inTx(ctx context.Context, fn func(context.Context) error) error {
	db.mu.Lock()
	reqs := make(map[int64]request.Request, len(db.requests))
	for k, v := range db.requests {
		reqs[k] = v
	}
	led := make(map[int64]history.Record, len(db.ledger))
	for k, v := range db.ledger {
		led[k] = v
	}
	out := append([]enqueued(nil), db.outbox...)
	seq, nextID := db.seq, db.nextID
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.requests, db.ledger, db.outbox = reqs, led, out
		db.seq, db.nextID = seq, nextID
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) deps() Deps {
	return Deps{
		Requests: &memRequests{db},
		Ledger:   &memLedger{db},
		Outbox:   &memOutbox{db},
		InTx:     db.inTx,
		Now:      db.clock,
	}
}

func (db *memDB) topics() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.outbox))
	for _, m := range db.outbox {
		out = append(out, m.Topic)
	}
	return out
}

func (db *memDB) ledgerByFolio(folio string) []history.Record {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []history.Record
	for _, rec := range db.ledger {
		if rec.Folio == folio {
			out = append(out, rec)
		}
	}
	return out
}

type memRequests struct{ db *memDB }

func (r *memRequests) Create(_ context.Context, data request.Request) (request.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.seq++
	r.db.nextID++
	data.ID = r.db.nextID
	data.Folio = request.FormatFolio(r.db.seq)
	data.CreatedAt = r.db.now
	if data.State == "" {
		data.State = request.Pending
	}
	r.db.requests[data.ID] = data
	return data, nil
}

func (r *memRequests) List(_ context.Context, params *request.FindParams) ([]request.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]request.Request, 0)
	state, filter := params.StateFilter()
	for _, req := range r.db.requests {
		if filter && req.State != state {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRequests) GetByID(_ context.Context, id int64) (request.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	req, ok := r.db.requests[id]
	if !ok {
		return request.Request{}, domain.ErrNotFound
	}
	return req, nil
}

func (r *memRequests) GetByFolio(_ context.Context, folio string) (request.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, req := range r.db.requests {
		if req.Folio == folio {
			return req, nil
		}
	}
	return request.Request{}, domain.ErrNotFound
}

func (r *memRequests) Update(_ context.Context, data request.Request) (request.Request, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.requests[data.ID]; !ok {
		return request.Request{}, domain.ErrNotFound
	}
	r.db.requests[data.ID] = data
	return data, nil
}

func (r *memRequests) Delete(_ context.Context, id int64) error {
	if hook := r.db.beforeRequestDelete; hook != nil {
		hook(id)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.requests[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.db.requests, id)
	return nil
}

func (r *memRequests) DeleteByFolio(ctx context.Context, folio string) error {
	req, err := r.GetByFolio(ctx, folio)
	if err != nil {
		return err
	}
	return r.Delete(ctx, req.ID)
}

type memLedger struct{ db *memDB }

func (l *memLedger) Upsert(_ context.Context, rec history.Record) (history.Record, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	if l.db.failLedgerUpsert != nil {
		return history.Record{}, l.db.failLedgerUpsert
	}
	if prev, ok := l.db.ledger[rec.RequestID]; ok {
		rec.ID = prev.ID
	} else {
		rec.ID = int64(len(l.db.ledger) + 1000)
	}
	l.db.ledger[rec.RequestID] = rec
	return rec, nil
}

func (l *memLedger) TransitionIfState(_ context.Context, expected request.State, rec history.Record) (history.Record, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	cur, ok := l.db.ledger[rec.RequestID]
	if !ok || cur.State != expected {
		return history.Record{}, domain.ErrNotFound
	}
	rec.ID = cur.ID
	l.db.ledger[rec.RequestID] = rec
	return rec, nil
}

func (l *memLedger) List(_ context.Context, params *history.FindParams) ([]history.Record, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	out := make([]history.Record, 0)
	state, filter := params.StateFilter()
	for _, rec := range l.db.ledger {
		if filter && rec.State != state {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangedAt.After(out[j].ChangedAt) })
	return out, nil
}

func (l *memLedger) GetByFolio(_ context.Context, folio string) (history.Record, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	for _, rec := range l.db.ledger {
		if rec.Folio == folio {
			return rec, nil
		}
	}
	return history.Record{}, domain.ErrNotFound
}

func (l *memLedger) GetByRequestID(_ context.Context, requestID int64) (history.Record, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	rec, ok := l.db.ledger[requestID]
	if !ok {
		return history.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (l *memLedger) Update(ctx context.Context, rec history.Record) (history.Record, error) {
	cur, err := l.GetByFolio(ctx, rec.Folio)
	if err != nil {
		return history.Record{}, err
	}
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	rec.State = cur.State
	rec.ID = cur.ID
	rec.RequestID = cur.RequestID
	l.db.ledger[cur.RequestID] = rec
	return rec, nil
}

func (l *memLedger) SetDocumentURL(ctx context.Context, folio, url string) error {
	cur, err := l.GetByFolio(ctx, folio)
	if err != nil {
		return err
	}
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	cur.DocumentURL = url
	l.db.ledger[cur.RequestID] = cur
	return nil
}

func (l *memLedger) DeleteByFolio(ctx context.Context, folio string) error {
	cur, err := l.GetByFolio(ctx, folio)
	if err != nil {
		return err
	}
	return l.DeleteByRequestID(ctx, cur.RequestID)
}

func (l *memLedger) DeleteByRequestID(_ context.Context, requestID int64) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	if _, ok := l.db.ledger[requestID]; !ok {
		return domain.ErrNotFound
	}
	delete(l.db.ledger, requestID)
	return nil
}

type memOutbox struct{ db *memDB }

func (o *memOutbox) Enqueue(_ context.Context, topic, key string, payload any) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	if o.db.failOutbox != nil {
		return o.db.failOutbox
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	o.db.outbox = append(o.db.outbox, enqueued{Topic: topic, Key: key, Payload: raw})
	return nil
}

type stubRenderer struct {
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, rec history.Record) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + rec.Folio + " " + string(rec.State)), nil
}

type stubRegistry struct {
	phones map[string]string
	err    error
}

func (r *stubRegistry) PhoneByNationalID(_ context.Context, nid string) (string, bool, error) {
	if r.err != nil {
		return "", false, r.err
	}
	p, ok := r.phones[nid]
	return p, ok, nil
}

type memCache struct {
	values      map[string][]byte
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, folio string, dst any) (bool, error) {
	raw, ok := c.values[folio]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(_ context.Context, folio string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[folio] = raw
	return nil
}

func (c *memCache) Invalidate(_ context.Context, folio string) error {
	c.invalidated = append(c.invalidated, folio)
	delete(c.values, folio)
	return nil
}
