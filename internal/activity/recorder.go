// Package activity keeps an audit trail of presence lifecycle events in
// Postgres. Message content is never stored.
package activity

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"presencehub/internal/fanout"
	"presencehub/internal/presence"
)

//go:embed schema.sql
var schema string

type Kind string

const (
	KindUserJoined   Kind = "user_joined"
	KindUserLeft     Kind = "user_left"
	KindGroupCreated Kind = "group_created"
	KindMemberJoined Kind = "member_joined"
	KindMemberLeft   Kind = "member_left"
)

type Entry struct {
	Kind        Kind
	ConnID      presence.ConnID
	GroupID     presence.GroupID
	DisplayName string
	Detail      string
	At          time.Time
}

const (
	flushEvery   = time.Second
	writeTimeout = 5 * time.Second
)

// EnsureSchema creates the activity table if it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply activity schema: %w", err)
	}
	return nil
}

// Recorder queues entries from the hub and writes them in batches. Observe
// never blocks; when the queue is full entries are dropped and counted.
type Recorder struct {
	db        *sql.DB
	queue     chan Entry
	batchSize int
	now       func() time.Time
	dropped   atomic.Int64
}

func NewRecorder(db *sql.DB, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Recorder{
		db:        db,
		queue:     make(chan Entry, batchSize*10),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Dropped reports how many entries were lost to a full queue.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

func (r *Recorder) Observe(_ presence.ConnID, deliveries []fanout.Delivery) {
	at := r.now().UTC()
	for _, e := range EntriesFrom(deliveries) {
		e.At = at
		select {
		case r.queue <- e:
		default:
			if r.dropped.Add(1) == 1 {
				zap.L().Warn("activity.queue_full", zap.Int("capacity", cap(r.queue)))
			}
		}
	}
}

// Run writes queued entries until ctx is done, then flushes what is left.
// Entries observed after Run returns are never written, so cancel ctx only
// once the hub has stopped producing deliveries.
func (r *Recorder) Run(ctx context.Context) {
	tk := time.NewTicker(flushEvery)
	defer tk.Stop()

	batch := make([]Entry, 0, r.batchSize)
	// Writes outlive ctx so a shutdown still lands the last batch.
	flush := func() {
		if len(batch) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := persist(wctx, r.db, batch); err != nil {
			zap.L().Error("activity.persist", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}
	add := func(e Entry) {
		batch = append(batch, e)
		if len(batch) == r.batchSize {
			flush()
		}
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case e := <-r.queue:
					add(e)
				default:
					break drain
				}
			}
			flush()
			return
		case e := <-r.queue:
			add(e)
		case <-tk.C:
			flush()
		}
	}
}

func persist(ctx context.Context, db *sql.DB, entries []Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO presence_activity (kind, conn_id, group_id, display_name, detail, at)
	             VALUES ($1, $2, $3, $4, $5, $6)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, ins,
			string(e.Kind), string(e.ConnID), string(e.GroupID), e.DisplayName, e.Detail, e.At,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// EntriesFrom keeps the lifecycle events of a delivery batch. Requester-only
// replies and message traffic are ignored.
func EntriesFrom(deliveries []fanout.Delivery) []Entry {
	var out []Entry
	for _, d := range deliveries {
		switch d.Event {
		case fanout.EventUserJoined, fanout.EventUserLeft:
			id, ok := d.Data.(presence.Identity)
			if !ok {
				continue
			}
			kind := KindUserJoined
			if d.Event == fanout.EventUserLeft {
				kind = KindUserLeft
			}
			out = append(out, Entry{Kind: kind, ConnID: id.ID, DisplayName: id.DisplayName})
		case fanout.EventGroupCreated:
			g, ok := d.Data.(presence.Group)
			if !ok {
				continue
			}
			out = append(out, Entry{Kind: KindGroupCreated, ConnID: g.CreatedBy, GroupID: g.ID, Detail: g.Name})
		case fanout.EventMemberJoined:
			b, ok := d.Data.(fanout.MemberJoinedBody)
			if !ok {
				continue
			}
			out = append(out, Entry{Kind: KindMemberJoined, ConnID: b.Member.ID, GroupID: b.Group.ID, DisplayName: b.Member.DisplayName})
		case fanout.EventMemberLeft:
			b, ok := d.Data.(fanout.MemberLeftBody)
			if !ok {
				continue
			}
			out = append(out, Entry{Kind: KindMemberLeft, ConnID: b.Member.ID, GroupID: b.GroupID, DisplayName: b.Member.DisplayName})
		}
	}
	return out
}
