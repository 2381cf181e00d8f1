// Package state persists engine state in a pebble key-value store.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
)

const (
	positionPrefix = "position/"
	noncePrefix    = "nonce/"
	cooldownPrefix = "cooldown/"
	countersKey    = "meta/counters"
	lastScanKey    = "meta/last_scan"
)

// Store is the durable home of a bot.Snapshot.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a store under dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory state: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes snap atomically. Cooldowns are replaced wholesale; positions
// and nonces are upserted.
func (s *Store) Save(snap bot.Snapshot) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, p := range snap.Positions {
		if p.Key() == "" {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode position %s: %w", p.Key(), err)
		}
		if err := b.Set(positionKey(p), data, nil); err != nil {
			return err
		}
	}
	for venue, n := range snap.Nonces {
		if err := b.Set([]byte(noncePrefix+venue), encodeUint64(n), nil); err != nil {
			return err
		}
	}
	if err := b.DeleteRange([]byte(cooldownPrefix), prefixEnd(cooldownPrefix), nil); err != nil {
		return err
	}
	for market, until := range snap.Cooldowns {
		if err := b.Set([]byte(cooldownPrefix+market), encodeUint64(uint64(until.UnixNano())), nil); err != nil {
			return err
		}
	}
	counters := make([]byte, 24)
	binary.BigEndian.PutUint64(counters[0:8], snap.Trades)
	binary.BigEndian.PutUint64(counters[8:16], snap.Failures)
	binary.BigEndian.PutUint64(counters[16:24], snap.Skips)
	if err := b.Set([]byte(countersKey), counters, nil); err != nil {
		return err
	}
	if !snap.LastScan.IsZero() {
		if err := b.Set([]byte(lastScanKey), encodeUint64(uint64(snap.LastScan.UnixNano())), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Load reads everything Save wrote. An empty store yields an empty snapshot.
func (s *Store) Load() (bot.Snapshot, error) {
	snap := bot.Snapshot{
		Nonces:    map[string]uint64{},
		Cooldowns: map[string]time.Time{},
	}
	err := s.scan(positionPrefix, func(_ string, val []byte) error {
		var p settlement.Position
		if err := json.Unmarshal(val, &p); err != nil {
			return fmt.Errorf("decode position: %w", err)
		}
		snap.Positions = append(snap.Positions, p)
		return nil
	})
	if err != nil {
		return bot.Snapshot{}, err
	}
	err = s.scan(noncePrefix, func(venue string, val []byte) error {
		n, err := decodeUint64(val)
		if err != nil {
			return fmt.Errorf("nonce %s: %w", venue, err)
		}
		snap.Nonces[venue] = n
		return nil
	})
	if err != nil {
		return bot.Snapshot{}, err
	}
	err = s.scan(cooldownPrefix, func(market string, val []byte) error {
		n, err := decodeUint64(val)
		if err != nil {
			return fmt.Errorf("cooldown %s: %w", market, err)
		}
		snap.Cooldowns[market] = time.Unix(0, int64(n)).UTC()
		return nil
	})
	if err != nil {
		return bot.Snapshot{}, err
	}

	if val, ok, err := s.get(countersKey); err != nil {
		return bot.Snapshot{}, err
	} else if ok {
		if len(val) != 24 {
			return bot.Snapshot{}, errors.New("invalid counters record length")
		}
		snap.Trades = binary.BigEndian.Uint64(val[0:8])
		snap.Failures = binary.BigEndian.Uint64(val[8:16])
		snap.Skips = binary.BigEndian.Uint64(val[16:24])
	}
	if val, ok, err := s.get(lastScanKey); err != nil {
		return bot.Snapshot{}, err
	} else if ok {
		n, err := decodeUint64(val)
		if err != nil {
			return bot.Snapshot{}, fmt.Errorf("last scan: %w", err)
		}
		snap.LastScan = time.Unix(0, int64(n)).UTC()
	}
	return snap, nil
}

func (s *Store) get(key string) ([]byte, bool, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), true, nil
}

func (s *Store) scan(prefix string, fn func(suffix string, val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		suffix := strings.TrimPrefix(string(iter.Key()), prefix)
		if err := fn(suffix, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// positionKey zero-pads the id so iteration follows numeric order.
func positionKey(p settlement.Position) []byte {
	return []byte(fmt.Sprintf("%s%078d", positionPrefix, p.ID.Big()))
}

func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.New("invalid record length")
	}
	return binary.BigEndian.Uint64(b), nil
}
