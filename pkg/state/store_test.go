package state

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	snap, err := openMem(t).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Positions) != 0 || len(snap.Nonces) != 0 || snap.Trades != 0 || !snap.LastScan.IsZero() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openMem(t)
	scan := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := scan.Add(5 * time.Minute)
	in := bot.Snapshot{
		Positions: []settlement.Position{
			{ID: types.U256FromUint64(10), AdapterA: common.HexToAddress("0x01"), MarketIDB: common.HexToHash("0xbeef"), SharesA: types.U256FromUint64(213_750), CostA: types.NewUSDC(90_000), Closed: true},
			{ID: types.U256FromUint64(9), BuyYesOnA: true},
			{BuyYesOnA: true},
		},
		Nonces:    map[string]uint64{"opinion": 4, "polymarket": 11},
		Cooldowns: map[string]time.Time{"btc-100k": until},
		Trades:    3,
		Failures:  1,
		Skips:     42,
		LastScan:  scan,
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(out.Positions) != 2 {
		t.Fatalf("expected 2 positions (id-less skipped), got %d", len(out.Positions))
	}
	if out.Positions[0].ID.String() != "9" || out.Positions[1].ID.String() != "10" {
		t.Errorf("positions not in id order: %s, %s", out.Positions[0].ID, out.Positions[1].ID)
	}
	p := out.Positions[1]
	if !p.Closed || p.SharesA.String() != "213750" || p.CostA.Big().Int64() != 90_000 || p.MarketIDB != common.HexToHash("0xbeef") {
		t.Errorf("position fields lost: %+v", p)
	}
	if out.Nonces["opinion"] != 4 || out.Nonces["polymarket"] != 11 {
		t.Errorf("nonces = %v", out.Nonces)
	}
	if !out.Cooldowns["btc-100k"].Equal(until) {
		t.Errorf("cooldowns = %v", out.Cooldowns)
	}
	if out.Trades != 3 || out.Failures != 1 || out.Skips != 42 || !out.LastScan.Equal(scan) {
		t.Errorf("counters = %+v", out)
	}
}

func TestSaveReplacesCooldownsAndUpsertsPositions(t *testing.T) {
	s := openMem(t)
	first := bot.Snapshot{
		Positions: []settlement.Position{{ID: types.U256FromUint64(1)}},
		Cooldowns: map[string]time.Time{"a": time.Unix(100, 0), "b": time.Unix(200, 0)},
	}
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	second := bot.Snapshot{
		Positions: []settlement.Position{{ID: types.U256FromUint64(1), Closed: true}},
		Cooldowns: map[string]time.Time{"b": time.Unix(300, 0)},
	}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Positions) != 1 || !out.Positions[0].Closed {
		t.Errorf("position not upserted: %+v", out.Positions)
	}
	if len(out.Cooldowns) != 1 || out.Cooldowns["b"].Unix() != 300 {
		t.Errorf("cooldowns not replaced: %v", out.Cooldowns)
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(bot.Snapshot{Nonces: map[string]uint64{"opinion": 2}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	out, err := s.Load()
	if err != nil || out.Nonces["opinion"] != 2 {
		t.Fatalf("reopened store lost nonce: %+v %v", out, err)
	}
}
