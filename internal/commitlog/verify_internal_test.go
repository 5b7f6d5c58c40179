package commitlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
)

func sealedLog(t *testing.T, batches int) *MemoryLog {
	t.Helper()
	key, err := identity.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	l := NewMemoryLog()
	for i := 0; i < batches; i++ {
		txs := []digest.Hashable{digest.Bytes{byte(i)}, digest.Bytes{byte(i), 1}}
		if _, err := Seal(context.Background(), l, key, txs); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func TestVerify_detectsTampering(t *testing.T) {
	forged, _ := identity.GenerateKey()

	tests := []struct {
		name    string
		tamper  func(l *MemoryLog)
		wantErr string
	}{
		{
			name:    "genesis hash",
			tamper:  func(l *MemoryLog) { l.entries[0].Hash = strings.Repeat("1", 64) },
			wantErr: "genesis",
		},
		{
			name:    "broken link",
			tamper:  func(l *MemoryLog) { l.entries[2].PrevHash = GenesisHash },
			wantErr: "hash chain broken at index 2",
		},
		{
			name:    "rewritten root",
			tamper:  func(l *MemoryLog) { l.entries[1].Root = digest.Sum([]byte("x")).String() },
			wantErr: "entry 1 has invalid hash",
		},
		{
			name: "re-hashed forged signature",
			tamper: func(l *MemoryLog) {
				e := l.entries[3]
				root, _ := digest.Parse(e.Root)
				e.Signature = forged.Sign(root).String()
				e.Hash = hashEntry(e)
				// keep the rest of the chain linked to the forged entry
				for i := 4; i < len(l.entries); i++ {
					l.entries[i].PrevHash = l.entries[i-1].Hash
					l.entries[i].Hash = hashEntry(l.entries[i])
				}
			},
			wantErr: "entry 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := sealedLog(t, 4)
			if err := l.Verify(context.Background()); err != nil {
				t.Fatalf("chain should verify before tampering: %v", err)
			}
			tt.tamper(l)
			err := l.Verify(context.Background())
			if err == nil {
				t.Fatal("Verify() passed on a tampered chain")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestHashEntry_stableAcrossZones(t *testing.T) {
	l := sealedLog(t, 1)
	e := *l.entries[1]
	want := hashEntry(&e)

	e.Timestamp = e.Timestamp.In(time.FixedZone("EST", -5*60*60))
	if got := hashEntry(&e); got != want {
		t.Errorf("hash depends on time zone: %s vs %s", got, want)
	}
}
