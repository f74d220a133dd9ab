package aggregate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/lilendian0x00/nodeharvest/pkg/node"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustParse(t *testing.T, link string) (node.Fingerprint, node.Node) {
	t.Helper()
	n, err := node.Parse(link)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", link, err)
	}
	return node.FingerprintOf(n, node.DefaultPolicy()), n
}

func TestStore_FirstSeenWins(t *testing.T) {
	s := NewStore()
	fpA, a := mustParse(t, "trojan://pw1@host.com:443?sni=a")
	fpB, b := mustParse(t, "trojan://pw1@host.com:443?sni=b#other")

	if got := s.Insert(fpA, a); got != New {
		t.Errorf("first insert = %s, want new", got)
	}
	if got := s.Insert(fpB, b); got != Duplicate {
		t.Errorf("second insert = %s, want duplicate", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if got := s.Entries()[0].Node.Params().Get("sni"); got != "a" {
		t.Errorf("surviving sni = %q, want %q", got, "a")
	}
	if s.Duplicates() != 1 {
		t.Errorf("Duplicates() = %d, want 1", s.Duplicates())
	}
}

func TestStore_ConcurrentInsert(t *testing.T) {
	s := NewStore()
	const producers = 16
	const perProducer = 200

	fps := make([]node.Fingerprint, perProducer)
	nodes := make([]node.Node, perProducer)
	for i := range nodes {
		fps[i], nodes[i] = mustParse(t, fmt.Sprintf("trojan://pw%d@host%d.org:443", i, i))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		newCnt int
	)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if s.Insert(fps[i], nodes[i]) == New {
					mu.Lock()
					newCnt++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if newCnt != perProducer {
		t.Errorf("new outcomes = %d, want %d", newCnt, perProducer)
	}
	if s.Len() != perProducer {
		t.Errorf("Len() = %d, want %d", s.Len(), perProducer)
	}
	if s.Duplicates() != (producers-1)*perProducer {
		t.Errorf("Duplicates() = %d, want %d", s.Duplicates(), (producers-1)*perProducer)
	}
}

func TestStore_LowestLatencyWins(t *testing.T) {
	s := NewStore(WithWinner(LowestLatency), WithMaxVariants(2))
	fp, a := mustParse(t, "vless://id-1@v.host.org:443?sni=a")
	_, b := mustParse(t, "vless://id-1@v.host.org:443?sni=b")
	_, c := mustParse(t, "vless://id-1@v.host.org:443?sni=c")
	_, d := mustParse(t, "vless://id-1@v.host.org:443?sni=d")
	_, aAgain := mustParse(t, "vless://id-1@v.host.org:443?sni=a#dup")

	s.Insert(fp, a)
	s.Insert(fp, b)
	s.Insert(fp, aAgain)
	s.Insert(fp, c)
	s.Insert(fp, d)

	e := s.Entries()[0]
	if got := len(e.Candidates()); got != 3 {
		t.Fatalf("candidates = %d, want 3 (winner plus two variants)", got)
	}

	s.Offer(fp, a, 300*time.Millisecond, true)
	s.Offer(fp, b, 0, false)
	s.Offer(fp, c, 120*time.Millisecond, true)

	e = s.Entries()[0]
	if got := e.Node.Params().Get("sni"); got != "c" {
		t.Errorf("winner sni = %q, want %q", got, "c")
	}
	if e.Latency != 120*time.Millisecond || !e.Alive {
		t.Errorf("latency = %v alive = %v", e.Latency, e.Alive)
	}
}

func TestStore_FirstSeenIgnoresFasterVariant(t *testing.T) {
	s := NewStore()
	fp, a := mustParse(t, "vless://id-1@v.host.org:443?sni=a")
	_, b := mustParse(t, "vless://id-1@v.host.org:443?sni=b")
	s.Insert(fp, a)
	s.Insert(fp, b)

	if got := len(s.Entries()[0].Candidates()); got != 1 {
		t.Errorf("first-seen store kept %d candidates, want 1", got)
	}
	s.Offer(fp, a, 300*time.Millisecond, true)
	s.Offer(fp, b, 10*time.Millisecond, true)
	if got := s.Entries()[0].Node.Params().Get("sni"); got != "a" {
		t.Errorf("winner sni = %q, want %q", got, "a")
	}
}

func TestStore_Prune(t *testing.T) {
	s := NewStore()
	fpA, a := mustParse(t, "trojan://pw1@a.host.org:443")
	fpB, b := mustParse(t, "trojan://pw1@b.host.org:443")
	fpC, c := mustParse(t, "trojan://pw1@c.host.org:443")
	s.Insert(fpA, a)
	s.Insert(fpB, b)
	s.Insert(fpC, c)

	s.Offer(fpA, a, 50*time.Millisecond, true)
	s.Offer(fpB, b, 0, false)

	if got := s.Prune(); got != 1 {
		t.Errorf("Prune() = %d, want 1", got)
	}
	entries := s.Entries()
	if len(entries) != 2 || entries[0].Fingerprint != fpA || entries[1].Fingerprint != fpC {
		t.Errorf("unexpected entries after prune: %+v", entries)
	}
}

func TestDedup(t *testing.T) {
	var nodes []node.Node
	for _, l := range []string{
		"trojan://pw1@host.com:443?sni=a",
		"trojan://pw1@host.com:443?sni=b",
		"trojan://pw2@host.com:443",
		"trojan://pw1@host.com:443#again",
	} {
		_, n := mustParse(t, l)
		nodes = append(nodes, n)
	}
	out, dropped := Dedup(nodes, node.DefaultPolicy())
	if len(out) != 2 || dropped != 2 {
		t.Fatalf("Dedup() kept %d dropped %d, want 2 and 2", len(out), dropped)
	}
	if out[0].Params().Get("sni") != "a" {
		t.Errorf("first occurrence must survive")
	}
}

func TestSort(t *testing.T) {
	_, v := mustParse(t, "vless://id@v.host.org:443")
	_, tr1 := mustParse(t, "trojan://b@t.host.org:443")
	_, tr2 := mustParse(t, "trojan://a@t.host.org:443")
	_, ss := mustParse(t, "ss://aes-256-gcm:p@s.host.org:8388")

	entries := []Entry{
		{Node: v, Latency: 10 * time.Millisecond, Alive: true},
		{Node: tr1, Latency: 50 * time.Millisecond, Alive: true},
		{Node: tr2, Latency: 90 * time.Millisecond, Alive: true},
		{Node: ss, Latency: 500 * time.Millisecond, Alive: true},
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = node.Render(e.Node, "")
	}

	lex := append([]Entry(nil), entries...)
	lexKeys := append([]string(nil), keys...)
	Sort(lex, lexKeys, false)
	for i := 1; i < len(lexKeys); i++ {
		if lexKeys[i-1] > lexKeys[i] {
			t.Errorf("lexicographic order broken at %d: %q > %q", i, lexKeys[i-1], lexKeys[i])
		}
	}
	if node.Render(lex[0].Node, "") != lexKeys[0] {
		t.Errorf("entries and keys out of step")
	}

	Sort(entries, keys, true)
	want := []node.Protocol{node.ProtocolShadowsocks, node.ProtocolVless, node.ProtocolTrojan, node.ProtocolTrojan}
	for i, e := range entries {
		if e.Node.Protocol() != want[i] {
			t.Errorf("position %d = %s, want %s", i, e.Node.Protocol(), want[i])
		}
	}
	if entries[2].Latency != 50*time.Millisecond {
		t.Errorf("trojan entries not ordered by latency")
	}
}

func TestSort_ReachableBeforeUnreachable(t *testing.T) {
	_, alive := mustParse(t, "trojan://alive@t1.host.org:443")
	_, dead := mustParse(t, "trojan://dead0@t2.host.org:443")
	_, untested := mustParse(t, "trojan://aaaaa@t3.host.org:443")

	entries := []Entry{
		{Node: dead, Probed: true},
		{Node: untested},
		{Node: alive, Probed: true, Alive: true, Latency: 40 * time.Millisecond},
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = node.Render(e.Node, "")
	}
	Sort(entries, keys, true)

	if entries[0].Node != alive {
		t.Fatalf("first entry = %s, want the reachable one", keys[0])
	}
	if entries[1].Node != untested || entries[2].Node != dead {
		t.Errorf("unreachable entries not ordered by rendering: %v", keys)
	}
}
