package main

import (
	"encoding/binary"
	"math"
	"testing"

	"keyloop/internal/wire"
)

func run(s *Server, now int64, args ...string) *wire.Writer {
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	w := wire.NewWriter()
	dispatch(s, raw, w, now)
	return w
}

func newTestServer() *Server {
	return &Server{ks: NewKeyspace(2)}
}

func tagOf(w *wire.Writer) byte {
	frame := w.Bytes()
	return frame[4]
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	w := run(s, 0, "set", "k", "v")
	if tagOf(w) != wire.TagNil {
		t.Fatalf("set should reply NIL")
	}

	w = run(s, 0, "get", "k")
	frame := w.Bytes()
	if frame[4] != wire.TagStr {
		t.Fatalf("get should reply STR, got tag %d", frame[4])
	}
	n := binary.LittleEndian.Uint32(frame[5:9])
	if string(frame[9:9+n]) != "v" {
		t.Fatalf("get(k) = %q, want v", frame[9:9+n])
	}
}

func TestGetMissingKeyIsNil(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	w := run(s, 0, "get", "missing")
	if tagOf(w) != wire.TagNil {
		t.Fatalf("get(missing) should reply NIL")
	}
}

func TestGetWrongTypeIsBadTyp(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "zadd", "z", "1", "m")
	w := run(s, 0, "get", "z")
	frame := w.Bytes()
	if frame[4] != wire.TagErr {
		t.Fatalf("get on a zset should reply ERR")
	}
	code := binary.LittleEndian.Uint32(frame[5:9])
	if code != wire.ErrBadTyp {
		t.Fatalf("code = %d, want ErrBadTyp", code)
	}
}

func TestDelReportsPresence(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "set", "k", "v")
	w := run(s, 0, "del", "k")
	frame := w.Bytes()
	v := int64(binary.LittleEndian.Uint64(frame[5:13]))
	if v != 1 {
		t.Fatalf("del(k) = %d, want 1", v)
	}

	w = run(s, 0, "del", "k")
	frame = w.Bytes()
	v = int64(binary.LittleEndian.Uint64(frame[5:13]))
	if v != 0 {
		t.Fatalf("second del(k) = %d, want 0", v)
	}
}

func TestExpireAndTTL(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "set", "k", "v")
	run(s, 1000, "pexpire", "k", "500")

	w := run(s, 1000, "pttl", "k")
	frame := w.Bytes()
	v := int64(binary.LittleEndian.Uint64(frame[5:13]))
	if v != 500 {
		t.Fatalf("pttl = %d, want 500", v)
	}

	w = run(s, 2000, "pttl", "k")
	frame = w.Bytes()
	v = int64(binary.LittleEndian.Uint64(frame[5:13]))
	if v != 0 {
		t.Fatalf("pttl after expiry = %d, want 0", v)
	}
}

func TestTTLOnMissingKeyIsMinusTwo(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	w := run(s, 0, "pttl", "absent")
	frame := w.Bytes()
	v := int64(binary.LittleEndian.Uint64(frame[5:13]))
	if v != -2 {
		t.Fatalf("pttl(absent) = %d, want -2", v)
	}
}

func TestZAddZScoreZRem(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "zadd", "z", "1.5", "alice")
	w := run(s, 0, "zscore", "z", "alice")
	frame := w.Bytes()
	if frame[4] != wire.TagDbl {
		t.Fatalf("zscore should reply DBL")
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(frame[5:13]))
	if v != 1.5 {
		t.Fatalf("zscore = %v, want 1.5", v)
	}

	w = run(s, 0, "zrem", "z", "alice")
	frame = w.Bytes()
	n := int64(binary.LittleEndian.Uint64(frame[5:13]))
	if n != 1 {
		t.Fatalf("zrem = %d, want 1", n)
	}
}

func TestZScoreOnMissingKeyIsNilNotError(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	w := run(s, 0, "zscore", "nosuchkey", "m")
	if tagOf(w) != wire.TagNil {
		t.Fatalf("zscore on a missing key should reply NIL, not an error")
	}
}

func TestZRemOnMissingKeyIsZeroNotError(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	w := run(s, 0, "zrem", "nosuchkey", "m")
	frame := w.Bytes()
	if frame[4] != wire.TagInt {
		t.Fatalf("zrem on a missing key should reply INT, not an error")
	}
	n := int64(binary.LittleEndian.Uint64(frame[5:13]))
	if n != 0 {
		t.Fatalf("zrem on a missing key = %d, want 0", n)
	}
}

func TestZAddOnWrongTypeIsBadTyp(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "set", "k", "v")
	w := run(s, 0, "zadd", "k", "1", "m")
	frame := w.Bytes()
	if frame[4] != wire.TagErr {
		t.Fatalf("zadd on a string key should reply ERR")
	}
}

func TestZQueryOrdersByScore(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "zadd", "s", "1", "a")
	run(s, 0, "zadd", "s", "2", "b")
	run(s, 0, "zadd", "s", "1.5", "c")

	w := run(s, 0, "zquery", "s", "1", "", "0", "10")
	frame := w.Bytes()
	if frame[4] != wire.TagArr {
		t.Fatalf("zquery should reply ARR")
	}
	n := binary.LittleEndian.Uint32(frame[5:9])
	if n != 6 { // 3 pairs
		t.Fatalf("array count = %d, want 6", n)
	}

	pos := 9
	for i, want := range []string{"a", "c", "b"} {
		if frame[pos] != wire.TagStr {
			t.Fatalf("element %d: tag = %d, want TagStr", 2*i, frame[pos])
		}
		ln := int(binary.LittleEndian.Uint32(frame[pos+1 : pos+5]))
		if got := string(frame[pos+5 : pos+5+ln]); got != want {
			t.Fatalf("member %d = %q, want %q", i, got, want)
		}
		pos += 5 + ln + 9 // skip this STR and the DBL score after it
	}
}

func TestZQueryWithNonPositiveLimitIsEmpty(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	run(s, 0, "zadd", "s", "1", "a")
	w := run(s, 0, "zquery", "s", "0", "", "0", "0")
	frame := w.Bytes()
	n := binary.LittleEndian.Uint32(frame[5:9])
	if n != 0 {
		t.Fatalf("array count = %d, want 0", n)
	}
}

func TestUnknownCommandAndWrongArity(t *testing.T) {
	s := newTestServer()
	defer s.ks.Close()

	w := run(s, 0, "frobnicate", "x")
	frame := w.Bytes()
	if frame[4] != wire.TagErr {
		t.Fatalf("unknown command should reply ERR")
	}
	code := binary.LittleEndian.Uint32(frame[5:9])
	if code != wire.ErrUnknown {
		t.Fatalf("code = %d, want ErrUnknown", code)
	}

	w = run(s, 0, "get", "k", "extra")
	frame = w.Bytes()
	code = binary.LittleEndian.Uint32(frame[5:9])
	if frame[4] != wire.TagErr || code != wire.ErrUnknown {
		t.Fatalf("wrong arity should reply ErrUnknown")
	}
}
