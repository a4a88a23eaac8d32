package main

import (
	"keyloop/internal/wire"
)

// handlerFunc implements one command's semantics, writing its reply into
// w. args[0] is the command name.
type handlerFunc func(s *Server, args [][]byte, w *wire.Writer, nowMs int64)

// command pairs a handler with the exact argument count (including the
// command name) it requires. Wrong arity falls through to UNKNOWN, the
// same as an unrecognized command name — the original server's arity
// checks are folded into the dispatch table match instead of living
// inside every handler.
type command struct {
	argc    int
	handler handlerFunc
}

var commandTable = map[string]command{
	"get":     {2, doGet},
	"set":     {3, doSet},
	"del":     {2, doDel},
	"pexpire": {3, doExpire},
	"pttl":    {2, doTTL},
	"keys":    {1, doKeys},
	"zadd":    {4, doZAdd},
	"zrem":    {3, doZRem},
	"zscore":  {3, doZScore},
	"zquery":  {6, doZQuery},
}

// dispatch routes a parsed command to its handler, or writes an UNKNOWN
// error for an unrecognized name or mismatched arity.
func dispatch(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	if len(args) == 0 {
		w.Err(wire.ErrUnknown, "unknown command.")
		return
	}
	cmd, ok := commandTable[string(args[0])]
	if !ok || len(args) != cmd.argc {
		w.Err(wire.ErrUnknown, "unknown command.")
		return
	}
	cmd.handler(s, args, w, nowMs)
}

func doGet(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	ent, ok := s.ks.Lookup(args[1])
	if !ok {
		w.Nil()
		return
	}
	if ent.Type != typeStr {
		w.Err(wire.ErrBadTyp, "not a string value")
		return
	}
	w.Str(ent.Str)
}

func doSet(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	key, value := args[1], args[2]
	if ent, ok := s.ks.Lookup(key); ok {
		if ent.Type != typeStr {
			w.Err(wire.ErrBadTyp, "a non string value exists")
			return
		}
		ent.Str = append([]byte(nil), value...)
	} else {
		s.ks.Put(key, newStrEntry(key, value))
	}
	w.Nil()
}

func doDel(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	if s.ks.Del(args[1]) {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doExpire(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	ttl, ok := str2int64(args[2])
	if !ok {
		w.Err(wire.ErrBadArg, "expect int64")
		return
	}
	ent, found := s.ks.Lookup(args[1])
	if found {
		s.ks.SetTTL(ent, ttl, nowMs)
	}
	if found {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doTTL(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	ent, ok := s.ks.Lookup(args[1])
	if !ok {
		w.Int(-2)
		return
	}
	w.Int(s.ks.TTLRemaining(ent, nowMs))
}

func doKeys(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	h := w.BeginArr()
	var n uint32
	s.ks.ForEach(func(key []byte, _ *Entry) bool {
		w.Str(key)
		n++
		return true
	})
	w.EndArr(h, n)
}

// expectZSet resolves key to its ZSet. A missing key is treated as an
// empty zset rather than an error; an existing key of the wrong type is
// a BAD_TYP error, reported via ok=false.
func expectZSet(s *Server, key []byte) (*Entry, bool) {
	ent, found := s.ks.Lookup(key)
	if !found {
		return nil, true
	}
	if ent.Type != typeZSet {
		return nil, false
	}
	return ent, true
}

func doZAdd(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	score, ok := str2dbl(args[2])
	if !ok {
		w.Err(wire.ErrBadArg, "expected float value for the score")
		return
	}
	key, name := args[1], args[3]

	ent, found := s.ks.Lookup(key)
	if found {
		if ent.Type != typeZSet {
			w.Err(wire.ErrBadTyp, "expect zset")
			return
		}
	} else {
		ent = newZSetEntry(key)
		s.ks.Put(key, ent)
	}
	added := ent.ZSet.Insert(name, score)
	if added {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doZRem(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	ent, ok := expectZSet(s, args[1])
	if !ok {
		w.Err(wire.ErrBadTyp, "expect zset")
		return
	}
	if ent == nil {
		w.Int(0)
		return
	}
	if ent.ZSet.Delete(args[2]) {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doZScore(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	ent, ok := expectZSet(s, args[1])
	if !ok {
		w.Err(wire.ErrBadTyp, "expect zset")
		return
	}
	if ent == nil {
		w.Nil()
		return
	}
	score, found := ent.ZSet.Score(args[2])
	if !found {
		w.Nil()
		return
	}
	w.Dbl(score)
}

func doZQuery(s *Server, args [][]byte, w *wire.Writer, nowMs int64) {
	score, ok := str2dbl(args[2])
	if !ok {
		w.Err(wire.ErrBadArg, "expected float number")
		return
	}
	name := args[3]
	offset, ok1 := str2int64(args[4])
	limit, ok2 := str2int64(args[5])
	if !ok1 || !ok2 {
		w.Err(wire.ErrBadArg, "expect int")
		return
	}

	ent, ok := expectZSet(s, args[1])
	if !ok {
		w.Err(wire.ErrBadTyp, "expect zset")
		return
	}
	if limit <= 0 {
		w.Arr(0)
		return
	}
	if ent == nil {
		w.Arr(0)
		return
	}

	n := ent.ZSet.Offset(ent.ZSet.SeekGE(score, name), offset)
	h := w.BeginArr()
	var emitted uint32
	pairs := int64(0)
	for znode := n; znode != nil && pairs < limit; znode = ent.ZSet.Offset(znode, 1) {
		w.Str(znode.Name)
		w.Dbl(znode.Score)
		emitted += 2
		pairs++
	}
	w.EndArr(h, emitted)
}
