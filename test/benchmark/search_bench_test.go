// Package benchmark contains Go benchmarks for the codec, cache, and
// edit-distance hot paths, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/agnivade/levenshtein"

	"github.com/qianzhou/goso/internal/cache"
	"github.com/qianzhou/goso/internal/protocol"
)

// BenchmarkCodecEncode measures frame encoding throughput.
func BenchmarkCodecEncode(b *testing.B) {
	payload := []byte(`{"query":"北京 中国","topN":5,"timestamp":1700000000}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		encoded := protocol.Encode(protocol.Frame{Type: protocol.TypeSearchRequest, Payload: payload})
		_ = encoded
	}
}

// BenchmarkCodecDecode measures streaming decode over a buffer of many
// back-to-back frames.
func BenchmarkCodecDecode(b *testing.B) {
	frame := protocol.Encode(protocol.Frame{
		Type:    protocol.TypeSearchRequest,
		Payload: []byte(`{"query":"北京 中国","topN":5,"timestamp":1700000000}`),
	})
	var stream []byte
	for i := 0; i < 64; i++ {
		stream = append(stream, frame...)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		frames, _ := protocol.Decode(stream)
		_ = frames
	}
}

// BenchmarkLRUGet measures cache hit latency under a full cache.
func BenchmarkLRUGet(b *testing.B) {
	c, err := cache.New[string, int](1024)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 1024; i++ {
		c.Put(fmt.Sprintf("key-%d", i), i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key-512")
	}
}

// BenchmarkLRUGetParallel measures contention on the cache mutex.
func BenchmarkLRUGetParallel(b *testing.B) {
	c, err := cache.New[string, int](1024)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 1024; i++ {
		c.Put(fmt.Sprintf("key-%d", i), i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Get("key-256")
		}
	})
}

// BenchmarkEditDistance measures the rune-level Levenshtein kernel on
// CJK words.
func BenchmarkEditDistance(b *testing.B) {
	pairs := [][2]string{
		{"中国", "中央"},
		{"中华人民共和国", "中国"},
		{"recommendation", "recomendation"},
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]
		_ = levenshtein.ComputeDistance(p[0], p[1])
	}
}
