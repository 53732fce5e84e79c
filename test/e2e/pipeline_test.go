// Package e2e runs the full offline-build plus online-serving pipeline:
// corpus files in, framed TCP responses out.
package e2e

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qianzhou/goso/internal/artifact"
	"github.com/qianzhou/goso/internal/invindex"
	"github.com/qianzhou/goso/internal/lexicon"
	"github.com/qianzhou/goso/internal/protocol"
	"github.com/qianzhou/goso/internal/recommend"
	"github.com/qianzhou/goso/internal/search"
	"github.com/qianzhou/goso/internal/server"
	"github.com/qianzhou/goso/internal/tokenizer"
	"github.com/qianzhou/goso/internal/webpages"
	"github.com/qianzhou/goso/pkg/config"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <item>
    <title>北京报道</title>
    <link>http://example.com/beijing</link>
    <content:encoded><![CDATA[北京 是 中国 的 首都 北京 历史 悠久 文化 深厚]]></content:encoded>
  </item>
  <item>
    <title>北京报道转载</title>
    <link>http://mirror.example.com/beijing</link>
    <description>北京 是 中国 的 首都 北京 历史 悠久 文化 深厚</description>
  </item>
  <item>
    <title>上海报道</title>
    <link>http://example.com/shanghai</link>
    <description>上海 是 中国 经济 中心 城市 金融 贸易 发达</description>
  </item>
  <item>
    <title>广州报道</title>
    <link>http://example.com/guangzhou</link>
    <description>广州 美食 文化 丰富 早茶 点心 种类 繁多</description>
  </item>
</channel>
</rss>
`

type fixture struct {
	addr string
}

// buildFixture runs both offline builders into a temp data directory and
// starts a server over the artifacts.
func buildFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	xmlDir := filepath.Join(root, "xml")
	cnDir := filepath.Join(root, "cn")
	enDir := filepath.Join(root, "en")
	for _, dir := range []string{dataDir, xmlDir, cnDir, enDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	write := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(xmlDir, "feed.xml"), feedXML)
	write(filepath.Join(cnDir, "corpus.txt"), "中国 中央 中心 中国 中国 中央 北京 上海")
	write(filepath.Join(enDir, "corpus.txt"), "hello world hello search engine search")
	cnStopPath := filepath.Join(root, "stopwords_cn.txt")
	enStopPath := filepath.Join(root, "stopwords_en.txt")
	write(cnStopPath, "是\n的\n")
	write(enStopPath, "the\nand\n")

	cnStop, err := tokenizer.LoadStopWords(cnStopPath)
	if err != nil {
		t.Fatal(err)
	}
	enStop, err := tokenizer.LoadStopWords(enStopPath)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := tokenizer.New("", cnStop, enStop)
	if err != nil {
		t.Fatal(err)
	}

	builder := lexicon.NewBuilder(tok)
	if err := builder.BuildChinese(cnDir, dataDir); err != nil {
		t.Fatal(err)
	}
	if err := builder.BuildEnglish(enDir, dataDir); err != nil {
		t.Fatal(err)
	}

	pages, err := webpages.NewIngestor().IngestDir(xmlDir)
	if err != nil {
		t.Fatal(err)
	}
	fp := webpages.NewFingerprinter(tok.CutChinese, 10000)
	kept := webpages.Deduplicate(pages, fp, 3)
	if len(kept) != 3 {
		t.Fatalf("expected the mirrored page to be deduplicated, kept %d pages", len(kept))
	}
	if err := webpages.WriteArtifacts(dataDir, kept); err != nil {
		t.Fatal(err)
	}
	if err := invindex.WriteFile(dataDir, invindex.NewBuilder(tok.CutChinese).Build(kept)); err != nil {
		t.Fatal(err)
	}

	readers, err := artifact.Load(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := recommend.New(readers, config.RecommendConfig{
		MaxEditDistance:       3,
		DefaultK:              10,
		CacheSize:             64,
		EditDistanceCacheSize: 256,
	})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := search.New(readers, tok, config.SearchConfig{
		DefaultTopN:      5,
		MaxSummaryLength: 200,
		CacheSize:        64,
	}, nil, config.RedisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	pool := server.NewPool(2, 16, nil)
	reactor := server.NewReactor("127.0.0.1:0", pool, server.NewDispatcher(rec, eng, nil, nil), nil)
	if err := reactor.Listen(); err != nil {
		t.Fatal(err)
	}
	go reactor.Run()
	t.Cleanup(reactor.Stop)
	return &fixture{addr: reactor.Addr()}
}

func (f *fixture) roundTrip(t *testing.T, msgType protocol.MessageType, payload any) protocol.Frame {
	t.Helper()
	conn, err := net.Dial("tcp", f.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	data, err := protocol.EncodeJSON(msgType, payload)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		if frames, _ := protocol.Decode(buf); len(frames) > 0 {
			return frames[0]
		}
		n, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("reading response: %v", err)
		}
		buf = append(buf, chunk[:n]...)
	}
}

// TestPipelineRecommend verifies recommendations over artifacts built by
// the real pipeline.
func TestPipelineRecommend(t *testing.T) {
	f := buildFixture(t)
	frame := f.roundTrip(t, protocol.TypeRecommendRequest, protocol.RecommendRequest{
		Query:     "中国",
		K:         3,
		Timestamp: time.Now().Unix(),
	})
	if frame.Type != protocol.TypeRecommendResponse {
		t.Fatalf("expected 0x1001, got %#04x", uint16(frame.Type))
	}
	var resp protocol.RecommendResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Candidates) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if resp.Candidates[0].Word != "中国" || resp.Candidates[0].EditDistance != 0 {
		t.Errorf("unexpected top candidate: %+v", resp.Candidates[0])
	}
}

// TestPipelineSearch verifies page search end to end, including summary
// highlighting.
func TestPipelineSearch(t *testing.T) {
	f := buildFixture(t)
	frame := f.roundTrip(t, protocol.TypeSearchRequest, protocol.SearchRequest{
		Query:     "北京",
		TopN:      5,
		Timestamp: time.Now().Unix(),
	})
	if frame.Type != protocol.TypeSearchResponse {
		t.Fatalf("expected 0x1002, got %#04x", uint16(frame.Type))
	}
	var resp protocol.SearchResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected exactly the Beijing page, got %+v", resp)
	}
	r := resp.Results[0]
	if r.Title != "北京报道" || r.URL != "http://example.com/beijing" {
		t.Errorf("unexpected result fields: %+v", r)
	}
	if r.Score <= 0 || r.Score > 1+1e-9 {
		t.Errorf("score %f out of range", r.Score)
	}
}

// TestPipelineSearchIsolatedFailure verifies an unknown frame type is
// answered with an error frame carrying the offending type code.
func TestPipelineSearchIsolatedFailure(t *testing.T) {
	f := buildFixture(t)
	frame := f.roundTrip(t, protocol.TypeError, protocol.ErrorResponse{Error: "client-sent", Code: 1})
	if frame.Type != protocol.TypeError {
		t.Fatalf("expected 0x9001, got %#04x", uint16(frame.Type))
	}
	var resp protocol.ErrorResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != int(protocol.TypeError) {
		t.Errorf("expected echoed type code %d, got %d", int(protocol.TypeError), resp.Code)
	}
}
