// Package protocol implements the length-prefixed wire protocol: a fixed
// 6-byte big-endian header (type, payload length) followed by a UTF-8
// JSON payload.
package protocol

import (
	"github.com/qianzhou/goso/internal/recommend"
	"github.com/qianzhou/goso/internal/search"
)

// MessageType identifies the payload schema of a frame.
type MessageType uint16

const (
	TypeRecommendRequest  MessageType = 0x0001
	TypeSearchRequest     MessageType = 0x0002
	TypeRecommendResponse MessageType = 0x1001
	TypeSearchResponse    MessageType = 0x1002
	TypeError             MessageType = 0x9001
)

// Known reports whether t is a recognized type code.
func (t MessageType) Known() bool {
	switch t {
	case TypeRecommendRequest, TypeSearchRequest,
		TypeRecommendResponse, TypeSearchResponse, TypeError:
		return true
	}
	return false
}

// RecommendRequest asks for up to K keyword candidates.
type RecommendRequest struct {
	Query     string `json:"query"`
	K         int    `json:"k"`
	Timestamp int64  `json:"timestamp"`
}

// SearchRequest asks for the TopN pages matching Query.
type SearchRequest struct {
	Query     string `json:"query"`
	TopN      int    `json:"topN"`
	Timestamp int64  `json:"timestamp"`
}

// RecommendResponse carries the ranked candidates for a query.
type RecommendResponse struct {
	Query      string                `json:"query"`
	Timestamp  int64                 `json:"timestamp"`
	Candidates []recommend.Candidate `json:"candidates"`
}

// SearchResponse carries the scored pages for a query.
type SearchResponse struct {
	Query     string          `json:"query"`
	Timestamp int64           `json:"timestamp"`
	Total     int             `json:"total"`
	Results   []search.Result `json:"results"`
}

// ErrorResponse reports a per-request failure; the connection stays open.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Timestamp int64  `json:"timestamp"`
}
