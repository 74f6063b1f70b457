// Package id 生成会话 ID 与请求 ID。
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionPrefix 由服务端生成的会话 ID 前缀。
const SessionPrefix = "api_session_"

// NewSessionID 生成形如 api_session_20240102_150405_1a2b3c4d 的会话 ID。
// 时间部分使用 now 的本地时间，后缀取 UUIDv4 的前 8 位。
func NewSessionID(now time.Time) string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")
	return SessionPrefix + now.Format("20060102_150405") + "_" + u[:8]
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID 生成按时间单调递增的 ULID。
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
