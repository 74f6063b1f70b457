// Package json 封装 JSON 编解码。
// amd64/arm64 上使用 sonic，其余架构回退到 encoding/json。
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// Encoder 是 JSON 编码器接口。
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder 是 JSON 解码器接口。
type Decoder interface {
	Decode(v interface{}) error
}

var (
	// Marshal 将 v 编码为 JSON。
	Marshal func(v interface{}) ([]byte, error)
	// Unmarshal 将 JSON 解码到 v。
	Unmarshal func(data []byte, v interface{}) error
	// NewEncoder 创建写入 w 的编码器。
	NewEncoder func(w io.Writer) Encoder
	// NewDecoder 创建读取 r 的解码器。
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigStd
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// IsUsingSonic 返回当前是否使用 sonic。
func IsUsingSonic() bool {
	return usingSonic
}
