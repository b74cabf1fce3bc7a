// Package signer 实现 Backpack 要求的 Ed25519 请求签名协议。
//
// 服务端会以相同规则重新拼接待签名串，字段顺序与取值必须逐字节一致。
package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultWindow 为服务端接受的时间戳容差（毫秒）。
	DefaultWindow int64 = 5000

	HeaderAPIKey      = "X-API-Key"
	HeaderSignature   = "X-Signature"
	HeaderTimestamp   = "X-Timestamp"
	HeaderWindow      = "X-Window"
	HeaderContentType = "Content-Type"

	contentTypeJSON = "application/json; charset=utf-8"
)

// ErrInvalidKey 表示私钥材料缺失或格式错误。
var ErrInvalidKey = errors.New("signer: invalid private key")

// Headers 为单次请求的认证头集合。
type Headers map[string]string

// Signer 持有单个账户的密钥，签名过程无副作用。
type Signer struct {
	apiKey string
	key    ed25519.PrivateKey
	window int64
	now    func() time.Time
}

// New 根据 base64 编码的私钥构造签名器，支持 32 字节种子或 64 字节完整私钥。
func New(publicKey, privateKey string, window int64) (*Signer, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, fmt.Errorf("%w: 公钥为空", ErrInvalidKey)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: base64 解码失败: %v", ErrInvalidKey, err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("%w: 长度 %d 字节", ErrInvalidKey, len(raw))
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &Signer{
		apiKey: strings.TrimSpace(publicKey),
		key:    key,
		window: window,
		now:    time.Now,
	}, nil
}

// APIKey 返回账户公钥标识。
func (s *Signer) APIKey() string {
	return s.apiKey
}

// Window 返回签名有效窗口。
func (s *Signer) Window() int64 {
	return s.window
}

// Sign 对消息做 Ed25519 签名并返回 base64 结果。
func (s *Signer) Sign(message string) string {
	sig := ed25519.Sign(s.key, []byte(message))
	return base64.StdEncoding.EncodeToString(sig)
}

// Headers 以当前毫秒时间戳构造带签名的请求头。
func (s *Signer) Headers(params map[string]string, instruction string) Headers {
	return s.HeadersAt(params, instruction, s.now().UnixMilli())
}

// HeadersAt 使用指定时间戳构造请求头。
func (s *Signer) HeadersAt(params map[string]string, instruction string, timestamp int64) Headers {
	payload := Payload(instruction, params, timestamp, s.window)
	return Headers{
		HeaderAPIKey:      s.apiKey,
		HeaderSignature:   s.Sign(payload),
		HeaderTimestamp:   strconv.FormatInt(timestamp, 10),
		HeaderWindow:      strconv.FormatInt(s.window, 10),
		HeaderContentType: contentTypeJSON,
	}
}

// Payload 拼接待签名串：instruction 在前，参数按键名字典序，timestamp 与 window 固定殿后。
func Payload(instruction string, params map[string]string, timestamp, window int64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+3)
	if instruction != "" {
		parts = append(parts, "instruction="+instruction)
	}
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	parts = append(parts,
		"timestamp="+strconv.FormatInt(timestamp, 10),
		"window="+strconv.FormatInt(window, 10),
	)

	return strings.Join(parts, "&")
}
