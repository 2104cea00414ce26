// Package payoff 提供期权类型、到期内在价值以及到期损益（含权利金/多空方向）的计算。
package payoff

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidKind 期权类型不在 {call, put} 之内。
var ErrInvalidKind = errors.New("invalid option kind")

// Kind 期权类型，只有 call/put 两种。
type Kind string

const (
	Call Kind = "call"
	Put  Kind = "put"
)

// ValidationError 描述无法识别的期权类型输入。
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q (want call or put)", ErrInvalidKind, e.Input)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidKind }

// ParseKind 解析期权类型，大小写不敏感，兼容 c/p 与 ce/pe 写法。
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	default:
		return "", &ValidationError{Input: s}
	}
}

// Valid 是否为受支持的期权类型。
func (k Kind) Valid() bool {
	return k == Call || k == Put
}

func (k Kind) String() string { return string(k) }

// UnmarshalText 允许在 YAML/JSON/CSV 中直接使用 "call"/"put"。
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalText 与 UnmarshalText 对应。
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, &ValidationError{Input: string(k)}
	}
	return []byte(k), nil
}

// Intrinsic 到期内在价值：call=max(s-k,0)，put=max(k-s,0)。
// 未知类型返回 0，调用方应先校验 Kind。
func Intrinsic(kind Kind, s, k float64) float64 {
	switch kind {
	case Call:
		return math.Max(s-k, 0)
	case Put:
		return math.Max(k-s, 0)
	default:
		return 0
	}
}

// PnL 到期损益：position * (内在价值 - 权利金)。
// position: +1 多头，-1 空头。
func PnL(kind Kind, sT, strike, premium float64, position int) float64 {
	return float64(position) * (Intrinsic(kind, sT, strike) - premium)
}
