package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrUnknownChain = errors.New("unknown chain")

// ChainFamily 链族，决定四个风险槽位的含义
type ChainFamily int

const (
	FamilyEVM ChainFamily = iota
	FamilySolana
)

func (f ChainFamily) String() string {
	if f == FamilySolana {
		return "solana"
	}
	return "evm"
}

// SolanaHolderThreshold 前十持仓占比超过该百分比视为风险
const SolanaHolderThreshold = 10

// Chain 解析后的链信息
type Chain struct {
	Name       string
	Family     ChainFamily
	EVMChainID string
}

var evmChains = map[string]string{
	"ethereum":  "1",
	"bsc":       "56",
	"polygon":   "137",
	"arbitrum":  "42161",
	"optimism":  "10",
	"base":      "8453",
	"avalanche": "43114",
	"fantom":    "250",
	"linea":     "59144",
	"zksync":    "324",
	"blast":     "81457",
}

var chainAliases = map[string]string{
	"sol":   "solana",
	"eth":   "ethereum",
	"bnb":   "bsc",
	"matic": "polygon",
	"arb":   "arbitrum",
	"op":    "optimism",
	"avax":  "avalanche",
	"ftm":   "fantom",
}

// ParseChain 将链名称解析为封闭的链族变体
func ParseChain(name string) (Chain, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := chainAliases[n]; ok {
		n = alias
	}
	if n == "solana" {
		return Chain{Name: n, Family: FamilySolana}, nil
	}
	if id, ok := evmChains[n]; ok {
		return Chain{Name: n, Family: FamilyEVM, EVMChainID: id}, nil
	}
	// 未登记的非 Solana 链按 EVM 处理，链名直接作为接口路径段
	if !validChainSlug(n) {
		return Chain{}, fmt.Errorf("%w: %q", ErrUnknownChain, name)
	}
	return Chain{Name: n, Family: FamilyEVM, EVMChainID: n}, nil
}

func validChainSlug(n string) bool {
	if n == "" {
		return false
	}
	for _, r := range n {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// RiskSlot 风险槽位，布尔或百分比二选一
type RiskSlot struct {
	Flag      bool
	Percent   float64
	IsPercent bool
}

// BoolSlot 构造布尔槽位
func BoolSlot(b bool) RiskSlot { return RiskSlot{Flag: b} }

// PercentSlot 构造百分比槽位，保留两位小数
func PercentSlot(p float64) RiskSlot {
	return RiskSlot{Percent: math.Round(p*100) / 100, IsPercent: true}
}

func (s RiskSlot) MarshalJSON() ([]byte, error) {
	if s.IsPercent {
		return []byte(strconv.FormatFloat(s.Percent, 'f', -1, 64)), nil
	}
	return json.Marshal(s.Flag)
}

func (s *RiskSlot) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*s = BoolSlot(x)
	case float64:
		*s = PercentSlot(x)
	case nil:
		*s = RiskSlot{}
	default:
		return fmt.Errorf("unexpected risk slot value %s", string(b))
	}
	return nil
}

// Risks 四个风险槽位，含义由链族决定
type Risks struct {
	Risks1 RiskSlot `json:"risks1"`
	Risks2 RiskSlot `json:"risks2"`
	Risks3 RiskSlot `json:"risks3"`
	Risks4 RiskSlot `json:"risks4"`
}

// Assess 按链族解释槽位，返回命中的风险槽位名称
//
// EVM: risks1 自毁、risks2 貔貅、risks3 开源（为 false 才是风险）、risks4 所有权可篡改。
// Solana: risks1 前十持仓百分比（>=10 为风险）、risks2 可增发、risks3 默认冻结、risks4 可关闭或余额可改。
func (f ChainFamily) Assess(r Risks) []string {
	risky := make([]string, 0, 4)
	switch f {
	case FamilySolana:
		if r.Risks1.Percent >= SolanaHolderThreshold {
			risky = append(risky, "risks1")
		}
		if r.Risks2.Flag {
			risky = append(risky, "risks2")
		}
		if r.Risks3.Flag {
			risky = append(risky, "risks3")
		}
		if r.Risks4.Flag {
			risky = append(risky, "risks4")
		}
	default:
		if r.Risks1.Flag {
			risky = append(risky, "risks1")
		}
		if r.Risks2.Flag {
			risky = append(risky, "risks2")
		}
		if !r.Risks3.Flag {
			risky = append(risky, "risks3")
		}
		if r.Risks4.Flag {
			risky = append(risky, "risks4")
		}
	}
	return risky
}
