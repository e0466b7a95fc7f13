package safety

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tabsentry/pkg/model"

	"github.com/tidwall/gjson"
)

// riskMapper 按链族构造请求地址并映射四个风险槽位
type riskMapper interface {
	endpoint(o Options, c model.Chain, ca string) string
	mapRisks(item gjson.Result) model.Risks
}

var mappers = map[model.ChainFamily]riskMapper{
	model.FamilyEVM:    evmMapper{},
	model.FamilySolana: solanaMapper{},
}

type evmMapper struct{}

func (evmMapper) endpoint(o Options, c model.Chain, ca string) string {
	return strings.TrimRight(o.EVMTokenURL, "/") + "/" + c.EVMChainID +
		"?contract_addresses=" + url.QueryEscape(ca)
}

func (evmMapper) mapRisks(item gjson.Result) model.Risks { return MapEVMRisks(item) }

type solanaMapper struct{}

func (solanaMapper) endpoint(o Options, _ model.Chain, ca string) string {
	return o.SolanaTokenURL + "?contract_addresses=" + url.QueryEscape(ca)
}

func (solanaMapper) mapRisks(item gjson.Result) model.Risks { return MapSolanaRisks(item) }

// MapEVMRisks 映射 EVM 合约检测结果：
// risks1 自毁，risks2 貔貅，risks3 开源，risks4 可改余额或可收回/隐藏所有权
func MapEVMRisks(item gjson.Result) model.Risks {
	return model.Risks{
		Risks1: model.BoolSlot(truthy(item.Get("selfdestruct"))),
		Risks2: model.BoolSlot(truthy(item.Get("is_honeypot"))),
		Risks3: model.BoolSlot(truthy(item.Get("is_open_source"))),
		Risks4: model.BoolSlot(truthy(item.Get("owner_change_balance")) ||
			truthy(item.Get("can_take_back_ownership")) ||
			truthy(item.Get("hidden_owner"))),
	}
}

// MapSolanaRisks 映射 Solana 代币检测结果：
// risks1 前十持仓占比（百分数），risks2 可增发，risks3 默认冻结账户，risks4 可关闭或余额可变
func MapSolanaRisks(item gjson.Result) model.Risks {
	return model.Risks{
		Risks1: model.PercentSlot(topHoldersPercent(item) * 100),
		Risks2: model.BoolSlot(truthy(pick(item, "is_mintable", "mintable"))),
		Risks3: model.BoolSlot(item.Get("default_account_state").String() == "1"),
		Risks4: model.BoolSlot(truthy(item.Get("closable")) ||
			truthy(pick(item, "balance_mutable", "balance_mutable_authority"))),
	}
}

// topHoldersPercent 优先使用汇总字段，否则累加前十持仓比例
func topHoldersPercent(item gjson.Result) float64 {
	if v := item.Get("top_holders_percent"); v.Exists() {
		return v.Float()
	}
	total := 0.0
	for i, h := range item.Get("holders").Array() {
		if i >= model.SolanaHolderThreshold {
			break
		}
		total += h.Get("percent").Float()
	}
	return total
}

// tokenItem 从 {result: {addr: {...}}} 中取出目标合约的条目，地址比较忽略大小写
func tokenItem(res gjson.Result, ca string) (gjson.Result, error) {
	result := pick(res, "result", "data")
	if !result.Exists() || !result.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: response has no result", ErrBackend)
	}
	var found gjson.Result
	result.ForEach(func(k, v gjson.Result) bool {
		if strings.EqualFold(k.String(), ca) {
			found = v
			return false
		}
		return true
	})
	if !found.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: no result for %s", ErrBackend, ca)
	}
	return found, nil
}

// CheckTokenSafety 检测代币合约风险
func (s *Service) CheckTokenSafety(ctx context.Context, ca, chainName string) (model.TokenSafety, error) {
	ca = strings.TrimSpace(ca)
	if ca == "" {
		return model.TokenSafety{}, fmt.Errorf("contract address is required")
	}
	chain, err := model.ParseChain(chainName)
	if err != nil {
		return model.TokenSafety{}, err
	}
	m := mappers[chain.Family]

	res, err := s.doJSON(ctx, http.MethodGet, m.endpoint(s.opts, chain, ca), nil)
	if err != nil {
		return model.TokenSafety{}, fmt.Errorf("token safety %s/%s: %w", chain.Name, ca, err)
	}
	item, err := tokenItem(res, ca)
	if err != nil {
		return model.TokenSafety{}, fmt.Errorf("token safety %s/%s: %w", chain.Name, ca, err)
	}

	ts := model.TokenSafety{
		Chain: chain.Name,
		CA:    ca,
		Risks: m.mapRisks(item),
		TokenMetadata: model.TokenMetadata{
			Name:   pick(item, "token_name", "metadata.name").String(),
			Symbol: pick(item, "token_symbol", "metadata.symbol").String(),
		},
	}
	s.log.Debug("代币检测完成", "chain", chain.Name, "ca", ca, "risky", chain.Family.Assess(ts.Risks))
	return ts, nil
}
