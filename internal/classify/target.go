package classify

import (
	"errors"
	"net/url"
	"strings"
)

var ErrNoTokenTarget = errors.New("no token target in url")

// TokenTarget 从代币浏览器页面提取的链和合约地址
type TokenTarget struct {
	Chain string
	CA    string
}

// ExtractTokenTarget 从已知代币页面网址中提取链和合约地址
func ExtractTokenTarget(raw string) (TokenTarget, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return TokenTarget{}, ErrNoTokenTarget
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segs := splitPath(u.Path)

	var t TokenTarget
	switch {
	case matchHost(host, "dexscreener.com"):
		// /{chain}/{address}
		if len(segs) >= 2 {
			t = TokenTarget{Chain: segs[0], CA: segs[1]}
		}
	case matchHost(host, "gmgn.ai"):
		// /{chain}/token/{address}
		if len(segs) >= 3 && segs[1] == "token" {
			t = TokenTarget{Chain: segs[0], CA: segs[2]}
		}
	case matchHost(host, "birdeye.so"):
		// /token/{address}?chain={chain}
		if len(segs) >= 2 && segs[0] == "token" {
			chain := u.Query().Get("chain")
			if chain == "" {
				chain = "solana"
			}
			t = TokenTarget{Chain: chain, CA: segs[1]}
		}
	case matchHost(host, "dextools.io"):
		// /app/{lang}/{chain}/pair-explorer/{address}
		for i := 0; i+2 < len(segs); i++ {
			if segs[i+1] == "pair-explorer" {
				t = TokenTarget{Chain: segs[i], CA: segs[i+2]}
				break
			}
		}
	case matchHost(host, "pump.fun"):
		// /coin/{address} 或 /{address}
		if len(segs) >= 2 && segs[0] == "coin" {
			t = TokenTarget{Chain: "solana", CA: segs[1]}
		} else if len(segs) == 1 {
			t = TokenTarget{Chain: "solana", CA: segs[0]}
		}
	case matchHost(host, "etherscan.io"):
		t = explorerTarget(segs, "ethereum")
	case matchHost(host, "bscscan.com"):
		t = explorerTarget(segs, "bsc")
	case matchHost(host, "basescan.org"):
		t = explorerTarget(segs, "base")
	case matchHost(host, "solscan.io"):
		t = explorerTarget(segs, "solana")
	}

	if t.CA == "" || t.Chain == "" || !looksLikeAddress(t.CA) {
		return TokenTarget{}, ErrNoTokenTarget
	}
	t.Chain = strings.ToLower(t.Chain)
	return t, nil
}

// explorerTarget 处理 /token/{address} 与 /address/{address} 形式
func explorerTarget(segs []string, chain string) TokenTarget {
	if len(segs) >= 2 && (segs[0] == "token" || segs[0] == "address") {
		return TokenTarget{Chain: chain, CA: segs[1]}
	}
	return TokenTarget{}
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// looksLikeAddress EVM 的 0x 地址或 base58 形式的 Solana 地址
func looksLikeAddress(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return len(s) > 2 && isHex(s[2:])
	}
	if len(s) < 32 || len(s) > 48 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz", r) {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
