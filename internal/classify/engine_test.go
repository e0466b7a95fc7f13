package classify

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	e := New("photon-sol.tinyastro.io")
	cases := []struct {
		url  string
		want Category
	}{
		{"", Skip},
		{"   ", Skip},
		{"about:blank", Skip},
		{"chrome://settings", Skip},
		{"edge://newtab/", Skip},
		{"file:///C:/Users/me/doc.html", Skip},
		{"devtools://devtools/bundled/inspector.html", Skip},
		{"https://dexscreener.com/ethereum/0xabc", TokenCandidate},
		{"https://www.dexscreener.com/solana/xyz", TokenCandidate},
		{"http://gmgn.ai/sol/token/abc", TokenCandidate},
		{"https://x.com/someone", TokenCandidate},
		{"https://photon-sol.tinyastro.io/en/lp/abc", TokenCandidate},
		{"https://notdexscreener.com/ethereum/0xabc", PhishingCandidate},
		{"https://dexscreener.com.evil.io/", PhishingCandidate},
		{"https://example.com/login", PhishingCandidate},
	}
	for _, tc := range cases {
		if got := e.Classify(tc.url); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestTokenHostsNeverPhishing(t *testing.T) {
	e := New()
	schemes := []string{"http://", "https://", "ftp://", "ws://", "HTTPS://", ""}
	for _, host := range DefaultTokenHosts {
		for _, s := range schemes {
			u := s + host + "/path"
			if got := e.Classify(u); got == PhishingCandidate {
				t.Fatalf("Classify(%q) routed a token host to the phishing checker", u)
			}
		}
	}
}

func TestExtractTokenTarget(t *testing.T) {
	cases := []struct {
		url   string
		chain string
		ca    string
	}{
		{"https://dexscreener.com/ethereum/0xabc", "ethereum", "0xabc"},
		{"https://gmgn.ai/sol/token/So11111111111111111111111111111111111111112", "sol", "So11111111111111111111111111111111111111112"},
		{"https://birdeye.so/token/So11111111111111111111111111111111111111112?chain=solana", "solana", "So11111111111111111111111111111111111111112"},
		{"https://www.dextools.io/app/en/bnb/pair-explorer/0xdeadbeef", "bnb", "0xdeadbeef"},
		{"https://pump.fun/coin/7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", "solana", "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"},
		{"https://etherscan.io/token/0xdAC17F958D2ee523a2206206994597C13D831ec7", "ethereum", "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		{"https://bscscan.com/address/0x55d398326f99059ff775485246999027b3197955", "bsc", "0x55d398326f99059ff775485246999027b3197955"},
	}
	for _, tc := range cases {
		got, err := ExtractTokenTarget(tc.url)
		if err != nil {
			t.Fatalf("ExtractTokenTarget(%q): %v", tc.url, err)
		}
		if got.Chain != tc.chain || got.CA != tc.ca {
			t.Fatalf("ExtractTokenTarget(%q) = %+v, want %s/%s", tc.url, got, tc.chain, tc.ca)
		}
	}
}

func TestExtractTokenTargetRejects(t *testing.T) {
	for _, u := range []string{
		"https://x.com/elonmusk",
		"https://dexscreener.com/",
		"https://dexscreener.com/ethereum/not-an-address",
		"https://etherscan.io/tx/0xabc",
		"not a url",
	} {
		if _, err := ExtractTokenTarget(u); !errors.Is(err, ErrNoTokenTarget) {
			t.Fatalf("ExtractTokenTarget(%q) err = %v, want ErrNoTokenTarget", u, err)
		}
	}
}
