package safety

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"tabsentry/pkg/model"
)

// tokenQuery 构造 ?ca=&chain= 查询地址
func tokenQuery(base, ca, chain string) string {
	q := url.Values{}
	q.Set("ca", ca)
	q.Set("chain", chain)
	return base + "?" + q.Encode()
}

// TwitterReputation 查询代币关联推特账号声誉，无关联账号时返回 nil
func (s *Service) TwitterReputation(ctx context.Context, ca, chainName string) (*model.TwitterReputation, error) {
	chain, err := model.ParseChain(chainName)
	if err != nil {
		return nil, err
	}
	res, err := s.doJSON(ctx, http.MethodGet, tokenQuery(s.opts.TwitterURL, ca, chain.Name), nil)
	if err != nil {
		return nil, fmt.Errorf("twitter reputation: %w", err)
	}
	data := pick(res, "data", "result")
	if !data.Exists() {
		data = res
	}
	name := pick(data, "username", "screen_name").String()
	if name == "" {
		return nil, nil
	}
	rep := &model.TwitterReputation{
		Username:       name,
		InfluenceLevel: pick(data, "influence_level", "kol_level").String(),
		RenameCount:    int(data.Get("rename_count").Int()),
		Followers:      pick(data, "followers_count", "followers").Int(),
		Mentions:       pick(data, "mention_count", "mentions").Int(),
	}
	for _, n := range pick(data, "previous_names", "screen_names").Array() {
		rep.PreviousNames = append(rep.PreviousNames, n.String())
	}
	return rep, nil
}

// TokenMetadata 查询代币名称、符号与描述
func (s *Service) TokenMetadata(ctx context.Context, ca, chainName string) (model.TokenMetadata, error) {
	chain, err := model.ParseChain(chainName)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	res, err := s.doJSON(ctx, http.MethodGet, tokenQuery(s.opts.MetadataURL, ca, chain.Name), nil)
	if err != nil {
		return model.TokenMetadata{}, fmt.Errorf("token metadata: %w", err)
	}
	data := pick(res, "data", "result")
	if !data.Exists() {
		data = res
	}
	return model.TokenMetadata{
		Name:        data.Get("name").String(),
		Symbol:      data.Get("symbol").String(),
		Description: data.Get("description").String(),
	}, nil
}

// TokenAnalysisByToken 并发查询合约安全、推特声誉与元数据并合并
// 合约安全失败返回错误，其余两项失败只记录日志
func (s *Service) TokenAnalysisByToken(ctx context.Context, ca, chainName string) (model.TokenAnalysis, error) {
	chain, err := model.ParseChain(chainName)
	if err != nil {
		return model.TokenAnalysis{}, err
	}

	var (
		wg       sync.WaitGroup
		safety   model.TokenSafety
		safeErr  error
		twitter  *model.TwitterReputation
		meta     model.TokenMetadata
		metaErr  error
		tweetErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		safety, safeErr = s.CheckTokenSafety(ctx, ca, chain.Name)
	}()
	go func() {
		defer wg.Done()
		twitter, tweetErr = s.TwitterReputation(ctx, ca, chain.Name)
	}()
	go func() {
		defer wg.Done()
		meta, metaErr = s.TokenMetadata(ctx, ca, chain.Name)
	}()
	wg.Wait()

	if safeErr != nil {
		return model.TokenAnalysis{}, safeErr
	}
	if tweetErr != nil {
		s.log.Warn("推特声誉查询失败", "ca", ca, "chain", chain.Name, "error", tweetErr)
		twitter = nil
	}
	if metaErr != nil {
		s.log.Warn("代币元数据查询失败", "ca", ca, "chain", chain.Name, "error", metaErr)
	} else {
		if meta.Name != "" {
			safety.Name = meta.Name
		}
		if meta.Symbol != "" {
			safety.Symbol = meta.Symbol
		}
		safety.Description = meta.Description
	}

	return model.TokenAnalysis{
		TokenSafety: safety,
		Risky:       chain.Family.Assess(safety.Risks),
		Twitter:     twitter,
		Timestamp:   s.now().UnixMilli(),
	}, nil
}

// AnalyzeTokenPage 对代币页面做综合分析，结果按规范化页面地址缓存
func (s *Service) AnalyzeTokenPage(ctx context.Context, pageURL, chain, ca string) (model.TokenAnalysis, error) {
	key, err := NormalizeURL(pageURL)
	if err != nil {
		return model.TokenAnalysis{}, err
	}
	if cached, ok := s.tokens.Get(key); ok && s.fresh(cached.Timestamp) {
		s.log.Debug("命中代币缓存", "url", key)
		return cached, nil
	}

	a, err := s.TokenAnalysisByToken(ctx, ca, chain)
	if err != nil {
		return model.TokenAnalysis{}, err
	}
	a.PageURL = key
	if err := s.tokens.Set(key, a); err != nil {
		s.log.Err(err, "写入代币缓存失败", "url", key)
	}
	return a, nil
}

// ClearTokenCache 清空代币分析缓存
func (s *Service) ClearTokenCache() error {
	if err := s.tokens.Clear(); err != nil {
		return fmt.Errorf("clear token cache: %w", err)
	}
	return nil
}
