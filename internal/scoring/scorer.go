package scoring

import (
	"strings"
)

// Input 打分输入：从邮件原文提取的特征
type Input struct {
	FromAddr  string
	Domain    string
	Subject   string
	Body      string
	URLsCount int
}

// Scorer 钓鱼风险打分器
//
// 上游分析管线是可替换的：这里只约定 0..100 的评分接口，
// 默认实现是一组朴素启发式，生产部署可接入外部分析服务。
type Scorer interface {
	Score(input Input) float64
}

// suspiciousKeywords 高频钓鱼话术关键词
var suspiciousKeywords = []string{
	"urgent",
	"verify",
	"verification",
	"suspended",
	"password",
	"payment",
	"invoice",
	"account locked",
	"click here",
	"confirm your",
	"security alert",
	"limited time",
}

// suspiciousTLDs 常被滥用的顶级域名
var suspiciousTLDs = []string{".xyz", ".top", ".icu", ".click", ".link"}

// HeuristicScorer 默认启发式打分器
type HeuristicScorer struct{}

// NewHeuristicScorer 创建默认打分器
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score 按关键词、链接密度与域名特征累加评分，上限 100。
func (s *HeuristicScorer) Score(input Input) float64 {
	var score float64

	subject := strings.ToLower(input.Subject)
	body := strings.ToLower(input.Body)
	for _, keyword := range suspiciousKeywords {
		if strings.Contains(subject, keyword) {
			score += 12
		} else if strings.Contains(body, keyword) {
			score += 5
		}
	}

	switch {
	case input.URLsCount >= 10:
		score += 25
	case input.URLsCount >= 5:
		score += 15
	case input.URLsCount >= 2:
		score += 8
	}

	domain := strings.ToLower(input.Domain)
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			score += 15
			break
		}
	}

	// 显示名与实际发件域不一致的常见伪装：地址里混入第二个@前缀
	if strings.Count(input.FromAddr, "@") > 1 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
