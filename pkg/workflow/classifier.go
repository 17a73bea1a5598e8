package workflow

import "strings"

// FatalClassifier 判断远端错误是否属于已知不可自愈的类型
//
// 匹配基于错误文本关键词和错误码白名单。上游错误文本不是稳定契约，
// 所以两个名单都来自配置而不是写死在代码里。
type FatalClassifier struct {
	keywords []string
	codes    map[string]struct{}
}

// NewFatalClassifier 创建分类器
func NewFatalClassifier(keywords []string, codes []string) *FatalClassifier {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}

	codeSet := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code != "" {
			codeSet[code] = struct{}{}
		}
	}

	return &FatalClassifier{keywords: lowered, codes: codeSet}
}

// IsFatal 判断错误码或错误信息是否命中致命模式
// 错误码精确匹配，错误信息做大小写不敏感的子串匹配
func (c *FatalClassifier) IsFatal(errCode, errMsg string) bool {
	if errCode != "" {
		if _, ok := c.codes[errCode]; ok {
			return true
		}
	}

	if errMsg == "" {
		return false
	}

	lowered := strings.ToLower(errMsg)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}

	return false
}
