package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は記録の自由入力欄からHTMLタグを除去する。
// 出力はプレーンテキストで、&や'などの文字は入力どおりに残る。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、前後の空白を取り除いた文字列を返す。
// script・styleの中身は要素ごと除去される。
// StrictPolicyが付与する文字参照は元の文字に戻してから返す。
func (s *TextSanitizer) Clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// CleanOptional はnilを保ったままCleanを適用する。結果が空の場合はnilを返す。
func (s *TextSanitizer) CleanOptional(text *string) *string {
	if text == nil {
		return nil
	}
	cleaned := s.Clean(*text)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
