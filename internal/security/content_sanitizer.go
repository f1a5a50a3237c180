// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はゲートウェイから受け取った配信説明文をサニタイズし、
// 画面に埋め込める安全なHTMLに変換する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// urlPattern は説明文中のURL。プレーンテキストの説明文をリンク化する際に使う。
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// ContentSanitizer はHTMLコンテンツのサニタイズ機能を提供する。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, strong, em
//   - aタグ: href属性のみ許可、target="_blank" と rel="noreferrer" を自動付与
//   - 上記以外のタグと全てのon*イベント属性は除去
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &ContentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// Description は配信説明文を表示用HTMLに変換する。
// YouTubeの説明文はプレーンテキストのため、エスケープした上で改行を<br>に、URLをリンクに変換してからサニタイズする。
func (s *ContentSanitizer) Description(raw string) template.HTML {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	escaped := html.EscapeString(strings.ReplaceAll(raw, "\r\n", "\n"))
	linked := urlPattern.ReplaceAllStringFunc(escaped, func(u string) string {
		return `<a href="` + u + `">` + u + `</a>`
	})
	withBreaks := strings.ReplaceAll(linked, "\n", "<br>")
	return template.HTML(s.policy.Sanitize(withBreaks))
}
