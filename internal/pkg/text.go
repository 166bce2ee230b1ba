package pkg

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 120

var ugcPolicy = bluemonday.UGCPolicy()

// Slugify 由名称生成 URL 友好的 slug：去掉重音符号，只保留小写字母数字，其余连续字符折叠为 "-"
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFKD.String(name) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			dash = false
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimSuffix(slug[:maxSlugLen], "-")
	}
	return slug
}

// SanitizeText 过滤用户内容中的危险 HTML。输出保持实体转义，前端按文本渲染
func SanitizeText(s string) string {
	return ugcPolicy.Sanitize(strings.TrimSpace(s))
}
