// Package canonical 题目规范化与指纹计算
//
// 规范化只处理抽取/OCR 引入的表面差异：全角与兼容字符、零宽字符、多余空白和大小写。
// 指纹覆盖规范化后的题干和按原顺序排列的全部选项，选项顺序不同视为不同题目。
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FingerprintVersion 指纹算法版本，规范化规则变化时递增
const FingerprintVersion = "v1"

// zeroWidth 抽取文本中常见的不可见字符
var zeroWidth = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
	"\u00ad", "",
)

// Canonicalize 返回文本的规范形式
func Canonicalize(s string) string {
	s = norm.NFKC.String(s)
	s = zeroWidth.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// Fingerprint 计算题目指纹，格式为 "<版本>:<sha256 hex>"
func Fingerprint(text string, choices []string) string {
	h := sha256.New()
	h.Write([]byte(FingerprintVersion))
	h.Write([]byte{0})
	h.Write([]byte(Canonicalize(text)))
	for _, c := range choices {
		h.Write([]byte{0})
		h.Write([]byte(Canonicalize(c)))
	}
	return FingerprintVersion + ":" + hex.EncodeToString(h.Sum(nil))
}
