package hybridquery

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// cacheKey 构造查询结果缓存键：(案件, 策略, 规范化问题文本) 三元组。
// 文本取 sha1 避免键里出现任意用户输入；分类器是纯函数，
// 相同文本必得相同策略，键因此稳定。
func cacheKey(caseID string, strategy Strategy, text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
	sum := sha1.Sum([]byte(normalized))
	return fmt.Sprintf("query:%s:%s:%s", caseID, strategy, hex.EncodeToString(sum[:]))
}
