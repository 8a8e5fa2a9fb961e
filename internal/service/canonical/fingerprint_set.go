package canonical

// FingerprintSet 指纹到规范题目 ID 的映射，用于精确去重
//
// 非并发安全，只在单次合并的匹配阶段内使用。
type FingerprintSet struct {
	ids map[string]string
}

// NewFingerprintSet 创建指纹集合
func NewFingerprintSet(capacity int) *FingerprintSet {
	return &FingerprintSet{ids: make(map[string]string, capacity)}
}

// Lookup 返回指纹对应的规范题目 ID
func (s *FingerprintSet) Lookup(fp string) (string, bool) {
	id, ok := s.ids[fp]
	return id, ok
}

// Add 记录指纹，已存在时保留最早的题目，返回是否新增
func (s *FingerprintSet) Add(fp, id string) bool {
	if _, ok := s.ids[fp]; ok {
		return false
	}
	s.ids[fp] = id
	return true
}

// Len 指纹数量
func (s *FingerprintSet) Len() int {
	return len(s.ids)
}
