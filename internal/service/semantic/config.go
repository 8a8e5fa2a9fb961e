package semantic

import "fmt"

// Config 语义去重配置
type Config struct {
	// Threshold 判定重复的最低相似度，取值 80-100
	Threshold int

	// SampleCap 每道候选题最多比对的已有题目数量，控制单次上传的模型调用上限
	SampleCap int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Threshold: 95,
		SampleCap: 50,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.Threshold < 80 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be between 80 and 100 (got %d)", c.Threshold)
	}
	if c.SampleCap < 1 {
		return fmt.Errorf("sample cap must be positive (got %d)", c.SampleCap)
	}
	return nil
}
