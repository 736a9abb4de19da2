package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv 从.env文件预加载环境变量，已存在的环境变量不会被覆盖
// 文件不存在时返回 false 且不报错
func LoadEnv(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("加载 %s 失败: %w", path, err)
	}
	return true, nil
}
