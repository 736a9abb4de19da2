package config

import (
	"runtime"
	"time"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppInfo 应用信息配置
type AppInfo struct {
	Name        string `env:"APP_NAME" envDefault:"askdb-api" json:"name"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0" json:"version"`
	BuildTime   string `env:"APP_BUILD_TIME" json:"build_time"`
	GitCommit   string `env:"APP_GIT_COMMIT" envDefault:"unknown" json:"git_commit"`
	GoVersion   string `json:"go_version"`
	Environment string `env:"APP_ENV" envDefault:"production" json:"environment"`
}

// DefaultAppInfo 返回默认的应用信息
func DefaultAppInfo() *AppInfo {
	return NewAppInfo("askdb-api", "0.1.0", "", "unknown", EnvDevelopment)
}

// NewAppInfo 创建新的应用信息
func NewAppInfo(name, version, buildTime, gitCommit, environment string) *AppInfo {
	if buildTime == "" {
		buildTime = time.Now().UTC().Format(time.RFC3339)
	}
	return &AppInfo{
		Name:        name,
		Version:     version,
		BuildTime:   buildTime,
		GitCommit:   gitCommit,
		GoVersion:   runtime.Version(),
		Environment: environment,
	}
}

// IsDevelopment 是否为开发环境
func (a *AppInfo) IsDevelopment() bool {
	return a.Environment == EnvDevelopment
}

// GetBuildInfo 获取构建信息
func (a *AppInfo) GetBuildInfo() map[string]any {
	return map[string]any{
		"name":        a.Name,
		"version":     a.Version,
		"build_time":  a.BuildTime,
		"git_commit":  a.GitCommit,
		"go_version":  a.GoVersion,
		"environment": a.Environment,
	}
}
