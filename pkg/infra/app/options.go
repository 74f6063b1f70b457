package app

import "github.com/kart-io/docqa/pkg/app/cliflag"

// CliOptions 由应用的命令行配置实现。
type CliOptions interface {
	// Flags 按分组返回参数。
	Flags() cliflag.NamedFlagSets
	// Complete 补全默认值。
	Complete() error
	// Validate 校验配置。
	Validate() error
}
