// Package app 基于 cobra、viper、pflag 构建命令行应用。
//
// 配置优先级：命令行参数 > 环境变量 > 配置文件 > 默认值。
// 配置文件依次在 ., ./configs, ~/.<name>, /etc/<name> 中查找 <name>.yaml，
// 环境变量前缀为大写的应用名（'-' 换成 '_'），如 DOCQA_HTTP_ADDR。
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kart-io/docqa/pkg/app/cliflag"
)

// RunFunc 应用主函数。
type RunFunc func() error

// Option 配置 App。
type Option func(*App)

// App 命令行应用。
type App struct {
	name        string
	description string
	options     CliOptions
	runFunc     RunFunc
	noConfig    bool
	cmd         *cobra.Command
}

func WithName(name string) Option { return func(a *App) { a.name = name } }

func WithDescription(desc string) Option { return func(a *App) { a.description = desc } }

func WithOptions(opts CliOptions) Option { return func(a *App) { a.options = opts } }

func WithRunFunc(run RunFunc) Option { return func(a *App) { a.runFunc = run } }

// WithNoConfig 不读取配置文件与环境变量。
func WithNoConfig() Option { return func(a *App) { a.noConfig = true } }

// NewApp 创建应用。
func NewApp(opts ...Option) *App {
	a := &App{name: filepath.Base(os.Args[0])}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        strings.SplitN(a.description, "\n", 2)[0],
		Long:         a.description,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         a.runCommand,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = false

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	global := fss.FlagSet("global")
	if !a.noConfig {
		global.StringP("config", "c", "", "Path to the configuration file.")
	}
	version.AddFlags(global)
	global.BoolP("help", "h", false, "Help for "+a.name+".")

	for _, name := range fss.Order {
		cmd.Flags().AddFlagSet(fss.FlagSets[name])
	}

	cmd.SetUsageFunc(func(c *cobra.Command) error {
		fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s [flags]\n", c.CommandPath())
		cliflag.PrintSections(c.OutOrStderr(), fss, 100)
		return nil
	})
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		fmt.Fprintf(c.OutOrStdout(), "%s\n\nUsage:\n  %s [flags]\n", c.Long, c.CommandPath())
		cliflag.PrintSections(c.OutOrStdout(), fss, 100)
	})

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	version.PrintAndExitIfRequested()

	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc()
	}
	return nil
}

func (a *App) loadConfig(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(a.name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, "."+a.name))
		}
		viper.AddConfigPath("/etc/" + a.name)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !asNotFound(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	expandEnvVars(viper.GetViper())

	viper.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// 命令行显式设置的参数优先，反序列化后重新应用。
	changed := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			changed[f.Name] = strings.Join(sv.GetSlice(), ",")
			return
		}
		changed[f.Name] = f.Value.String()
	})

	if err := viper.Unmarshal(a.options); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	for name, val := range changed {
		f := cmd.Flags().Lookup(name)
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if err := sv.Replace(strings.Split(val, ",")); err != nil {
				return fmt.Errorf("re-apply flag %s: %w", name, err)
			}
			continue
		}
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars 展开配置值中的 ${VAR}，未设置的变量保持原样。
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "${") {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(s, func(m string) string {
			if val, ok := os.LookupEnv(m[2 : len(m)-1]); ok {
				return val
			}
			return m
		})
		if expanded != s {
			v.Set(key, expanded)
		}
	}
}

// Run 执行命令，出错时以状态码 1 退出。
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command 返回底层 cobra 命令。
func (a *App) Command() *cobra.Command { return a.cmd }

// GetVersion 返回构建版本号。
func GetVersion() string { return version.Get().GitVersion }
