package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"knotstats/internal/server/services"
	"knotstats/internal/shared/config"
	"knotstats/internal/shared/logging"
	"knotstats/internal/shared/stats"
	"knotstats/internal/shared/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// cliOptions 全局命令行参数
type cliOptions struct {
	configFile string
	v          *viper.Viper
}

// newRootCmd 创建根命令，不带子命令时等同于 serve
func newRootCmd() *cobra.Command {
	opts := &cliOptions{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "knotstats",
		Short: "Knot Resolver 统计面板",
		Long: `knotstats 轮询 Knot Resolver 的 JSON 指标接口，在浏览器中以图表和表格展示，
并提供 hosts.local 静态解析文件的在线编辑。

配置按以下顺序覆盖：默认值、配置文件、KNOTSTATS_* 环境变量、命令行参数。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", config.DefaultConfigFile, "配置文件路径")
	flags.String("listen", "", "监听地址，例如 :5001")
	flags.String("stats-url", "", "Knot Resolver 指标地址")
	flags.Duration("stats-timeout", 0, "请求指标的超时时间")
	flags.String("hosts-file", "", "hosts.local 文件路径")
	flags.String("reload-method", "", "重新加载方式: command, systemd, none")
	flags.String("database", "", "SQLite 数据库路径")
	flags.String("log-level", "", "日志级别: debug, info, warn, error")
	flags.String("log-format", "", "日志格式: color, plain, json")
	flags.String("mode", "", "gin 运行模式: release, debug, test")

	for _, name := range []string{"listen", "stats-url", "stats-timeout", "hosts-file", "reload-method", "database", "log-level", "log-format", "mode"} {
		_ = opts.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newHostsCmd(opts),
		newConfigCmd(opts),
		newHashPasswordCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig 加载配置文件并应用环境变量和命令行覆盖
func (o *cliOptions) loadConfig(cmd *cobra.Command) (*config.ServerConfig, string, error) {
	explicit := cmd.Flags().Changed("config")
	path, err := config.ResolveConfigPath(o.configFile, explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyOverrides(cfg, o.v)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("配置无效: %w", err)
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动面板HTTP服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func newCheckCmd(opts *cliOptions) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "请求一次指标并打印格式化结果",
		Long: `请求一次 Knot Resolver 指标，按面板相同的规则汇总和格式化后输出。
用于确认指标地址可达以及数据格式正确。

示例:
  knotstats check
  knotstats check --instance kresd1
  knotstats check --stats-url http://127.0.0.1:8453/metrics/json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			proxy := services.NewStatsProxyService(cfg, nil)
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Resolver.Timeout+time.Second)
			defer cancel()

			view, err := proxy.View(ctx, instance)
			if err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", stats.AllInstances, "要显示的实例，All 表示汇总")
	return cmd
}

func newHostsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "打印 hosts.local 中的记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			list, err := services.NewHostsService(cfg.Hosts.Path, nil, nil, nil).List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list.Message != "" {
				fmt.Fprintln(out, "#", list.Message)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, e := range list.Hosts {
				fmt.Fprintf(w, "%s\t%s\n", e.IP, e.Hostname)
			}
			return w.Flush()
		},
	}
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "打印生效的配置，或写入配置文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			if writePath != "" {
				if err := config.SaveServerConfig(cfg, writePath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "配置已写入", writePath)
				return nil
			}

			if path != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "# 配置文件:", path)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("序列化配置失败: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&writePath, "write", "", "把生效的配置写入指定文件")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "生成 auth.password_hash 使用的 bcrypt 哈希",
		Long: `生成 bcrypt 哈希，填入配置文件的 auth.password_hash 即可为 hosts 写操作启用基本认证。
未给出参数时从标准输入读取一行。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("读取密码失败: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("密码不能为空")
			}

			hash, err := utils.HashPassword(password)
			if err != nil {
				return fmt.Errorf("密码哈希失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built at %s, %s %s/%s)\n",
				AppName, version, buildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// printView 以文本形式输出统计视图
func printView(out io.Writer, view *stats.View) {
	fmt.Fprintln(out, view.Title)
	fmt.Fprintln(out, "实例:", strings.Join(view.Instances, ", "))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, section := range view.Sections {
		fmt.Fprintf(w, "\n[%s]\n", section.Title)
		for _, card := range section.Cards {
			fmt.Fprintf(w, "  %s\t%s\n", card.Label, card.Value)
		}
	}
	w.Flush()

	for _, chart := range view.Charts {
		parts := make([]string, len(chart.Labels))
		for i, label := range chart.Labels {
			parts[i] = fmt.Sprintf("%s=%s", label, stats.FormatCount(chart.Data[i]))
		}
		fmt.Fprintf(out, "%s: %s\n", chart.Title, strings.Join(parts, " "))
	}
}
