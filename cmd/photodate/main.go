package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/photodate/internal/app/run"
	"github.com/John-Robertt/photodate/internal/config"
	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/logx"
)

// errReported 表示错误已经以 report 形式输出过，main 只需要设置退出码。
var errReported = errors.New("已输出 report")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], stdTerminal())
	stop()
	os.Exit(code)
}

// terminal 汇集 CLI 的输出端；测试用 bytes.Buffer 替换。
type terminal struct {
	stdout io.Writer
	stderr io.Writer

	stdoutTTY bool
	stderrTTY bool
}

func stdTerminal() terminal {
	return terminal{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
	}
}

func execute(ctx context.Context, args []string, term terminal) int {
	cmd := newRootCmd(term)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(term.stderr, "参数错误：%v\n", err)
		}
		return 1
	}
	return 0
}

type rootOptions struct {
	date         string
	jsonDate     bool
	filenameDate bool
	mtimeDate    bool

	dryRun bool
	noExif bool

	logJSON bool
	verbose bool

	configFile string
}

func newRootCmd(term terminal) *cobra.Command {
	var (
		opts rootOptions
		log  *zap.SugaredLogger
	)

	cmd := &cobra.Command{
		Use:   "photodate [path]",
		Short: "根据文件名 / sidecar JSON / EXIF 修正照片的拍摄日期与修改时间",
		Long: `photodate 为照片确定拍摄日期，并写回 EXIF（DateTimeOriginal/DateTimeDigitized）
与文件修改时间。

日期来源（auto 模式按顺序回退）：
  exif      已有的 EXIF 日期
  json      Google Takeout 的 <file>.json（photoTakenTime.timestamp）
  filename  文件名中的日期（IMG-YYYYMMDD-WA…、Screenshot_YYYYMMDD-HHMMSS 等）
  mtime     文件当前的修改时间

path 可以是单个文件或目录（只处理目录下一层的图片）；省略时从 photodate.json 读取。

stdout 不是终端时只输出一个 RunReport JSON；日志写 stderr。`,
		Example: `  photodate ~/Pictures/takeout --dry-run
  photodate IMG-20210615-WA0002.jpg -f
  photodate ~/Pictures/scans -d "2004-08-01 12:00:00"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log = logx.New(logx.Options{JSON: opts.logJSON, Verbose: opts.verbose, Writer: term.stderr})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = log.Sync() }()
			return runRoot(cmd, args, opts, term, log)
		},
	}

	cmd.SetOut(term.stdout)
	cmd.SetErr(term.stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.date, "date", "d", "", `显式日期 "YYYY-MM-DD HH:MM:SS"（优先于所有强制开关）`)
	f.BoolVarP(&opts.jsonDate, "jsondate", "j", false, "强制从 sidecar JSON 读取（失败回退到 filename、mtime）")
	f.BoolVarP(&opts.filenameDate, "filenamedate", "f", false, "强制从文件名读取（失败回退到 mtime）")
	f.BoolVarP(&opts.mtimeDate, "modificationdate", "m", false, "强制使用当前修改时间")
	f.BoolVar(&opts.dryRun, "dry-run", false, "只解析并输出 report，不写入任何文件")
	f.BoolVar(&opts.noExif, "no-exif", false, "只设置文件时间，不写 EXIF")
	f.StringVar(&opts.configFile, "config", "", "显式指定配置文件")

	pf := cmd.PersistentFlags()
	pf.BoolVar(&opts.logJSON, "log-json", false, "日志输出为 JSON")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "输出 debug 日志")

	return cmd
}

func runRoot(cmd *cobra.Command, args []string, opts rootOptions, term terminal, log *zap.SugaredLogger) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "读取当前目录失败")
	}
	cwdAbs, _ := filepath.Abs(cwd)

	cli := config.CLIArgs{
		ConfigFile: opts.configFile,
		Date:       opts.date,
		Force: domain.ModeFlags{
			JSON:     opts.jsonDate,
			Filename: opts.filenameDate,
			Mtime:    opts.mtimeDate,
		},
		DryRun:    opts.dryRun,
		DryRunSet: cmd.Flags().Changed("dry-run"),
		NoExif:    opts.noExif,
		NoExifSet: cmd.Flags().Changed("no-exif"),
	}
	if len(args) > 0 {
		cli.Path = args[0]
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		log.Errorw("加载配置失败", "error", err)
		emitReport(term, reportForConfigError(cwdAbs, cli, err))
		return errReported
	}
	for _, w := range eff.Warnings {
		log.Warnw(w)
	}
	if eff.ConfigFile != "" {
		log.Debugw("使用配置文件", "config", eff.ConfigFile)
	}

	var obs run.Observer
	if term.stderrTTY && eff.IsDir {
		obs = newProgressUI(term.stderr)
	}

	rr := run.Execute(cmd.Context(), eff, run.Deps{Log: log}, obs)
	emitReport(term, rr)
	return nil
}

func emitReport(term terminal, rr domain.RunReport) {
	if term.stdoutTTY {
		fmt.Fprintf(term.stdout, "完成：processed=%d skipped=%d failed=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
		)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.File
			if key == "" {
				key = "<unknown>"
			}
			fmt.Fprintf(term.stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(term.stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(term.stderr, "完成：processed=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
}

func reportForConfigError(cwdAbs string, cli config.CLIArgs, err error) domain.RunReport {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrorCode(err)
	}
	path := cwdAbs
	if cli.Path != "" {
		path = cli.Path
	}

	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       path,
		DryRun:     cli.DryRunSet && cli.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
