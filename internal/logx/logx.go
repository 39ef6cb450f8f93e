package logx

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 控制日志输出形式。
type Options struct {
	JSON    bool      // 结构化 JSON（便于机器消费）；否则为控制台格式
	Verbose bool      // debug 级别；否则 info
	Writer  io.Writer // 为 nil 时写 stderr（stdout 留给 report）
}

// New 构建 *zap.SugaredLogger。
//
// 日志永远不写 stdout：stdout 只承载 RunReport JSON。
func New(opts Options) *zap.SugaredLogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.CallerKey = zapcore.OmitKey
		cfg.StacktraceKey = zapcore.OmitKey
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core).Sugar()
}

// Nop 返回丢弃所有输出的 logger。
func Nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }
