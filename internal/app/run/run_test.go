package run

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/John-Robertt/photodate/internal/config"
	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/infra/fsx"
	"github.com/John-Robertt/photodate/internal/infra/imgx"
	"github.com/John-Robertt/photodate/internal/resolve"
)

var oldMtime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func dirConfig(root string) config.EffectiveConfig {
	return config.EffectiveConfig{
		Path:       root,
		IsDir:      true,
		Mode:       domain.ModeAuto,
		Extensions: config.DefaultExtensions,
	}
}

func utcDeps() Deps { return Deps{Location: time.UTC} }

func TestExecute_AutoPrefersSidecarOverFilename(t *testing.T) {
	root := t.TempDir()
	p := writeJPEG(t, root, "IMG-20210615-WA0002.jpg")
	writeFile(t, p+".json", `{"photoTakenTime":{"timestamp":"1609459200"}}`)

	rr := Execute(context.Background(), dirConfig(root), utcDeps(), nil)

	require.Len(t, rr.Items, 1, "sidecar 不应被当作输入：%+v", rr.Items)
	it := rr.Items[0]
	assert.Equal(t, domain.StatusProcessed, it.Status, "%+v", it)
	assert.Equal(t, domain.SourceJSON, it.Source)
	assert.Equal(t, "2021-01-01 00:00:00", it.Timestamp.String())
	assert.Equal(t, domain.SinkWritten, it.Exif)
	assert.Equal(t, domain.SinkWritten, it.Mtime)

	ts, found, err := imgx.ReadDate(p)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2021-01-01 00:00:00", ts.String())

	mt, err := fsx.ModTime(p)
	require.NoError(t, err)
	assert.True(t, mt.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)), "mtime=%v", mt)
}

func TestExecute_VerboseLogsFileTimes(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, root, "a.jpg")

	core, logs := observer.New(zapcore.DebugLevel)
	deps := utcDeps()
	deps.Log = zap.New(core).Sugar()
	eff := dirConfig(root)
	eff.DryRun = true

	Execute(context.Background(), eff, deps, nil)

	entries := logs.FilterMessage("文件现状").All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, zapcore.DebugLevel, e.Level)
	fields := e.ContextMap()
	assert.Equal(t, "a.jpg", fields["file"])
	mt, ok := fields["mtime"].(time.Time)
	require.True(t, ok, "mtime 字段类型：%T", fields["mtime"])
	assert.True(t, mt.Equal(oldMtime), "mtime 期望 %v，实际 %v", oldMtime, mt)
	// atime 会被前面的 EXIF 读取更新（relatime），只检查字段存在。
	assert.Contains(t, fields, "atime")
	assert.Contains(t, fields, "birthtime")
}

func TestExecute_ExplicitWins(t *testing.T) {
	root := t.TempDir()
	p := writeJPEG(t, root, "IMG-20210615-WA0002.jpg")
	writeFile(t, p+".json", `{"photoTakenTime":{"timestamp":"1609459200"}}`)

	explicit, err := domain.ParseTimestamp("1999-12-31 23:59:59")
	require.NoError(t, err)
	eff := dirConfig(root)
	eff.Mode = domain.ModeExplicit
	eff.Explicit = &explicit

	rr := Execute(context.Background(), eff, utcDeps(), nil)
	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.SourceExplicit, rr.Items[0].Source)
	assert.Equal(t, "1999-12-31 23:59:59", rr.Items[0].Timestamp.String())

	ts, _, err := imgx.ReadDate(p)
	require.NoError(t, err)
	assert.True(t, ts.Equal(explicit))
}

func TestExecute_SecondRunSkipsCorrectFiles(t *testing.T) {
	root := t.TempDir()
	p := writeJPEG(t, root, "20210615_143055_img.jpg")

	first := Execute(context.Background(), dirConfig(root), utcDeps(), nil)
	require.Equal(t, 1, first.Summary.Processed, "%+v", first.Items)
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	// 第二次：EXIF 已有日期，auto 模式直接命中 exif 来源。
	second := Execute(context.Background(), dirConfig(root), utcDeps(), nil)
	require.Len(t, second.Items, 1)
	it := second.Items[0]
	assert.Equal(t, domain.StatusSkipped, it.Status, "%+v", it)
	assert.Equal(t, domain.SourceExif, it.Source)
	assert.Equal(t, "2021-06-15 14:30:55", it.Timestamp.String())
	assert.Equal(t, domain.SinkUnchanged, it.Exif)
	assert.Equal(t, domain.SinkUnchanged, it.Mtime)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, before, after, "跳过时文件内容不应改变")
}

func TestExecute_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	p := writeJPEG(t, root, "Screenshot_20210615-143055.jpg")
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	eff := dirConfig(root)
	eff.DryRun = true
	rr := Execute(context.Background(), eff, utcDeps(), nil)

	require.Len(t, rr.Items, 1)
	it := rr.Items[0]
	assert.True(t, rr.DryRun)
	assert.Equal(t, domain.StatusProcessed, it.Status)
	assert.Equal(t, domain.SinkPlanned, it.Exif)
	assert.Equal(t, domain.SinkPlanned, it.Mtime)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	mt, err := fsx.ModTime(p)
	require.NoError(t, err)
	assert.True(t, mt.Equal(oldMtime), "dry-run 不应修改 mtime：%v", mt)
}

func TestExecute_NoExifOnlySetsMtime(t *testing.T) {
	root := t.TempDir()
	p := writeJPEG(t, root, "2019-12-24 18.05.33.jpg")
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	eff := dirConfig(root)
	eff.NoExif = true
	rr := Execute(context.Background(), eff, utcDeps(), nil)

	require.Len(t, rr.Items, 1)
	it := rr.Items[0]
	assert.Equal(t, domain.StatusProcessed, it.Status)
	assert.Equal(t, domain.SinkDisabled, it.Exif)
	assert.Equal(t, domain.SinkWritten, it.Mtime)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, before, after, "--no-exif 不应改动文件内容")
	mt, err := fsx.ModTime(p)
	require.NoError(t, err)
	assert.True(t, mt.Equal(time.Date(2019, 12, 24, 18, 5, 33, 0, time.UTC)), "mtime=%v", mt)
}

func TestExecute_NonJPEGSingleFileIsUntouched(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "Screenshot_20210615-143055.png")
	writeFile(t, p, "not a real png")
	require.NoError(t, os.Chtimes(p, oldMtime, oldMtime))

	eff := config.EffectiveConfig{Path: p, Mode: domain.ModeAuto}
	rr := Execute(context.Background(), eff, utcDeps(), nil)

	require.Len(t, rr.Items, 1)
	it := rr.Items[0]
	assert.Equal(t, domain.StatusSkipped, it.Status, "%+v", it)
	assert.Equal(t, domain.SinkUnsupported, it.Exif)
	assert.Equal(t, domain.SinkUnsupported, it.Mtime)
	assert.Empty(t, it.Source, "不应尝试解析")
	assert.Empty(t, it.Attempts, "不应尝试解析")
	assert.True(t, it.Timestamp.IsZero())

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "not a real png", string(b))
	mt, err := fsx.ModTime(p)
	require.NoError(t, err)
	assert.True(t, mt.Equal(oldMtime), "mtime 不应改变：%v", mt)
}

func TestExecute_OneFailureDoesNotStopBatch(t *testing.T) {
	root := t.TempDir()
	bad := writeJPEG(t, root, "a.jpg")
	_ = writeJPEG(t, root, "b.jpg")

	deps := utcDeps()
	deps.WriteExif = func(path string, ts domain.Timestamp) error {
		if path == bad {
			return errors.New("disk full")
		}
		return imgx.WriteDate(path, ts)
	}
	rr := Execute(context.Background(), dirConfig(root), deps, nil)

	require.Len(t, rr.Items, 2)
	assert.Equal(t, domain.StatusFailed, rr.Items[0].Status)
	assert.Equal(t, domain.ErrCodeExifWriteFailed, rr.Items[0].ErrorCode)
	assert.Equal(t, domain.SinkFailed, rr.Items[0].Exif)
	assert.Equal(t, domain.SinkWritten, rr.Items[0].Mtime, "EXIF 失败后 mtime 仍应修正")
	assert.Equal(t, domain.StatusProcessed, rr.Items[1].Status)
	assert.Equal(t, domain.SourceMtime, rr.Items[1].Source)
	assert.Equal(t, domain.ReportSummary{Processed: 1, Failed: 1}, rr.Summary)
}

func TestExecute_MtimeWriteFailure(t *testing.T) {
	root := t.TempDir()
	_ = writeJPEG(t, root, "20210615_143055.jpg")

	deps := utcDeps()
	deps.SetTimes = func(string, time.Time) error { return os.ErrPermission }
	eff := dirConfig(root)
	eff.NoExif = true
	rr := Execute(context.Background(), eff, deps, nil)

	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.ErrCodeMtimeWriteFailed, rr.Items[0].ErrorCode)
	assert.Equal(t, domain.SinkFailed, rr.Items[0].Mtime)
}

func TestExecute_UnresolvedWithoutSources(t *testing.T) {
	root := t.TempDir()
	_ = writeJPEG(t, root, "a.jpg")

	reg, err := resolve.NewRegistry()
	require.NoError(t, err)
	deps := utcDeps()
	deps.Resolver = resolve.New(reg, nil)

	rr := Execute(context.Background(), dirConfig(root), deps, nil)
	require.Len(t, rr.Items, 1)
	it := rr.Items[0]
	assert.Equal(t, domain.StatusFailed, it.Status)
	assert.Equal(t, domain.ErrCodeIOFailed, it.ErrorCode, "未注册来源按失败记录：%+v", it)
	assert.Len(t, it.Attempts, 4)
}

func TestExecute_MissingDirIsSyntheticFailure(t *testing.T) {
	rr := Execute(context.Background(), dirConfig(filepath.Join(t.TempDir(), "gone")), utcDeps(), nil)

	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.StatusFailed, rr.Items[0].Status)
	assert.Equal(t, domain.ErrCodeIOFailed, rr.Items[0].ErrorCode)
}

func TestExecute_CancelledContextStopsBeforeNextFile(t *testing.T) {
	root := t.TempDir()
	_ = writeJPEG(t, root, "a.jpg")
	_ = writeJPEG(t, root, "b.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	obs := &recordObserver{onItem: func(int) { cancel() }}
	rr := Execute(ctx, dirConfig(root), utcDeps(), obs)

	assert.Len(t, rr.Items, 1)
	assert.Equal(t, 2, obs.total)
}

type recordObserver struct {
	startCalls  int
	finishCalls int
	total       int
	idx         []int
	onItem      func(idx int)
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig, total int) {
	o.startCalls++
	o.total = total
}

func (o *recordObserver) OnItemDone(idx, total int, item domain.ItemResult, dur time.Duration) {
	o.idx = append(o.idx, idx)
	if o.onItem != nil {
		o.onItem(idx)
	}
}

func (o *recordObserver) OnFinish(report domain.RunReport) { o.finishCalls++ }

func TestExecute_EmitsObserverEvents(t *testing.T) {
	root := t.TempDir()
	_ = writeJPEG(t, root, "a.jpg")
	_ = writeJPEG(t, root, "b.jpeg")
	writeFile(t, filepath.Join(root, "Thumbs.db"), "x")

	obs := &recordObserver{}
	eff := dirConfig(root)
	eff.DryRun = true
	_ = Execute(context.Background(), eff, utcDeps(), obs)

	assert.Equal(t, 1, obs.startCalls)
	assert.Equal(t, 1, obs.finishCalls)
	assert.Equal(t, 2, obs.total)
	assert.Equal(t, []int{1, 2}, obs.idx)
}

func writeJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 16), 64, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg 失败：%v", err)
	}
	p := filepath.Join(dir, name)
	writeFile(t, p, buf.String())
	if err := os.Chtimes(p, oldMtime, oldMtime); err != nil {
		t.Fatalf("设置 mtime 失败：%v", err)
	}
	return p
}

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
