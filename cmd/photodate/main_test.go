package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/photodate/internal/config"
	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/infra/imgx"
)

var oldMtime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// stdout 非 TTY 时只能输出一个 RunReport JSON；摘要与日志走 stderr。
	dir := t.TempDir()
	p := writeJPEG(t, dir, "IMG-20210615-WA0002.jpg")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{dir, "--dry-run"}, terminal{stdout: &stdout, stderr: &stderr})
	require.Equal(t, 0, code, "stderr=%s", stderr.String())

	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rr), "stdout=%q", stdout.String())
	assert.True(t, rr.DryRun)
	assert.Equal(t, domain.ModeAuto, rr.Mode)
	require.Len(t, rr.Items, 1)

	it := rr.Items[0]
	assert.Equal(t, "IMG-20210615-WA0002.jpg", it.File)
	assert.Equal(t, domain.StatusProcessed, it.Status)
	assert.Equal(t, domain.SourceFilename, it.Source)
	assert.Equal(t, "2021-06-15 00:00:00", it.Timestamp.String())
	assert.Equal(t, domain.SinkPlanned, it.Exif)
	assert.Equal(t, domain.SinkPlanned, it.Mtime)
	assert.Contains(t, stderr.String(), "完成：processed=1 skipped=0 failed=0")

	// dry-run 不写入任何东西。
	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(oldMtime), "mtime 不应改变：%v", fi.ModTime())
}

func TestCLI_ExplicitDateApplied(t *testing.T) {
	dir := t.TempDir()
	p := writeJPEG(t, dir, "scan_001.jpg")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{p, "-d", "2004-08-01 12:00:00"}, terminal{stdout: &stdout, stderr: &stderr})
	require.Equal(t, 0, code, "stderr=%s", stderr.String())

	fi, err := os.Stat(p)
	require.NoError(t, err)
	want := time.Date(2004, 8, 1, 12, 0, 0, 0, time.Local)
	assert.True(t, fi.ModTime().Equal(want), "mtime 期望 %v，实际 %v", want, fi.ModTime())

	ts, found, err := imgx.ReadDate(p)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2004-08-01 12:00:00", ts.String())
}

func TestCLI_ExplicitDateWithForceFlagWarns(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "scan_001.jpg")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{dir, "-f", "-d", "2004-08-01 12:00:00", "--dry-run"}, terminal{stdout: &stdout, stderr: &stderr})
	require.Equal(t, 0, code, "stderr=%s", stderr.String())
	assert.Contains(t, stderr.String(), "显式日期优先")

	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rr))
	assert.Equal(t, domain.ModeExplicit, rr.Mode)
}

func TestCLI_InvalidDate_ExitsWithReport(t *testing.T) {
	dir := t.TempDir()
	p := writeJPEG(t, dir, "scan_001.jpg")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{dir, "-d", "2021-02-30 00:00:00"}, terminal{stdout: &stdout, stderr: &stderr})
	require.Equal(t, 1, code)

	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rr), "stdout=%q", stdout.String())
	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.StatusFailed, rr.Items[0].Status)
	assert.Equal(t, domain.ErrCodeInvalidArguments, rr.Items[0].ErrorCode)
	assert.Equal(t, 1, rr.Summary.Failed)

	// 参数错误必须在触碰文件之前退出。
	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(oldMtime))
}

func TestCLI_MissingConfig(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), nil, terminal{stdout: &stdout, stderr: &stderr})
	require.Equal(t, 1, code)

	var rr domain.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rr), "stdout=%q", stdout.String())
	require.Len(t, rr.Items, 1)
	assert.Equal(t, config.ErrCodeNotFound, rr.Items[0].ErrorCode)
}

func TestCLI_TooManyArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"a", "b"}, terminal{stdout: &stdout, stderr: &stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "参数错误")
	assert.Empty(t, stdout.String())
}

func TestCLI_TTY_SummaryAndFailures(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "IMG_20210615_143055.jpg")
	// 空文件：没有 EXIF，也无法被替换；显式日期下 EXIF 写入失败。
	writeFile(t, filepath.Join(dir, "broken.jpg"), "")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{dir, "-d", "2004-08-01 12:00:00"}, terminal{stdout: &stdout, stderr: &stderr, stdoutTTY: true})
	require.Equal(t, 0, code, "单个文件失败不影响退出码")

	assert.Contains(t, stdout.String(), "完成：processed=1 skipped=0 failed=1")
	assert.Contains(t, stderr.String(), "broken.jpg "+domain.ErrCodeExifWriteFailed)
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
