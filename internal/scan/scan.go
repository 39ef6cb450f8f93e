package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/sidecar"
)

// junkNames 是各平台文件管理器留下的系统文件，永远跳过（不区分大小写）。
var junkNames = []string{"thumbs.db", ".ds_store", "desktop.ini"}

// Options 控制目录模式下哪些文件参与处理。
type Options struct {
	// Extensions 是小写、带点的扩展名；为空时使用 .jpg/.jpeg。
	Extensions []string
	// SkipNames 是额外跳过的文件名（不区分大小写）。
	SkipNames []string
}

// List 列出 dir 下的直接子文件（不递归）。
//
// 规则（硬约束）：
// - 跳过子目录、sidecar（*.json）、系统文件与 AppleDouble（._*）
// - 只保留 Extensions 中的扩展名（不区分大小写）
// - 结果按文件名排序；只做 stat，不读文件内容
func List(dir string, opts Options) ([]domain.MediaFile, error) {
	dir = filepath.Clean(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.MarkIO(err, "列出目录 %q 失败", dir)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".jpg", ".jpeg"}
	}
	skip := make(map[string]struct{}, len(junkNames)+len(opts.SkipNames))
	for _, n := range junkNames {
		skip[n] = struct{}{}
	}
	for _, n := range opts.SkipNames {
		skip[strings.ToLower(n)] = struct{}{}
	}

	files := make([]domain.MediaFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if isIgnored(name, skip) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !contains(exts, ext) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// 列目录后文件消失：跳过，不影响其他文件。
			if os.IsNotExist(err) {
				continue
			}
			return nil, domain.MarkIO(err, "读取 %q 信息失败", name)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, mediaFile(filepath.Join(dir, name), info))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Stat 把单个文件路径转换为 MediaFile（单文件模式不过滤扩展名）。
func Stat(path string) (domain.MediaFile, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return domain.MediaFile{}, domain.MarkIO(err, "读取 %q 信息失败", path)
	}
	if info.IsDir() {
		return domain.MediaFile{}, domain.MarkIO(os.ErrInvalid, "%q 是目录", path)
	}
	return mediaFile(path, info), nil
}

func mediaFile(path string, info os.FileInfo) domain.MediaFile {
	name := filepath.Base(path)
	return domain.MediaFile{
		AbsPath: path,
		Name:    name,
		Ext:     strings.ToLower(filepath.Ext(name)),
		Size:    info.Size(),
		ModUnix: info.ModTime().Unix(),
	}
}

func isIgnored(name string, skip map[string]struct{}) bool {
	low := strings.ToLower(name)
	if _, ok := skip[low]; ok {
		return true
	}
	if strings.HasPrefix(name, "._") {
		return true
	}
	return strings.HasSuffix(low, sidecar.Suffix)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
