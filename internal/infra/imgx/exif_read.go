package imgx

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/John-Robertt/photodate/internal/domain"
)

// dateTags 是读取拍摄时间时依次尝试的标签（只用标准名）。
var dateTags = []goexif.FieldName{
	goexif.DateTimeOriginal,
	goexif.DateTimeDigitized,
	goexif.DateTime,
}

// Tags 是文件当前的两个 EXIF 日期标签（原样字符串；缺失为空）。
type Tags struct {
	DateTimeOriginal  string
	DateTimeDigitized string
}

// ReadDate 从 JPEG 的 EXIF 中读取拍摄时间。
//
// 返回值：
// - 文件无法打开：err 标记为 IOFailure
// - 空文件 / 无 EXIF / EXIF 无法解码：err 标记为 NotFound（调用方记 warning 后继续）
// - 标签都不存在：found=false, err=nil
// - 标签存在但都无法解析：err 标记为 MalformedInput
func ReadDate(path string) (domain.Timestamp, bool, error) {
	x, err := decode(path)
	if err != nil {
		return domain.Timestamp{}, false, err
	}

	var firstBad error
	for _, name := range dateTags {
		s, ok := tagString(x, name)
		if !ok {
			continue
		}
		ts, err := domain.ParseExifTimestamp(s)
		if err != nil {
			if firstBad == nil {
				firstBad = errors.Wrapf(err, "EXIF %s", name)
			}
			continue
		}
		return ts, true, nil
	}
	if firstBad != nil {
		return domain.Timestamp{}, false, firstBad
	}
	return domain.Timestamp{}, false, nil
}

// ReadTags 读取 DateTimeOriginal/DateTimeDigitized 的当前值，用于判断是否需要重写。
//
// 没有 EXIF 时返回空 Tags 与 nil；只有打开失败才返回错误。
func ReadTags(path string) (Tags, error) {
	x, err := decode(path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Tags{}, nil
		}
		return Tags{}, err
	}
	var t Tags
	t.DateTimeOriginal, _ = tagString(x, goexif.DateTimeOriginal)
	t.DateTimeDigitized, _ = tagString(x, goexif.DateTimeDigitized)
	return t, nil
}

func decode(path string) (*goexif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.MarkIO(err, "打开 %q 失败", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, domain.MarkIO(err, "读取 %q 信息失败", path)
	}
	if fi.Size() == 0 {
		return nil, errors.Mark(errors.Newf("%q 是空文件", path), domain.ErrNotFound)
	}

	x, err := goexif.Decode(f)
	if err != nil {
		// 非致命错误时 goexif 仍返回已解析的部分标签。
		if x != nil && !goexif.IsCriticalError(err) {
			return x, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Mark(errors.Newf("%q 没有 EXIF", path), domain.ErrNotFound)
		}
		return nil, errors.Mark(errors.Wrapf(err, "%q 的 EXIF 无法解码", path), domain.ErrNotFound)
	}
	return x, nil
}

func tagString(x *goexif.Exif, name goexif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return "", false
	}
	return s, true
}
