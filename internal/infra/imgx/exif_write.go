package imgx

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/infra/fsx"
)

// exifIfdPath 是 DateTimeOriginal/DateTimeDigitized 所在的子 IFD。
const exifIfdPath = "IFD/Exif"

// WriteDate 把 ts 写入 JPEG 的 DateTimeOriginal 与 DateTimeDigitized。
//
// 约束：
// - 已有 EXIF 时在原 IFD 树上覆盖标签；没有时新建 IFD0 + Exif 子 IFD
// - 只替换 APP1(EXIF) 段，其余段按字节原样写回
// - 通过同目录临时文件 + rename 替换原文件，权限位不变
func WriteDate(path string, ts domain.Timestamp) error {
	if ts.IsZero() {
		return errors.New("时间戳为空")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.MarkIO(err, "读取 %q 失败", path)
	}

	out, err := rewriteExifDate(data, ts.Exif())
	if err != nil {
		return errors.Wrapf(err, "重写 %q 的 EXIF", path)
	}

	if err := fsx.ReplaceFile(path, out); err != nil {
		return domain.MarkIO(err, "替换 %q 失败", path)
	}
	return nil
}

func rewriteExifDate(data []byte, value string) ([]byte, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errors.New("不是 JPEG（缺少 SOI）")
	}

	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "解析 JPEG 段失败")
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, errors.Newf("意外的 JPEG 解析结果：%T", mc)
	}

	rootIb, err := exifBuilder(sl)
	if err != nil {
		return nil, err
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return nil, errors.Wrapf(err, "定位 %s", exifIfdPath)
	}
	for _, name := range []string{"DateTimeOriginal", "DateTimeDigitized"} {
		if err := exifIb.SetStandardWithName(name, value); err != nil {
			return nil, errors.Wrapf(err, "设置 %s", name)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, errors.Wrap(err, "写回 EXIF 段失败")
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "编码 JPEG 失败")
	}
	return buf.Bytes(), nil
}

// exifBuilder 返回已有 EXIF 的 builder；没有 EXIF 段时返回空的根 IFD builder。
func exifBuilder(sl *jpegstructure.SegmentList) (*exif.IfdBuilder, error) {
	if _, _, err := sl.FindExif(); err != nil {
		if !errors.Is(err, exif.ErrNoExif) {
			return nil, errors.Wrap(err, "查找 EXIF 段失败")
		}
		im := exifcommon.NewIfdMapping()
		if err := exifcommon.LoadStandardIfds(im); err != nil {
			return nil, errors.Wrap(err, "加载标准 IFD 映射失败")
		}
		ti := exif.NewTagIndex()
		return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return nil, errors.Wrap(err, "读取已有 EXIF 失败")
	}
	return rootIb, nil
}
