package domain

// MediaFile 描述一次列目录得到的媒体文件（只做 stat，不读内容）。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - Ext 已转小写（".jpg"）
type MediaFile struct {
	AbsPath string
	Name    string // 含扩展名的文件名
	Ext     string
	Size    int64
	ModUnix int64
}

// IsJPEG 判断扩展名是否为 JPEG（EXIF 读写只支持 JPEG）。
func (m MediaFile) IsJPEG() bool {
	return m.Ext == ".jpg" || m.Ext == ".jpeg"
}
